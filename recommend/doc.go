// Copyright 2026 The HiNATA Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package recommend provides tag recommendation and keyword extraction.
//
// The Recommender type merges three independently scored candidate sets:
//   - Keywords found in the content that match known tags
//   - Globally popular tags not yet applied to the item
//   - Tag-association graph neighbors of the already applied tags
//
// Candidates are deduplicated by tag keeping the highest score, filtered
// by a confidence floor, and returned in descending score order.
package recommend
