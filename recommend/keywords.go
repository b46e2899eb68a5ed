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


package recommend

import (
	"slices"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/hinata-sys/hinata/core"
)

const (
	// Words this short carry almost no tagging signal.
	minKeywordLen = 4

	// Content longer than this is chunked before tokenization.
	chunkThreshold = 2048
	chunkSize      = 1024
	chunkOverlap   = 128
)

// Keyword is one extracted content keyword ranked by frequency.
// Score is the count relative to the most frequent keyword, in (0, 1].
type Keyword struct {
	Word  string
	Count int
	Score float64
}

// ExtractKeywords tokenizes content and ranks the surviving words by
// frequency. Stop words and words shorter than four characters are dropped.
// Long content is split into overlapping chunks first.
func ExtractKeywords(content string, limit int) ([]Keyword, error) {
	chunks := []string{content}
	if len(content) > chunkThreshold {
		splitter := textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		)
		var err error
		chunks, err = splitter.SplitText(content)
		if err != nil {
			return nil, err
		}
	}

	counts := make(map[string]int)
	for _, chunk := range chunks {
		for _, word := range core.Tokenize(chunk) {
			if len(word) < minKeywordLen {
				continue
			}
			counts[word]++
		}
	}
	if len(counts) == 0 {
		return nil, nil
	}

	keywords := make([]Keyword, 0, len(counts))
	for word, count := range counts {
		keywords = append(keywords, Keyword{Word: word, Count: count})
	}
	slices.SortFunc(keywords, func(a, b Keyword) int {
		if c := b.Count - a.Count; c != 0 {
			return c
		}
		return strings.Compare(a.Word, b.Word)
	})

	maxCount := keywords[0].Count
	for i := range keywords {
		keywords[i].Score = float64(keywords[i].Count) / float64(maxCount)
	}

	if limit > 0 && len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords, nil
}
