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

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidPacket indicates a Packet failed validation.
	ErrInvalidPacket = errors.New("invalid packet")

	// ErrInvalidBlock indicates a KnowledgeBlock failed validation.
	ErrInvalidBlock = errors.New("invalid knowledge block")

	// ErrInvalidRelation indicates a Relation failed validation.
	ErrInvalidRelation = errors.New("invalid relation")

	// ErrInvalidTag indicates a Tag failed validation.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrInvalidID indicates a malformed entity identifier.
	ErrInvalidID = errors.New("invalid identifier")

	// ErrEmptyHighlight indicates the Highlight field is empty.
	ErrEmptyHighlight = errors.New("highlight cannot be empty")

	// ErrEmptySource indicates the At field is empty.
	ErrEmptySource = errors.New("at source cannot be empty")

	// ErrFieldTooLong indicates a HiNATA field exceeds its limit.
	ErrFieldTooLong = errors.New("field exceeds maximum length")

	// ErrTooManyTags indicates the tag list exceeds MaxTags.
	ErrTooManyTags = errors.New("too many tags")

	// ErrTooManyAttachments indicates the attachment list exceeds MaxAttachments.
	ErrTooManyAttachments = errors.New("too many attachments")

	// ErrTooManyNoteItems indicates a block exceeds MaxNoteItems.
	ErrTooManyNoteItems = errors.New("too many note items")

	// ErrEmptyTagName indicates a tag name normalizes to nothing.
	ErrEmptyTagName = errors.New("tag name cannot be empty")

	// ErrInvalidAccessLevel indicates an AccessLevel outside the four levels.
	ErrInvalidAccessLevel = errors.New("invalid access level")

	// ErrInvalidCaptureSource indicates an unknown CaptureSource value.
	ErrInvalidCaptureSource = errors.New("invalid capture source")

	// ErrInvalidUserAction indicates an unknown UserAction value.
	ErrInvalidUserAction = errors.New("invalid user action")

	// ErrInvalidReferenceType indicates an unknown ReferenceType value.
	ErrInvalidReferenceType = errors.New("invalid reference type")

	// ErrInvalidRelationType indicates an unknown RelationType value.
	ErrInvalidRelationType = errors.New("invalid relation type")

	// ErrInvalidTagType indicates an unknown TagType value.
	ErrInvalidTagType = errors.New("invalid tag type")

	// ErrInvalidTimestamp indicates a timestamp in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrInvalidAttention indicates an attention score outside 0-100.
	ErrInvalidAttention = errors.New("attention score must be between 0 and 100")

	// ErrInvalidStrength indicates a relation strength outside [0,1].
	ErrInvalidStrength = errors.New("strength must be between 0 and 1")
)
