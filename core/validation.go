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

import (
	"fmt"
	"strings"
	"time"
)

// Field limits for HiNATA entities.
const (
	MaxHighlightLen = 1000
	MaxNoteLen      = 10000
	MaxSourceLen    = 2048
	MaxTagLen       = 50
	MaxTags         = 20
	MaxAttachments  = 5
	MaxNoteItems    = 20
	MaxAttention    = 100
)

// ValidateCore validates the HiNATA tuple shared by packets and blocks.
//
// Validation rules:
//   - Highlight must be non-empty and within MaxHighlightLen
//   - Note may be empty but must be within MaxNoteLen
//   - At must be non-empty and within MaxSourceLen
//   - at most MaxTags tags, each non-empty after normalization and within MaxTagLen
//   - Access must be one of the four levels
func ValidateCore(c *Core) error {
	if strings.TrimSpace(c.Highlight) == "" {
		return ErrEmptyHighlight
	}
	if len(c.Highlight) > MaxHighlightLen {
		return fmt.Errorf("%w: highlight (%d > %d)", ErrFieldTooLong, len(c.Highlight), MaxHighlightLen)
	}
	if len(c.Note) > MaxNoteLen {
		return fmt.Errorf("%w: note (%d > %d)", ErrFieldTooLong, len(c.Note), MaxNoteLen)
	}
	if c.At == "" {
		return ErrEmptySource
	}
	if len(c.At) > MaxSourceLen {
		return fmt.Errorf("%w: at (%d > %d)", ErrFieldTooLong, len(c.At), MaxSourceLen)
	}
	if len(c.Tags) > MaxTags {
		return fmt.Errorf("%w: %d > %d", ErrTooManyTags, len(c.Tags), MaxTags)
	}
	for _, tag := range c.Tags {
		if NormalizeTagName(tag) == "" {
			return ErrEmptyTagName
		}
		if len(tag) > MaxTagLen {
			return fmt.Errorf("%w: tag %q", ErrFieldTooLong, tag)
		}
	}
	return ValidateAccessLevel(c.Access)
}

// ValidatePacket validates a Packet according to domain rules.
//
// NOT validated (the caller's concern):
//   - UserID existence (externally managed)
//   - attachment reachability
func ValidatePacket(p *Packet) error {
	if p == nil {
		return fmt.Errorf("%w: packet is nil", ErrInvalidPacket)
	}
	if !IsValidUUID(p.Metadata.PacketID) {
		return fmt.Errorf("%w: %w: packet id %q", ErrInvalidPacket, ErrInvalidID, p.Metadata.PacketID)
	}
	if err := ValidateCaptureSource(p.Metadata.CaptureSource); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPacket, err)
	}
	if err := ValidateUserAction(p.Metadata.UserAction); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPacket, err)
	}
	if !IsValidTimestamp(p.Metadata.CaptureTimestamp) {
		return fmt.Errorf("%w: %w", ErrInvalidPacket, ErrInvalidTimestamp)
	}
	if p.Metadata.AttentionScore < 0 || p.Metadata.AttentionScore > MaxAttention {
		return fmt.Errorf("%w: %w: %d", ErrInvalidPacket, ErrInvalidAttention, p.Metadata.AttentionScore)
	}
	if p.Payload.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidPacket)
	}
	if len(p.Payload.Attachments) > MaxAttachments {
		return fmt.Errorf("%w: %w: %d > %d", ErrInvalidPacket, ErrTooManyAttachments,
			len(p.Payload.Attachments), MaxAttachments)
	}
	if err := ValidateCore(&p.Payload.Core); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPacket, err)
	}
	return nil
}

// ValidateBlock validates a KnowledgeBlock according to domain rules.
//
// NOT validated:
//   - LibraryItemID existence (externally validated)
//   - Backlinks (maintained by the store, never supplied by callers)
func ValidateBlock(b *KnowledgeBlock) error {
	if b == nil {
		return fmt.Errorf("%w: block is nil", ErrInvalidBlock)
	}
	if !IsValidUUID(b.ID) {
		return fmt.Errorf("%w: %w: block id %q", ErrInvalidBlock, ErrInvalidID, b.ID)
	}
	if b.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidBlock)
	}
	if b.LibraryItemID == "" {
		return fmt.Errorf("%w: library item id is required", ErrInvalidBlock)
	}
	if len(b.NoteItems) > MaxNoteItems {
		return fmt.Errorf("%w: %w: %d > %d", ErrInvalidBlock, ErrTooManyNoteItems,
			len(b.NoteItems), MaxNoteItems)
	}
	for i := range b.NoteItems {
		if err := ValidateNoteItem(&b.NoteItems[i]); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidBlock, err)
		}
	}
	if err := ValidateCore(&b.Core); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBlock, err)
	}
	return nil
}

// ValidateNoteItem validates a single note item.
func ValidateNoteItem(n *NoteItem) error {
	if strings.TrimSpace(n.Content) == "" {
		return fmt.Errorf("%w: note item content cannot be empty", ErrInvalidBlock)
	}
	if len(n.Content) > MaxNoteLen {
		return fmt.Errorf("%w: note item (%d > %d)", ErrFieldTooLong, len(n.Content), MaxNoteLen)
	}
	return nil
}

// ValidateReference validates a block reference before it is applied.
// The self-reference check lives in the store, where it maps to a
// consistency error rather than a validation error.
func ValidateReference(r *BlockReference) error {
	if r.SourceBlockID == "" || r.TargetBlockID == "" {
		return fmt.Errorf("%w: reference endpoints are required", ErrInvalidBlock)
	}
	return ValidateReferenceType(r.Type)
}

// ValidateRelation validates a Relation according to domain rules.
func ValidateRelation(r *Relation) error {
	if r == nil {
		return fmt.Errorf("%w: relation is nil", ErrInvalidRelation)
	}
	if r.SourceID == "" || r.TargetID == "" {
		return fmt.Errorf("%w: relation endpoints are required", ErrInvalidRelation)
	}
	if err := ValidateRelationType(r.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRelation, err)
	}
	if r.Strength < 0 || r.Strength > 1 {
		return fmt.Errorf("%w: %w: %f", ErrInvalidRelation, ErrInvalidStrength, r.Strength)
	}
	return nil
}

// ValidateAccessLevel validates that an AccessLevel has a known value.
func ValidateAccessLevel(a AccessLevel) error {
	if a < AccessPrivate || a > AccessWeb3Published {
		return fmt.Errorf("%w: value %d", ErrInvalidAccessLevel, a)
	}
	return nil
}

// ValidateCaptureSource validates that a CaptureSource has a known value.
func ValidateCaptureSource(c CaptureSource) error {
	if c < CaptureWebClipper || c > CaptureAPIIngest {
		return fmt.Errorf("%w: value %d", ErrInvalidCaptureSource, c)
	}
	return nil
}

// ValidateUserAction validates that a UserAction has a known value.
func ValidateUserAction(u UserAction) error {
	if u < ActionQuickSave || u > ActionShare {
		return fmt.Errorf("%w: value %d", ErrInvalidUserAction, u)
	}
	return nil
}

// ValidateReferenceType validates that a ReferenceType has a known value.
func ValidateReferenceType(r ReferenceType) error {
	if r < ReferenceStrong || r > ReferenceSemantic {
		return fmt.Errorf("%w: value %d", ErrInvalidReferenceType, r)
	}
	return nil
}

// ValidateRelationType validates that a RelationType has a known value.
func ValidateRelationType(r RelationType) error {
	if r < RelationStrongReference || r > RelationDerived {
		return fmt.Errorf("%w: value %d", ErrInvalidRelationType, r)
	}
	return nil
}

// ValidateTagType validates that a TagType has a known value.
func ValidateTagType(t TagType) error {
	if t < TagUser || t > TagBehavioral {
		return fmt.Errorf("%w: value %d", ErrInvalidTagType, t)
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is set and not in the future.
func IsValidTimestamp(ts time.Time) bool {
	return !ts.IsZero() && !ts.After(time.Now())
}
