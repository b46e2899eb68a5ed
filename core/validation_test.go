package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validPacket() *Packet {
	return &Packet{
		Metadata: PacketMetadata{
			PacketID:         NewUUID(),
			CaptureSource:    CaptureWebClipper,
			CaptureTimestamp: time.Now().Add(-1 * time.Hour),
			UserAction:       ActionQuickSave,
			AttentionScore:   42,
		},
		Payload: PacketPayload{
			Core: Core{
				Highlight: "distributed consensus in practice",
				Note:      "raft is easier to explain than paxos",
				At:        "https://example.com/articles/raft",
				Tags:      []string{"consensus", "distributed-systems"},
				Access:    AccessPrivate,
			},
			UserID: "user-1",
		},
	}
}

func TestValidatePacket(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Packet)
		wantErr error
	}{
		{
			name:    "valid packet",
			mutate:  func(p *Packet) {},
			wantErr: nil,
		},
		{
			name:    "empty highlight",
			mutate:  func(p *Packet) { p.Payload.Highlight = "" },
			wantErr: ErrEmptyHighlight,
		},
		{
			name:    "whitespace highlight",
			mutate:  func(p *Packet) { p.Payload.Highlight = "   " },
			wantErr: ErrEmptyHighlight,
		},
		{
			name:    "empty source",
			mutate:  func(p *Packet) { p.Payload.At = "" },
			wantErr: ErrEmptySource,
		},
		{
			name:    "highlight too long",
			mutate:  func(p *Packet) { p.Payload.Highlight = strings.Repeat("x", MaxHighlightLen+1) },
			wantErr: ErrFieldTooLong,
		},
		{
			name:    "note too long",
			mutate:  func(p *Packet) { p.Payload.Note = strings.Repeat("x", MaxNoteLen+1) },
			wantErr: ErrFieldTooLong,
		},
		{
			name:    "source too long",
			mutate:  func(p *Packet) { p.Payload.At = strings.Repeat("x", MaxSourceLen+1) },
			wantErr: ErrFieldTooLong,
		},
		{
			name:    "tag too long",
			mutate:  func(p *Packet) { p.Payload.Tags = []string{strings.Repeat("x", MaxTagLen+1)} },
			wantErr: ErrFieldTooLong,
		},
		{
			name: "too many tags",
			mutate: func(p *Packet) {
				p.Payload.Tags = make([]string, MaxTags+1)
				for i := range p.Payload.Tags {
					p.Payload.Tags[i] = "tag"
				}
			},
			wantErr: ErrTooManyTags,
		},
		{
			name:    "invalid access level",
			mutate:  func(p *Packet) { p.Payload.Access = AccessLevel(99) },
			wantErr: ErrInvalidAccessLevel,
		},
		{
			name:    "malformed packet id",
			mutate:  func(p *Packet) { p.Metadata.PacketID = "not-a-uuid" },
			wantErr: ErrInvalidID,
		},
		{
			name:    "invalid capture source",
			mutate:  func(p *Packet) { p.Metadata.CaptureSource = CaptureSource(0) },
			wantErr: ErrInvalidCaptureSource,
		},
		{
			name:    "invalid user action",
			mutate:  func(p *Packet) { p.Metadata.UserAction = UserAction(42) },
			wantErr: ErrInvalidUserAction,
		},
		{
			name:    "future capture timestamp",
			mutate:  func(p *Packet) { p.Metadata.CaptureTimestamp = time.Now().Add(48 * time.Hour) },
			wantErr: ErrInvalidTimestamp,
		},
		{
			name:    "zero capture timestamp",
			mutate:  func(p *Packet) { p.Metadata.CaptureTimestamp = time.Time{} },
			wantErr: ErrInvalidTimestamp,
		},
		{
			name:    "attention score out of range",
			mutate:  func(p *Packet) { p.Metadata.AttentionScore = 101 },
			wantErr: ErrInvalidAttention,
		},
		{
			name:    "negative attention score",
			mutate:  func(p *Packet) { p.Metadata.AttentionScore = -1 },
			wantErr: ErrInvalidAttention,
		},
		{
			name:    "missing user id",
			mutate:  func(p *Packet) { p.Payload.UserID = "" },
			wantErr: ErrInvalidPacket,
		},
		{
			name: "too many attachments",
			mutate: func(p *Packet) {
				p.Payload.Attachments = make([]Attachment, MaxAttachments+1)
			},
			wantErr: ErrTooManyAttachments,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPacket()
			tt.mutate(p)
			err := ValidatePacket(p)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidatePacket() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidatePacket() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidPacket) {
				t.Fatalf("ValidatePacket() error = %v, want wrapped %v", err, ErrInvalidPacket)
			}
		})
	}
}

func validBlock() *KnowledgeBlock {
	return &KnowledgeBlock{
		ID:            NewUUID(),
		UserID:        "user-1",
		LibraryItemID: "lib-1",
		Core: Core{
			Highlight: "a block worth keeping",
			At:        "https://example.com/post",
			Access:    AccessShared,
		},
	}
}

func TestValidateBlock(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(b *KnowledgeBlock)
		wantErr error
	}{
		{
			name:    "valid block",
			mutate:  func(b *KnowledgeBlock) {},
			wantErr: nil,
		},
		{
			name:    "empty highlight",
			mutate:  func(b *KnowledgeBlock) { b.Highlight = "" },
			wantErr: ErrEmptyHighlight,
		},
		{
			name:    "malformed block id",
			mutate:  func(b *KnowledgeBlock) { b.ID = "nope" },
			wantErr: ErrInvalidID,
		},
		{
			name:    "missing user id",
			mutate:  func(b *KnowledgeBlock) { b.UserID = "" },
			wantErr: ErrInvalidBlock,
		},
		{
			name: "too many note items",
			mutate: func(b *KnowledgeBlock) {
				b.NoteItems = make([]NoteItem, MaxNoteItems+1)
			},
			wantErr: ErrTooManyNoteItems,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBlock()
			tt.mutate(b)
			err := ValidateBlock(b)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateBlock() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateBlock() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNoteItem(t *testing.T) {
	item := NoteItem{ID: NewUUID(), Content: "remember this", Order: 0}
	if err := ValidateNoteItem(&item); err != nil {
		t.Fatalf("ValidateNoteItem() error = %v, want nil", err)
	}

	empty := NoteItem{ID: NewUUID(), Content: "   "}
	if err := ValidateNoteItem(&empty); !errors.Is(err, ErrInvalidBlock) {
		t.Fatalf("ValidateNoteItem() error = %v, want %v", err, ErrInvalidBlock)
	}

	long := NoteItem{ID: NewUUID(), Content: strings.Repeat("x", MaxNoteLen+1)}
	if err := ValidateNoteItem(&long); !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("ValidateNoteItem() error = %v, want %v", err, ErrFieldTooLong)
	}
}

func TestValidateReference(t *testing.T) {
	ref := BlockReference{
		ID:            NewUUID(),
		SourceBlockID: NewUUID(),
		TargetBlockID: NewUUID(),
		Type:          ReferenceStrong,
	}
	if err := ValidateReference(&ref); err != nil {
		t.Fatalf("ValidateReference() error = %v, want nil", err)
	}

	ref.Type = ReferenceType(42)
	if err := ValidateReference(&ref); !errors.Is(err, ErrInvalidReferenceType) {
		t.Fatalf("ValidateReference() error = %v, want %v", err, ErrInvalidReferenceType)
	}

	ref.Type = ReferenceWeak
	ref.TargetBlockID = ""
	if err := ValidateReference(&ref); !errors.Is(err, ErrInvalidBlock) {
		t.Fatalf("ValidateReference() error = %v, want %v", err, ErrInvalidBlock)
	}
}

func TestValidateRelation(t *testing.T) {
	tests := []struct {
		name    string
		rel     Relation
		wantErr error
	}{
		{
			name: "valid relation",
			rel: Relation{
				SourceID: "a",
				TargetID: "b",
				Type:     RelationSemanticSimilarity,
				Strength: 0.5,
				Origin:   OriginSystem,
			},
			wantErr: nil,
		},
		{
			name: "strength at bounds",
			rel: Relation{
				SourceID: "a",
				TargetID: "b",
				Type:     RelationStrongReference,
				Strength: 1.0,
				Origin:   OriginUser,
			},
			wantErr: nil,
		},
		{
			name: "strength above one",
			rel: Relation{
				SourceID: "a",
				TargetID: "b",
				Type:     RelationStrongReference,
				Strength: 1.01,
				Origin:   OriginUser,
			},
			wantErr: ErrInvalidStrength,
		},
		{
			name: "negative strength",
			rel: Relation{
				SourceID: "a",
				TargetID: "b",
				Type:     RelationStrongReference,
				Strength: -0.1,
				Origin:   OriginUser,
			},
			wantErr: ErrInvalidStrength,
		},
		{
			name: "missing source",
			rel: Relation{
				TargetID: "b",
				Type:     RelationStrongReference,
				Strength: 0.5,
				Origin:   OriginUser,
			},
			wantErr: ErrInvalidRelation,
		},
		{
			name: "unknown type",
			rel: Relation{
				SourceID: "a",
				TargetID: "b",
				Type:     RelationType(99),
				Strength: 0.5,
				Origin:   OriginUser,
			},
			wantErr: ErrInvalidRelationType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRelation(&tt.rel)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateRelation() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateRelation() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
