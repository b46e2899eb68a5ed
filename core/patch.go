package core

import "time"

// PacketPatch is a partial update for a packet. Nil fields are left
// untouched; the merged result is re-validated before it is committed.
type PacketPatch struct {
	Metadata *MetadataPatch
	Payload  *PayloadPatch
}

// MetadataPatch updates individual packet metadata fields.
type MetadataPatch struct {
	CaptureSource    *CaptureSource
	CaptureTimestamp *time.Time
	UserAction       *UserAction
	Device           *DeviceContext
	AttentionScore   *int
}

// PayloadPatch updates individual packet payload fields. Tags and
// Attachments replace the whole list when present.
type PayloadPatch struct {
	Highlight   *string
	Note        *string
	At          *string
	Tags        *[]string
	Access      *AccessLevel
	UserID      *string
	Attachments *[]Attachment
}

// Apply merges the patch into the packet field by field.
func (p *PacketPatch) Apply(pkt *Packet) {
	if p == nil {
		return
	}
	if m := p.Metadata; m != nil {
		if m.CaptureSource != nil {
			pkt.Metadata.CaptureSource = *m.CaptureSource
		}
		if m.CaptureTimestamp != nil {
			pkt.Metadata.CaptureTimestamp = *m.CaptureTimestamp
		}
		if m.UserAction != nil {
			pkt.Metadata.UserAction = *m.UserAction
		}
		if m.Device != nil {
			pkt.Metadata.Device = *m.Device
		}
		if m.AttentionScore != nil {
			pkt.Metadata.AttentionScore = *m.AttentionScore
		}
	}
	if pl := p.Payload; pl != nil {
		if pl.Highlight != nil {
			pkt.Payload.Highlight = *pl.Highlight
		}
		if pl.Note != nil {
			pkt.Payload.Note = *pl.Note
		}
		if pl.At != nil {
			pkt.Payload.At = *pl.At
		}
		if pl.Tags != nil {
			pkt.Payload.Tags = *pl.Tags
		}
		if pl.Access != nil {
			pkt.Payload.Access = *pl.Access
		}
		if pl.UserID != nil {
			pkt.Payload.UserID = *pl.UserID
		}
		if pl.Attachments != nil {
			pkt.Payload.Attachments = *pl.Attachments
		}
	}
}

// BlockPatch is a partial update for a knowledge block. Note items,
// references, and backlinks have dedicated operations and are never patched.
type BlockPatch struct {
	Highlight     *string
	Note          *string
	At            *string
	Tags          *[]string
	Access        *AccessLevel
	LibraryItemID *string
	Position      *int
}

// Apply merges the patch into the block field by field.
func (p *BlockPatch) Apply(b *KnowledgeBlock) {
	if p == nil {
		return
	}
	if p.Highlight != nil {
		b.Highlight = *p.Highlight
	}
	if p.Note != nil {
		b.Note = *p.Note
	}
	if p.At != nil {
		b.At = *p.At
	}
	if p.Tags != nil {
		b.Tags = *p.Tags
	}
	if p.Access != nil {
		b.Access = *p.Access
	}
	if p.LibraryItemID != nil {
		b.LibraryItemID = *p.LibraryItemID
	}
	if p.Position != nil {
		b.Position = *p.Position
	}
}
