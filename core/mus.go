package core

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for every entity persisted by the storage layer. Values
// are encoded field by field in declaration order; collections carry a
// varint length prefix. Timestamps travel as microseconds since the Unix
// epoch, with a sentinel for the zero time so round trips preserve IsZero.

// ErrMalformedValue indicates a stored value that cannot be decoded.
var ErrMalformedValue = fmt.Errorf("malformed stored value")

const zeroTimeSentinel = math.MinInt64

func sizeTime(t time.Time) int {
	if t.IsZero() {
		return varint.Int64.Size(zeroTimeSentinel)
	}
	return varint.Int64.Size(t.UnixMicro())
}

func marshalTime(t time.Time, bs []byte) int {
	if t.IsZero() {
		return varint.Int64.Marshal(zeroTimeSentinel, bs)
	}
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || v == zeroTimeSentinel {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func sizeStrings(vs []string) int {
	n := varint.Int.Size(len(vs))
	for _, v := range vs {
		n += ord.String.Size(v)
	}
	return n
}

func marshalStrings(vs []string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(vs), bs)
	for _, v := range vs {
		n += ord.String.Marshal(v, bs[n:])
	}
	return n
}

func unmarshalStrings(bs []byte) (vs []string, n int, err error) {
	l, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if l < 0 {
		return nil, n, fmt.Errorf("%w: negative length %d", ErrMalformedValue, l)
	}
	if l == 0 {
		return nil, n, nil
	}
	vs = make([]string, l)
	for i := 0; i < l; i++ {
		var (
			v  string
			nn int
		)
		v, nn, err = ord.String.Unmarshal(bs[n:])
		n += nn
		if err != nil {
			return nil, n, err
		}
		vs[i] = v
	}
	return vs, n, nil
}

func sizeIDs(vs []ID) int {
	n := varint.Int.Size(len(vs))
	for _, v := range vs {
		n += varint.Uint64.Size(uint64(v))
	}
	return n
}

func marshalIDs(vs []ID, bs []byte) (n int) {
	n = varint.Int.Marshal(len(vs), bs)
	for _, v := range vs {
		n += varint.Uint64.Marshal(uint64(v), bs[n:])
	}
	return n
}

func unmarshalIDs(bs []byte) (vs []ID, n int, err error) {
	l, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if l < 0 {
		return nil, n, fmt.Errorf("%w: negative length %d", ErrMalformedValue, l)
	}
	if l == 0 {
		return nil, n, nil
	}
	vs = make([]ID, l)
	for i := 0; i < l; i++ {
		var (
			v  uint64
			nn int
		)
		v, nn, err = varint.Uint64.Unmarshal(bs[n:])
		n += nn
		if err != nil {
			return nil, n, err
		}
		vs[i] = ID(v)
	}
	return vs, n, nil
}

func sizeStringMap(m map[string]string) int {
	n := varint.Int.Size(len(m))
	for k, v := range m {
		n += ord.String.Size(k) + ord.String.Size(v)
	}
	return n
}

// marshalStringMap encodes keys in sorted order so equal maps encode equally.
func marshalStringMap(m map[string]string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(m), bs)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(m[k], bs[n:])
	}
	return n
}

func unmarshalStringMap(bs []byte) (m map[string]string, n int, err error) {
	l, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if l < 0 {
		return nil, n, fmt.Errorf("%w: negative length %d", ErrMalformedValue, l)
	}
	if l == 0 {
		return nil, n, nil
	}
	m = make(map[string]string, l)
	for i := 0; i < l; i++ {
		var (
			k, v string
			nn   int
		)
		k, nn, err = ord.String.Unmarshal(bs[n:])
		n += nn
		if err != nil {
			return nil, n, err
		}
		v, nn, err = ord.String.Unmarshal(bs[n:])
		n += nn
		if err != nil {
			return nil, n, err
		}
		m[k] = v
	}
	return m, n, nil
}

// IDMUS serializes content-derived IDs, used as secondary index values.
var IDMUS = idMUS{}

type idMUS struct{}

func (idMUS) Size(v ID) int {
	return varint.Uint64.Size(uint64(v))
}

func (idMUS) Marshal(v ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func sizeCore(c Core) int {
	return ord.String.Size(c.Highlight) +
		ord.String.Size(c.Note) +
		ord.String.Size(c.At) +
		sizeStrings(c.Tags) +
		varint.Int.Size(int(c.Access))
}

func marshalCore(c Core, bs []byte) (n int) {
	n = ord.String.Marshal(c.Highlight, bs)
	n += ord.String.Marshal(c.Note, bs[n:])
	n += ord.String.Marshal(c.At, bs[n:])
	n += marshalStrings(c.Tags, bs[n:])
	n += varint.Int.Marshal(int(c.Access), bs[n:])
	return n
}

func unmarshalCore(bs []byte) (c Core, n int, err error) {
	var nn int
	if c.Highlight, n, err = ord.String.Unmarshal(bs); err != nil {
		return c, n, err
	}
	if c.Note, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + nn, err
	}
	n += nn
	if c.At, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + nn, err
	}
	n += nn
	if c.Tags, nn, err = unmarshalStrings(bs[n:]); err != nil {
		return c, n + nn, err
	}
	n += nn
	var access int
	access, nn, err = varint.Int.Unmarshal(bs[n:])
	n += nn
	c.Access = AccessLevel(access)
	return c, n, err
}

func sizeAttachment(a Attachment) int {
	return ord.String.Size(a.ID) +
		ord.String.Size(a.Filename) +
		ord.String.Size(a.MimeType) +
		varint.Uint64.Size(a.Size) +
		ord.String.Size(a.URL) +
		ord.String.Size(a.LocalPath) +
		ord.String.Size(a.Checksum)
}

func marshalAttachment(a Attachment, bs []byte) (n int) {
	n = ord.String.Marshal(a.ID, bs)
	n += ord.String.Marshal(a.Filename, bs[n:])
	n += ord.String.Marshal(a.MimeType, bs[n:])
	n += varint.Uint64.Marshal(a.Size, bs[n:])
	n += ord.String.Marshal(a.URL, bs[n:])
	n += ord.String.Marshal(a.LocalPath, bs[n:])
	n += ord.String.Marshal(a.Checksum, bs[n:])
	return n
}

func unmarshalAttachment(bs []byte) (a Attachment, n int, err error) {
	var nn int
	if a.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return a, n, err
	}
	if a.Filename, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return a, n + nn, err
	}
	n += nn
	if a.MimeType, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return a, n + nn, err
	}
	n += nn
	if a.Size, nn, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return a, n + nn, err
	}
	n += nn
	if a.URL, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return a, n + nn, err
	}
	n += nn
	if a.LocalPath, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return a, n + nn, err
	}
	n += nn
	a.Checksum, nn, err = ord.String.Unmarshal(bs[n:])
	n += nn
	return a, n, err
}

func sizeDevice(d DeviceContext) int {
	return ord.String.Size(d.DeviceID) +
		ord.String.Size(d.DeviceType) +
		ord.String.Size(d.OSVersion) +
		ord.String.Size(d.AppVersion) +
		ord.String.Size(d.UserAgent) +
		ord.String.Size(d.Timezone)
}

func marshalDevice(d DeviceContext, bs []byte) (n int) {
	n = ord.String.Marshal(d.DeviceID, bs)
	n += ord.String.Marshal(d.DeviceType, bs[n:])
	n += ord.String.Marshal(d.OSVersion, bs[n:])
	n += ord.String.Marshal(d.AppVersion, bs[n:])
	n += ord.String.Marshal(d.UserAgent, bs[n:])
	n += ord.String.Marshal(d.Timezone, bs[n:])
	return n
}

func unmarshalDevice(bs []byte) (d DeviceContext, n int, err error) {
	var nn int
	if d.DeviceID, n, err = ord.String.Unmarshal(bs); err != nil {
		return d, n, err
	}
	if d.DeviceType, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + nn, err
	}
	n += nn
	if d.OSVersion, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + nn, err
	}
	n += nn
	if d.AppVersion, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + nn, err
	}
	n += nn
	if d.UserAgent, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + nn, err
	}
	n += nn
	d.Timezone, nn, err = ord.String.Unmarshal(bs[n:])
	n += nn
	return d, n, err
}

// PacketMUS serializes packets.
var PacketMUS = packetMUS{}

type packetMUS struct{}

func (packetMUS) Size(p Packet) int {
	n := ord.String.Size(p.Metadata.PacketID) +
		varint.Int.Size(int(p.Metadata.CaptureSource)) +
		sizeTime(p.Metadata.CaptureTimestamp) +
		varint.Int.Size(int(p.Metadata.UserAction)) +
		sizeDevice(p.Metadata.Device) +
		varint.Int.Size(p.Metadata.AttentionScore)
	n += sizeCore(p.Payload.Core) + ord.String.Size(p.Payload.UserID)
	n += varint.Int.Size(len(p.Payload.Attachments))
	for _, a := range p.Payload.Attachments {
		n += sizeAttachment(a)
	}
	return n + sizeTime(p.InsertedAt) + sizeTime(p.UpdatedAt)
}

func (packetMUS) Marshal(p Packet, bs []byte) (n int) {
	n = ord.String.Marshal(p.Metadata.PacketID, bs)
	n += varint.Int.Marshal(int(p.Metadata.CaptureSource), bs[n:])
	n += marshalTime(p.Metadata.CaptureTimestamp, bs[n:])
	n += varint.Int.Marshal(int(p.Metadata.UserAction), bs[n:])
	n += marshalDevice(p.Metadata.Device, bs[n:])
	n += varint.Int.Marshal(p.Metadata.AttentionScore, bs[n:])
	n += marshalCore(p.Payload.Core, bs[n:])
	n += ord.String.Marshal(p.Payload.UserID, bs[n:])
	n += varint.Int.Marshal(len(p.Payload.Attachments), bs[n:])
	for _, a := range p.Payload.Attachments {
		n += marshalAttachment(a, bs[n:])
	}
	n += marshalTime(p.InsertedAt, bs[n:])
	n += marshalTime(p.UpdatedAt, bs[n:])
	return n
}

func (packetMUS) Unmarshal(bs []byte) (p Packet, n int, err error) {
	var nn int
	if p.Metadata.PacketID, n, err = ord.String.Unmarshal(bs); err != nil {
		return p, n, err
	}
	var source int
	if source, nn, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return p, n + nn, err
	}
	n += nn
	p.Metadata.CaptureSource = CaptureSource(source)
	if p.Metadata.CaptureTimestamp, nn, err = unmarshalTime(bs[n:]); err != nil {
		return p, n + nn, err
	}
	n += nn
	var action int
	if action, nn, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return p, n + nn, err
	}
	n += nn
	p.Metadata.UserAction = UserAction(action)
	if p.Metadata.Device, nn, err = unmarshalDevice(bs[n:]); err != nil {
		return p, n + nn, err
	}
	n += nn
	if p.Metadata.AttentionScore, nn, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return p, n + nn, err
	}
	n += nn
	if p.Payload.Core, nn, err = unmarshalCore(bs[n:]); err != nil {
		return p, n + nn, err
	}
	n += nn
	if p.Payload.UserID, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return p, n + nn, err
	}
	n += nn
	var count int
	if count, nn, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return p, n + nn, err
	}
	n += nn
	if count < 0 {
		return p, n, fmt.Errorf("%w: negative length %d", ErrMalformedValue, count)
	}
	if count > 0 {
		p.Payload.Attachments = make([]Attachment, count)
		for i := 0; i < count; i++ {
			if p.Payload.Attachments[i], nn, err = unmarshalAttachment(bs[n:]); err != nil {
				return p, n + nn, err
			}
			n += nn
		}
	}
	if p.InsertedAt, nn, err = unmarshalTime(bs[n:]); err != nil {
		return p, n + nn, err
	}
	n += nn
	p.UpdatedAt, nn, err = unmarshalTime(bs[n:])
	n += nn
	return p, n, err
}

func sizeNoteItem(v NoteItem) int {
	return ord.String.Size(v.ID) +
		ord.String.Size(v.Content) +
		varint.Int.Size(v.Order) +
		sizeTime(v.InsertedAt) +
		sizeTime(v.UpdatedAt)
}

func marshalNoteItem(v NoteItem, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Content, bs[n:])
	n += varint.Int.Marshal(v.Order, bs[n:])
	n += marshalTime(v.InsertedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func unmarshalNoteItem(bs []byte) (v NoteItem, n int, err error) {
	var nn int
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.Content, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + nn, err
	}
	n += nn
	if v.Order, nn, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + nn, err
	}
	n += nn
	if v.InsertedAt, nn, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + nn, err
	}
	n += nn
	v.UpdatedAt, nn, err = unmarshalTime(bs[n:])
	n += nn
	return v, n, err
}

func sizeReference(v BlockReference) int {
	return ord.String.Size(v.ID) +
		ord.String.Size(v.SourceBlockID) +
		ord.String.Size(v.SourceNoteItemID) +
		ord.String.Size(v.TargetBlockID) +
		varint.Int.Size(int(v.Type)) +
		ord.String.Size(v.Context) +
		sizeTime(v.InsertedAt)
}

func marshalReference(v BlockReference, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.SourceBlockID, bs[n:])
	n += ord.String.Marshal(v.SourceNoteItemID, bs[n:])
	n += ord.String.Marshal(v.TargetBlockID, bs[n:])
	n += varint.Int.Marshal(int(v.Type), bs[n:])
	n += ord.String.Marshal(v.Context, bs[n:])
	n += marshalTime(v.InsertedAt, bs[n:])
	return n
}

func unmarshalReference(bs []byte) (v BlockReference, n int, err error) {
	var nn int
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.SourceBlockID, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + nn, err
	}
	n += nn
	if v.SourceNoteItemID, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + nn, err
	}
	n += nn
	if v.TargetBlockID, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + nn, err
	}
	n += nn
	var typ int
	if typ, nn, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + nn, err
	}
	n += nn
	v.Type = ReferenceType(typ)
	if v.Context, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + nn, err
	}
	n += nn
	v.InsertedAt, nn, err = unmarshalTime(bs[n:])
	n += nn
	return v, n, err
}

// BlockMUS serializes knowledge blocks.
var BlockMUS = blockMUS{}

type blockMUS struct{}

func (blockMUS) Size(b KnowledgeBlock) int {
	n := ord.String.Size(b.ID) +
		ord.String.Size(b.UserID) +
		ord.String.Size(b.LibraryItemID) +
		sizeCore(b.Core) +
		varint.Int.Size(b.Position)
	n += varint.Int.Size(len(b.NoteItems))
	for _, item := range b.NoteItems {
		n += sizeNoteItem(item)
	}
	n += varint.Int.Size(len(b.References))
	for _, ref := range b.References {
		n += sizeReference(ref)
	}
	return n + sizeStrings(b.Backlinks) + sizeTime(b.InsertedAt) + sizeTime(b.UpdatedAt)
}

func (blockMUS) Marshal(b KnowledgeBlock, bs []byte) (n int) {
	n = ord.String.Marshal(b.ID, bs)
	n += ord.String.Marshal(b.UserID, bs[n:])
	n += ord.String.Marshal(b.LibraryItemID, bs[n:])
	n += marshalCore(b.Core, bs[n:])
	n += varint.Int.Marshal(b.Position, bs[n:])
	n += varint.Int.Marshal(len(b.NoteItems), bs[n:])
	for _, item := range b.NoteItems {
		n += marshalNoteItem(item, bs[n:])
	}
	n += varint.Int.Marshal(len(b.References), bs[n:])
	for _, ref := range b.References {
		n += marshalReference(ref, bs[n:])
	}
	n += marshalStrings(b.Backlinks, bs[n:])
	n += marshalTime(b.InsertedAt, bs[n:])
	n += marshalTime(b.UpdatedAt, bs[n:])
	return n
}

func (blockMUS) Unmarshal(bs []byte) (b KnowledgeBlock, n int, err error) {
	var nn int
	if b.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return b, n, err
	}
	if b.UserID, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return b, n + nn, err
	}
	n += nn
	if b.LibraryItemID, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return b, n + nn, err
	}
	n += nn
	if b.Core, nn, err = unmarshalCore(bs[n:]); err != nil {
		return b, n + nn, err
	}
	n += nn
	if b.Position, nn, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return b, n + nn, err
	}
	n += nn
	var count int
	if count, nn, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return b, n + nn, err
	}
	n += nn
	if count < 0 {
		return b, n, fmt.Errorf("%w: negative length %d", ErrMalformedValue, count)
	}
	if count > 0 {
		b.NoteItems = make([]NoteItem, count)
		for i := 0; i < count; i++ {
			if b.NoteItems[i], nn, err = unmarshalNoteItem(bs[n:]); err != nil {
				return b, n + nn, err
			}
			n += nn
		}
	}
	if count, nn, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return b, n + nn, err
	}
	n += nn
	if count < 0 {
		return b, n, fmt.Errorf("%w: negative length %d", ErrMalformedValue, count)
	}
	if count > 0 {
		b.References = make([]BlockReference, count)
		for i := 0; i < count; i++ {
			if b.References[i], nn, err = unmarshalReference(bs[n:]); err != nil {
				return b, n + nn, err
			}
			n += nn
		}
	}
	if b.Backlinks, nn, err = unmarshalStrings(bs[n:]); err != nil {
		return b, n + nn, err
	}
	n += nn
	if b.InsertedAt, nn, err = unmarshalTime(bs[n:]); err != nil {
		return b, n + nn, err
	}
	n += nn
	b.UpdatedAt, nn, err = unmarshalTime(bs[n:])
	n += nn
	return b, n, err
}

// RelationMUS serializes relations.
var RelationMUS = relationMUS{}

type relationMUS struct{}

func (relationMUS) Size(r Relation) int {
	return varint.Uint64.Size(uint64(r.ID)) +
		ord.String.Size(r.SourceID) +
		ord.String.Size(r.TargetID) +
		varint.Int.Size(int(r.Type)) +
		raw.Float64.Size(r.Strength) +
		ord.Bool.Size(r.Bidirectional) +
		varint.Int.Size(int(r.Origin)) +
		sizeStringMap(r.Metadata) +
		varint.Int.Size(r.AccessCount) +
		sizeTime(r.LastAccessed) +
		sizeTime(r.InsertedAt) +
		sizeTime(r.UpdatedAt)
}

func (relationMUS) Marshal(r Relation, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(r.ID), bs)
	n += ord.String.Marshal(r.SourceID, bs[n:])
	n += ord.String.Marshal(r.TargetID, bs[n:])
	n += varint.Int.Marshal(int(r.Type), bs[n:])
	n += raw.Float64.Marshal(r.Strength, bs[n:])
	n += ord.Bool.Marshal(r.Bidirectional, bs[n:])
	n += varint.Int.Marshal(int(r.Origin), bs[n:])
	n += marshalStringMap(r.Metadata, bs[n:])
	n += varint.Int.Marshal(r.AccessCount, bs[n:])
	n += marshalTime(r.LastAccessed, bs[n:])
	n += marshalTime(r.InsertedAt, bs[n:])
	n += marshalTime(r.UpdatedAt, bs[n:])
	return n
}

func (relationMUS) Unmarshal(bs []byte) (r Relation, n int, err error) {
	var (
		nn int
		id uint64
	)
	if id, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return r, n, err
	}
	r.ID = ID(id)
	if r.SourceID, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + nn, err
	}
	n += nn
	if r.TargetID, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + nn, err
	}
	n += nn
	var typ int
	if typ, nn, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return r, n + nn, err
	}
	n += nn
	r.Type = RelationType(typ)
	if r.Strength, nn, err = raw.Float64.Unmarshal(bs[n:]); err != nil {
		return r, n + nn, err
	}
	n += nn
	if r.Bidirectional, nn, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return r, n + nn, err
	}
	n += nn
	var origin int
	if origin, nn, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return r, n + nn, err
	}
	n += nn
	r.Origin = Origin(origin)
	if r.Metadata, nn, err = unmarshalStringMap(bs[n:]); err != nil {
		return r, n + nn, err
	}
	n += nn
	if r.AccessCount, nn, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return r, n + nn, err
	}
	n += nn
	if r.LastAccessed, nn, err = unmarshalTime(bs[n:]); err != nil {
		return r, n + nn, err
	}
	n += nn
	if r.InsertedAt, nn, err = unmarshalTime(bs[n:]); err != nil {
		return r, n + nn, err
	}
	n += nn
	r.UpdatedAt, nn, err = unmarshalTime(bs[n:])
	n += nn
	return r, n, err
}

// TagMUS serializes tags.
var TagMUS = tagMUS{}

type tagMUS struct{}

func (tagMUS) Size(t Tag) int {
	return varint.Uint64.Size(uint64(t.ID)) +
		ord.String.Size(t.Name) +
		ord.String.Size(t.NormalizedName) +
		varint.Int.Size(int(t.Type)) +
		ord.String.Size(t.Category) +
		varint.Int.Size(t.UsageCount) +
		raw.Float64.Size(t.Weight) +
		varint.Uint64.Size(uint64(t.ParentID)) +
		sizeIDs(t.ChildrenIDs) +
		sizeStrings(t.Synonyms) +
		sizeTime(t.LastUsed) +
		sizeTime(t.ExpiresAt) +
		sizeTime(t.InsertedAt) +
		sizeTime(t.UpdatedAt)
}

func (tagMUS) Marshal(t Tag, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(t.ID), bs)
	n += ord.String.Marshal(t.Name, bs[n:])
	n += ord.String.Marshal(t.NormalizedName, bs[n:])
	n += varint.Int.Marshal(int(t.Type), bs[n:])
	n += ord.String.Marshal(t.Category, bs[n:])
	n += varint.Int.Marshal(t.UsageCount, bs[n:])
	n += raw.Float64.Marshal(t.Weight, bs[n:])
	n += varint.Uint64.Marshal(uint64(t.ParentID), bs[n:])
	n += marshalIDs(t.ChildrenIDs, bs[n:])
	n += marshalStrings(t.Synonyms, bs[n:])
	n += marshalTime(t.LastUsed, bs[n:])
	n += marshalTime(t.ExpiresAt, bs[n:])
	n += marshalTime(t.InsertedAt, bs[n:])
	n += marshalTime(t.UpdatedAt, bs[n:])
	return n
}

func (tagMUS) Unmarshal(bs []byte) (t Tag, n int, err error) {
	var (
		nn int
		id uint64
	)
	if id, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return t, n, err
	}
	t.ID = ID(id)
	if t.Name, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return t, n + nn, err
	}
	n += nn
	if t.NormalizedName, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return t, n + nn, err
	}
	n += nn
	var typ int
	if typ, nn, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return t, n + nn, err
	}
	n += nn
	t.Type = TagType(typ)
	if t.Category, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return t, n + nn, err
	}
	n += nn
	if t.UsageCount, nn, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return t, n + nn, err
	}
	n += nn
	if t.Weight, nn, err = raw.Float64.Unmarshal(bs[n:]); err != nil {
		return t, n + nn, err
	}
	n += nn
	if id, nn, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return t, n + nn, err
	}
	n += nn
	t.ParentID = ID(id)
	if t.ChildrenIDs, nn, err = unmarshalIDs(bs[n:]); err != nil {
		return t, n + nn, err
	}
	n += nn
	if t.Synonyms, nn, err = unmarshalStrings(bs[n:]); err != nil {
		return t, n + nn, err
	}
	n += nn
	if t.LastUsed, nn, err = unmarshalTime(bs[n:]); err != nil {
		return t, n + nn, err
	}
	n += nn
	if t.ExpiresAt, nn, err = unmarshalTime(bs[n:]); err != nil {
		return t, n + nn, err
	}
	n += nn
	if t.InsertedAt, nn, err = unmarshalTime(bs[n:]); err != nil {
		return t, n + nn, err
	}
	n += nn
	t.UpdatedAt, nn, err = unmarshalTime(bs[n:])
	n += nn
	return t, n, err
}

// TagUsageMUS serializes immutable tag usage records.
var TagUsageMUS = tagUsageMUS{}

type tagUsageMUS struct{}

func (tagUsageMUS) Size(u TagUsage) int {
	return varint.Uint64.Size(uint64(u.TagID)) +
		ord.String.Size(u.ItemID) +
		ord.String.Size(u.Method) +
		sizeTime(u.UsedAt)
}

func (tagUsageMUS) Marshal(u TagUsage, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(u.TagID), bs)
	n += ord.String.Marshal(u.ItemID, bs[n:])
	n += ord.String.Marshal(u.Method, bs[n:])
	n += marshalTime(u.UsedAt, bs[n:])
	return n
}

func (tagUsageMUS) Unmarshal(bs []byte) (u TagUsage, n int, err error) {
	var (
		nn int
		id uint64
	)
	if id, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return u, n, err
	}
	u.TagID = ID(id)
	if u.ItemID, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return u, n + nn, err
	}
	n += nn
	if u.Method, nn, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return u, n + nn, err
	}
	n += nn
	u.UsedAt, nn, err = unmarshalTime(bs[n:])
	n += nn
	return u, n, err
}
