package core

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// ID is a content-derived identifier used for tags and relations.
// Packets and knowledge blocks carry caller-supplied UUID strings instead,
// because duplicate detection on external identity is part of their contract.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b
// hashing. Identical content always produces the identical ID.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// String renders the ID in decimal, the form used by the CLI and batch ops.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses the decimal form produced by ID.String.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	return ID(v), err
}

// NewUUID returns a fresh UUID string for packets and blocks.
func NewUUID() string {
	return uuid.NewString()
}

// IsValidUUID reports whether s parses as a UUID.
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// AccessLevel is the visibility of a capture or knowledge entity.
// The four levels form a monotonically wider visibility set.
type AccessLevel int

const (
	AccessPrivate AccessLevel = iota + 1
	AccessModelReadable
	AccessShared
	AccessWeb3Published
)

func (a AccessLevel) String() string {
	switch a {
	case AccessPrivate:
		return "PRIVATE"
	case AccessModelReadable:
		return "MODEL_READABLE"
	case AccessShared:
		return "SHARED"
	case AccessWeb3Published:
		return "WEB3_PUBLISHED"
	}
	return "UNKNOWN"
}

// CaptureSource identifies the pipeline a packet was captured through.
type CaptureSource int

const (
	CaptureWebClipper CaptureSource = iota + 1
	CaptureIOSShare
	CaptureAndroidShare
	CaptureScreenshotOCR
	CaptureManualInput
	CaptureWeChatForwarder
	CaptureAPIIngest
)

func (c CaptureSource) String() string {
	switch c {
	case CaptureWebClipper:
		return "web_clipper"
	case CaptureIOSShare:
		return "ios_share"
	case CaptureAndroidShare:
		return "android_share"
	case CaptureScreenshotOCR:
		return "screenshot_ocr"
	case CaptureManualInput:
		return "manual_input"
	case CaptureWeChatForwarder:
		return "wechat_forwarder"
	case CaptureAPIIngest:
		return "api_ingest"
	}
	return "unknown"
}

// UserAction is the capture gesture recorded with a packet.
type UserAction int

const (
	ActionQuickSave UserAction = iota + 1
	ActionDetailedEdit
	ActionHighlight
	ActionBookmark
	ActionShare
)

func (u UserAction) String() string {
	switch u {
	case ActionQuickSave:
		return "quick_save"
	case ActionDetailedEdit:
		return "detailed_edit"
	case ActionHighlight:
		return "highlight"
	case ActionBookmark:
		return "bookmark"
	case ActionShare:
		return "share"
	}
	return "unknown"
}

// ReferenceType qualifies a block-to-block reference.
type ReferenceType int

const (
	ReferenceStrong ReferenceType = iota + 1
	ReferenceWeak
	ReferenceHierarchical
	ReferenceSemantic
)

func (r ReferenceType) String() string {
	switch r {
	case ReferenceStrong:
		return "STRONG"
	case ReferenceWeak:
		return "WEAK"
	case ReferenceHierarchical:
		return "HIERARCHICAL"
	case ReferenceSemantic:
		return "SEMANTIC"
	}
	return "UNKNOWN"
}

// RelationType qualifies a generic relation between two item IDs.
type RelationType int

const (
	RelationStrongReference RelationType = iota + 1
	RelationWeakReference
	RelationSemanticSimilarity
	RelationTemporalAssociation
	RelationTagAssociation
	RelationUserDefined
	RelationDerived
)

func (r RelationType) String() string {
	switch r {
	case RelationStrongReference:
		return "STRONG_REFERENCE"
	case RelationWeakReference:
		return "WEAK_REFERENCE"
	case RelationSemanticSimilarity:
		return "SEMANTIC_SIMILARITY"
	case RelationTemporalAssociation:
		return "TEMPORAL_ASSOCIATION"
	case RelationTagAssociation:
		return "TAG_ASSOCIATION"
	case RelationUserDefined:
		return "USER_DEFINED"
	case RelationDerived:
		return "DERIVED"
	}
	return "UNKNOWN"
}

// TagType classifies how a tag came to exist.
type TagType int

const (
	TagUser TagType = iota + 1
	TagSystem
	TagAIExtracted
	TagContentBased
	TagBehavioral
)

func (t TagType) String() string {
	switch t {
	case TagUser:
		return "USER"
	case TagSystem:
		return "SYSTEM"
	case TagAIExtracted:
		return "AI_EXTRACTED"
	case TagContentBased:
		return "CONTENT_BASED"
	case TagBehavioral:
		return "BEHAVIORAL"
	}
	return "UNKNOWN"
}

// Origin distinguishes user-created records from system-created ones.
// Cleanup never expires user-origin records.
type Origin int

const (
	OriginUser Origin = iota + 1
	OriginSystem
)

// Core is the HiNATA tuple underlying every capture and knowledge entity:
// Highlight, Note, At (source), Tags, Access.
type Core struct {
	Highlight string
	Note      string
	At        string
	Tags      []string
	Access    AccessLevel
}

// DeviceContext describes the capturing device.
type DeviceContext struct {
	DeviceID   string
	DeviceType string
	OSVersion  string
	AppVersion string
	UserAgent  string
	Timezone   string
}

// Attachment is a binary artifact referenced by a packet payload.
type Attachment struct {
	ID        string
	Filename  string
	MimeType  string
	Size      uint64
	URL       string
	LocalPath string
	Checksum  string
}

// PacketMetadata carries capture provenance for a packet.
type PacketMetadata struct {
	PacketID         string
	CaptureSource    CaptureSource
	CaptureTimestamp time.Time
	UserAction       UserAction
	Device           DeviceContext
	AttentionScore   int // raw score, 0-100
}

// PacketPayload is the HiNATA content of a packet.
type PacketPayload struct {
	Core
	UserID      string
	Attachments []Attachment
}

// Packet is one ingested capture event. Identity is Metadata.PacketID.
// Packets are immutable once stored except via an explicit patch update.
type Packet struct {
	Metadata   PacketMetadata
	Payload    PacketPayload
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// ID returns the packet identity.
func (p *Packet) ID() string {
	return p.Metadata.PacketID
}

// SearchBlob returns the denormalized text searched by AND-of-terms
// substring matching: highlight, note, source, and tags, lowercased.
func (p *Packet) SearchBlob() string {
	parts := []string{
		p.Payload.Highlight,
		p.Payload.Note,
		p.Payload.At,
		strings.Join(p.Payload.Tags, " "),
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// NoteItem is an ordered piece of sub-content inside a knowledge block.
type NoteItem struct {
	ID         string
	Content    string
	Order      int
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// BlockReference is a directed edge between two knowledge blocks. It lives
// on the source block; the target block mirrors it in its backlink list.
type BlockReference struct {
	ID               string
	SourceBlockID    string
	SourceNoteItemID string // optional
	TargetBlockID    string
	Type             ReferenceType
	Context          string
	InsertedAt       time.Time
}

// KnowledgeBlock is a derived, user-curated knowledge unit.
type KnowledgeBlock struct {
	ID            string
	UserID        string
	LibraryItemID string
	Core
	Position   int // position in the parent item, zero when unknown
	NoteItems  []NoteItem
	References []BlockReference
	Backlinks  []string
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// SearchBlob returns the denormalized text used for substring matching.
func (b *KnowledgeBlock) SearchBlob() string {
	parts := []string{
		b.Highlight,
		b.Note,
		b.At,
		strings.Join(b.Tags, " "),
	}
	for _, item := range b.NoteItems {
		parts = append(parts, item.Content)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Relation is a typed, weighted, optionally bidirectional edge between two
// opaque item IDs. Its identity derives from the (source, target, type)
// triple, so creating the same triple twice resolves to the same record.
type Relation struct {
	ID            ID
	SourceID      string
	TargetID      string
	Type          RelationType
	Strength      float64 // [0,1]
	Bidirectional bool
	Origin        Origin
	Metadata      map[string]string
	AccessCount   int
	LastAccessed  time.Time
	InsertedAt    time.Time
	UpdatedAt     time.Time
}

// RelationID derives the identity of the (source, target, type) triple.
func RelationID(sourceID, targetID string, typ RelationType) ID {
	return IDFromContent(sourceID + "|" + targetID + "|" + strconv.Itoa(int(typ)))
}

// Tag is a named classification with hierarchy, synonyms, and usage-weighted
// ranking. Identity derives from the normalized name.
type Tag struct {
	ID             ID
	Name           string
	NormalizedName string
	Type           TagType
	Category       string
	UsageCount     int
	Weight         float64
	ParentID       ID // zero when the tag has no parent
	ChildrenIDs    []ID
	Synonyms       []string
	LastUsed       time.Time
	ExpiresAt      time.Time // zero means the tag never expires
	InsertedAt     time.Time
	UpdatedAt      time.Time
}

// TagUsage is an immutable record of one tag application.
type TagUsage struct {
	TagID  ID
	ItemID string
	Method string
	UsedAt time.Time
}
