package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/hinata-sys/hinata/core"
)

// Key prefixes for different data types
const (
	packetPrefix       = "pkt"
	packetUserPrefix   = "pktusr"
	packetSourcePrefix = "pktsrc"
	packetTagPrefix    = "pkttag"
	packetTokenPrefix  = "pkttok"
	packetTimePrefix   = "pktts"
	blockPrefix        = "blk"
	blockUserPrefix    = "blkusr"
	blockItemPrefix    = "blkitm"
	blockTagPrefix     = "blktag"
	blockRefPrefix     = "bref"
	relationPrefix     = "rel"
	relationSrcPrefix  = "relsrc"
	relationTgtPrefix  = "reltgt"
	relationTypePrefix = "reltyp"
	tagPrefix          = "tag"
	tagNamePrefix      = "tagnam"
	tagSynonymPrefix   = "tagsyn"
	tagUsagePrefix     = "taguse"
	tagUsageSeq        = "taguseseq"
)

// makePacketKey generates a key for a packet by ID.
func makePacketKey(id string) []byte {
	return []byte(packetPrefix + ":" + id)
}

// makePacketUserKey generates a composite key for the owner index.
// Format: prefix:userID:packetID
func makePacketUserKey(userID, packetID string) []byte {
	return []byte(packetUserPrefix + ":" + userID + ":" + packetID)
}

// makePacketSourceKey generates a composite key for the source index.
func makePacketSourceKey(source core.CaptureSource, packetID string) []byte {
	return []byte(fmt.Sprintf("%s:%d:%s", packetSourcePrefix, source, packetID))
}

// makePacketTagKey generates a composite key for the tag index. The tag
// must already be normalized.
func makePacketTagKey(tag, packetID string) []byte {
	return []byte(packetTagPrefix + ":" + tag + ":" + packetID)
}

// makePacketTokenKey generates a composite key for the free-text token
// index. The token comes from core.Tokenize.
func makePacketTokenKey(token, packetID string) []byte {
	return []byte(packetTokenPrefix + ":" + token + ":" + packetID)
}

// makePacketTimeKey generates a composite key for the capture time index.
// The timestamp is written in BigEndian order so lexicographic sort works
// correctly for range scans.
func makePacketTimeKey(ts time.Time, packetID string) []byte {
	prefix := []byte(packetTimePrefix + ":")
	buf := make([]byte, len(prefix)+8+len(packetID))
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(ts.UnixMicro()))
	copy(buf[offset+8:], packetID)
	return buf
}

// makePartialPacketTimeKey generates the seek key for time range scans.
func makePartialPacketTimeKey(ts time.Time) []byte {
	prefix := []byte(packetTimePrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(ts.UnixMicro()))
	return buf
}

// makeBlockKey generates a key for a knowledge block by ID.
func makeBlockKey(id string) []byte {
	return []byte(blockPrefix + ":" + id)
}

// makeBlockUserKey generates a composite key for the owner index.
func makeBlockUserKey(userID, blockID string) []byte {
	return []byte(blockUserPrefix + ":" + userID + ":" + blockID)
}

// makeBlockItemKey generates a composite key for the library item index.
func makeBlockItemKey(libraryItemID, blockID string) []byte {
	return []byte(blockItemPrefix + ":" + libraryItemID + ":" + blockID)
}

// makeBlockTagKey generates a composite key for the tag index. The tag
// must already be normalized.
func makeBlockTagKey(tag, blockID string) []byte {
	return []byte(blockTagPrefix + ":" + tag + ":" + blockID)
}

// makeBlockRefKey generates a key for the reference lookup index. The
// value stored under it is the owning (source) block ID.
func makeBlockRefKey(refID string) []byte {
	return []byte(blockRefPrefix + ":" + refID)
}

// makeRelationKey generates a key for a relation by ID.
func makeRelationKey(id core.ID) []byte {
	prefix := []byte(relationPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeRelationEndpointKey generates a composite key for the source or
// target index.
func makeRelationEndpointKey(prefix, itemID string, id core.ID) []byte {
	p := []byte(prefix + ":" + itemID + ":")
	buf := make([]byte, len(p)+8)
	offset := copy(buf, p)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeRelationTypeKey generates a composite key for the type index.
func makeRelationTypeKey(typ core.RelationType, id core.ID) []byte {
	p := []byte(fmt.Sprintf("%s:%d:", relationTypePrefix, typ))
	buf := make([]byte, len(p)+8)
	offset := copy(buf, p)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeTagKey generates a key for a tag by ID.
func makeTagKey(id core.ID) []byte {
	prefix := []byte(tagPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeTagNameKey generates a key for tag lookup by normalized name.
func makeTagNameKey(normalized string) []byte {
	return []byte(tagNamePrefix + ":" + normalized)
}

// makeTagSynonymKey generates a key for tag lookup by normalized synonym.
func makeTagSynonymKey(normalized string) []byte {
	return []byte(tagSynonymPrefix + ":" + normalized)
}

// makeTagUsageKey generates a composite key for usage records.
// Format: prefix:tagID:seq with both encoded BigEndian so records for a
// tag scan in insertion order.
func makeTagUsageKey(tagID core.ID, seq uint64) []byte {
	prefix := []byte(tagUsagePrefix + ":")
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(tagID))
	binary.BigEndian.PutUint64(buf[offset+8:], seq)
	return buf
}

// makePartialTagUsageKey generates the scan prefix for a tag's usage
// records.
func makePartialTagUsageKey(tagID core.ID) []byte {
	prefix := []byte(tagUsagePrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(tagID))
	return buf
}

// stampNow returns the current UTC time at the precision the wire format
// keeps, so a stored entity reads back equal to the value returned from
// the call that stamped it.
func stampNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
