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

package storage

import (
	"context"
	"time"

	"github.com/hinata-sys/hinata/core"
)

// Repository provides common storage operations shared across all
// repositories. Implementations must be thread-safe and support
// concurrent access.
type Repository interface {
	// Close closes the storage backend and releases resources.
	Close() error
}

// PacketRepository provides operations for managing capture packets.
type PacketRepository interface {
	Repository

	// StorePacket validates and stores a packet, maintaining all
	// secondary indexes in the same transaction.
	// Returns ErrDuplicateKey if a packet with the same ID exists.
	StorePacket(ctx context.Context, packet *core.Packet) error

	// GetPacket retrieves a single packet by ID.
	// Returns ErrNotFound if the packet doesn't exist.
	GetPacket(ctx context.Context, id string) (*core.Packet, error)

	// UpdatePacket applies a partial update to an existing packet.
	// Unset patch fields are left untouched; stale index entries are
	// pruned and new ones written in the same transaction. The updated
	// packet is re-validated before the write.
	// Returns ErrNotFound if the packet doesn't exist.
	UpdatePacket(ctx context.Context, id string, patch *core.PacketPatch) (*core.Packet, error)

	// DeletePacket removes a packet and all of its index entries.
	// Returns ErrNotFound if the packet doesn't exist.
	DeletePacket(ctx context.Context, id string) error

	// GetPacketsByUser retrieves packets owned by a user, newest first.
	GetPacketsByUser(ctx context.Context, userID string, page Pagination) ([]*core.Packet, error)

	// GetPacketsBySource retrieves packets captured through a source.
	GetPacketsBySource(ctx context.Context, source core.CaptureSource, page Pagination) ([]*core.Packet, error)

	// GetPacketsByTag retrieves packets carrying the tag. The tag is
	// normalized before lookup.
	GetPacketsByTag(ctx context.Context, tag string, page Pagination) ([]*core.Packet, error)

	// GetPacketsByTimeRange retrieves packets where
	// start <= CaptureTimestamp < end, ordered by capture time.
	GetPacketsByTimeRange(ctx context.Context, start, end time.Time, page Pagination) ([]*core.Packet, error)

	// SearchPackets runs a full-text search with filters, sorting,
	// pagination, and optional aggregations. Aggregations are computed
	// over the full matching set before pagination.
	SearchPackets(ctx context.Context, query *PacketQuery) (*PacketSearchResult, error)

	// SimilarPackets ranks other packets by similarity to the given
	// one, combining shared tags, source, action, and owner. Packets
	// scoring below minScore are dropped.
	// Returns ErrNotFound if the reference packet doesn't exist.
	SimilarPackets(ctx context.Context, id string, minScore float64, limit int) ([]*PacketMatch, error)

	// AttentionTrend buckets a user's packets by capture time and
	// reports per-bucket counts, mean and peak attention, and a
	// capture-source breakdown.
	AttentionTrend(ctx context.Context, userID string, start, end time.Time, granularity TrendGranularity) ([]TrendBucket, error)

	// RebuildIndexes drops and rebuilds all packet secondary indexes
	// from the primary records.
	RebuildIndexes(ctx context.Context) error

	// CountPackets returns the total number of stored packets.
	CountPackets(ctx context.Context) (int, error)
}

// BlockRepository provides operations for managing knowledge blocks,
// their note items, and block-to-block references.
type BlockRepository interface {
	Repository

	// StoreBlock validates and stores a knowledge block.
	// Returns ErrDuplicateKey if a block with the same ID exists.
	StoreBlock(ctx context.Context, block *core.KnowledgeBlock) error

	// GetBlock retrieves a single block by ID.
	// Returns ErrNotFound if the block doesn't exist.
	GetBlock(ctx context.Context, id string) (*core.KnowledgeBlock, error)

	// UpdateBlock applies a partial update to an existing block,
	// re-validating before the write and keeping indexes current.
	UpdateBlock(ctx context.Context, id string, patch *core.BlockPatch) (*core.KnowledgeBlock, error)

	// DeleteBlock removes a block, its index entries, and both sides
	// of every reference it participates in.
	// Returns ErrNotFound if the block doesn't exist.
	DeleteBlock(ctx context.Context, id string) error

	// GetBlocksByUser retrieves blocks owned by a user.
	GetBlocksByUser(ctx context.Context, userID string, page Pagination) ([]*core.KnowledgeBlock, error)

	// GetBlocksByLibraryItem retrieves the blocks attached to a library
	// item, ordered by Position.
	GetBlocksByLibraryItem(ctx context.Context, libraryItemID string) ([]*core.KnowledgeBlock, error)

	// GetBlocksByTag retrieves blocks carrying the (normalized) tag.
	GetBlocksByTag(ctx context.Context, tag string, page Pagination) ([]*core.KnowledgeBlock, error)

	// AddNoteItem appends a note item to a block, keeping items sorted
	// by Order. Returns ErrInvalidQuery if the block is full.
	AddNoteItem(ctx context.Context, blockID string, item *core.NoteItem) error

	// RemoveNoteItem removes a note item from a block.
	// Returns ErrNotFound if the block or item doesn't exist.
	RemoveNoteItem(ctx context.Context, blockID, itemID string) error

	// ReorderNoteItems rewrites note item order to match ids, which
	// must be a permutation of the block's current item IDs.
	ReorderNoteItems(ctx context.Context, blockID string, ids []string) error

	// AddReference records a reference between two existing blocks and
	// adds the matching backlink to the target, in one transaction.
	// A self-reference or a missing endpoint is ErrConsistency;
	// an existing identical reference is ErrDuplicateKey.
	AddReference(ctx context.Context, ref *core.BlockReference) error

	// RemoveReference removes a reference and its backlink.
	// Returns ErrNotFound if the reference doesn't exist.
	RemoveReference(ctx context.Context, refID string) error

	// GetReferences returns the outgoing references of a block.
	GetReferences(ctx context.Context, blockID string) ([]core.BlockReference, error)

	// GetBacklinks returns the IDs of blocks referencing this block.
	GetBacklinks(ctx context.Context, blockID string) ([]string, error)

	// SearchBlocks runs a full-text search over blocks, including note
	// item contents.
	SearchBlocks(ctx context.Context, query *BlockQuery) (*BlockSearchResult, error)

	// BlockStatistics summarizes a user's blocks.
	BlockStatistics(ctx context.Context, userID string) (*BlockStatistics, error)
}

// RelationRepository provides operations for the typed relation graph.
type RelationRepository interface {
	Repository

	// CreateRelation validates and stores a relation. The ID is derived
	// from the (source, target, type) triple; creating a relation for
	// an existing triple updates its strength and metadata instead of
	// failing. Self-loops are ErrConsistency.
	// Returns the stored relation.
	CreateRelation(ctx context.Context, rel *core.Relation) (*core.Relation, error)

	// GetRelation retrieves a relation by ID and records the access,
	// bumping AccessCount and LastAccessed.
	// Returns ErrNotFound if the relation doesn't exist.
	GetRelation(ctx context.Context, id core.ID) (*core.Relation, error)

	// DeleteRelation removes a relation and its index entries.
	// Returns ErrNotFound if the relation doesn't exist.
	DeleteRelation(ctx context.Context, id core.ID) error

	// UpdateStrength sets the strength of an existing relation.
	// Strength must be in [0, 1].
	UpdateStrength(ctx context.Context, id core.ID, strength float64) error

	// QueryRelations scans relations matching the query. Query scans do
	// not record accesses.
	QueryRelations(ctx context.Context, query *RelationQuery) ([]*core.Relation, error)

	// RelationsForItem returns relations where the item is the source,
	// or the target of a bidirectional relation, optionally filtered by
	// type. Each returned relation has its access recorded.
	RelationsForItem(ctx context.Context, itemID string, types []core.RelationType) ([]*core.Relation, error)

	// BuildGraph walks the relation graph breadth first from one or
	// more roots, bounded by depth and a minimum strength, and reports
	// the discovered neighborhood with density and clusters.
	BuildGraph(ctx context.Context, rootIDs []string, depth int, minStrength float64) (*Graph, error)

	// RecommendRelated ranks items related to the given one through
	// first and second degree relations, strongest first. Edges weaker
	// than minStrength are not traversed.
	RecommendRelated(ctx context.Context, itemID string, limit int, minStrength float64) ([]RelatedItem, error)

	// DecayStrengths multiplies the strength of system-origin relations
	// not accessed since the cutoff by factor, deleting those that fall
	// below floor. Returns the number of relations touched.
	DecayStrengths(ctx context.Context, cutoff time.Time, factor, floor float64) (int, error)

	// CleanupRelations deletes system-origin relations last accessed
	// before the cutoff. User-origin relations are never removed.
	// Returns the number of relations deleted.
	CleanupRelations(ctx context.Context, cutoff time.Time) (int, error)
}

// TagRepository provides operations for the tag subsystem: hierarchy,
// synonyms, usage tracking, and lifecycle.
type TagRepository interface {
	Repository

	// CreateTag creates a tag with a content-derived ID from its
	// normalized name. Creating an existing name returns the existing
	// tag; a name matching a registered synonym resolves to the
	// canonical tag.
	CreateTag(ctx context.Context, name string, typ core.TagType, category string) (*core.Tag, error)

	// GetTag retrieves a tag by ID.
	// Returns ErrNotFound if the tag doesn't exist.
	GetTag(ctx context.Context, id core.ID) (*core.Tag, error)

	// GetTagByName retrieves a tag by name or registered synonym. The
	// name is normalized before lookup.
	GetTagByName(ctx context.Context, name string) (*core.Tag, error)

	// DeleteTag removes a tag, unlinking it from its parent and
	// reparenting its children to the tag's own parent.
	DeleteTag(ctx context.Context, id core.ID) error

	// SetParent links a tag under a parent. Cycles and self-parenting
	// are ErrConsistency.
	SetParent(ctx context.Context, childID, parentID core.ID) error

	// TagPath returns the chain from the tag up to its root ancestor,
	// tag first.
	TagPath(ctx context.Context, id core.ID) ([]*core.Tag, error)

	// AddSynonym registers an alternate name resolving to the tag.
	// A synonym colliding with an existing tag name or another tag's
	// synonym is ErrDuplicateKey.
	AddSynonym(ctx context.Context, id core.ID, synonym string) error

	// UseTag records a usage of the tag on an item: bumps UsageCount
	// and LastUsed, recomputes Weight, and appends an immutable usage
	// record.
	UseTag(ctx context.Context, id core.ID, itemID, method string) error

	// UsageHistory returns the most recent usage records for a tag,
	// newest first, up to limit.
	UsageHistory(ctx context.Context, id core.ID, limit int) ([]core.TagUsage, error)

	// QueryTags scans tags matching the query.
	QueryTags(ctx context.Context, query *TagQuery) ([]*core.Tag, error)

	// PopularTags returns the most used tags, ordered by usage count
	// descending.
	PopularTags(ctx context.Context, limit int) ([]*core.Tag, error)

	// CleanupTags removes expired AI tags and unused system tags.
	// User tags are never removed. Returns the number deleted.
	CleanupTags(ctx context.Context, now time.Time) (int, error)

	// SeedSystemTags creates the built-in system tags. Seeding is
	// idempotent.
	SeedSystemTags(ctx context.Context) error
}
