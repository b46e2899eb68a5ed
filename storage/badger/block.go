package badger

import (
	"context"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/hinata-sys/hinata/core"
	"github.com/hinata-sys/hinata/storage"
)

// BlockRepository implements storage.BlockRepository for BadgerDB.
type BlockRepository struct {
	backend *Backend
}

var _ storage.BlockRepository = (*BlockRepository)(nil)

// NewBlockRepository creates a new BlockRepository.
func NewBlockRepository(backend *Backend) (*BlockRepository, error) {
	return &BlockRepository{
		backend: backend,
	}, nil
}

// Close releases resources. BlockRepository has no resources to release.
func (r *BlockRepository) Close() error {
	return nil
}

// StoreBlock validates and stores a knowledge block. Backlinks are
// maintained by the store and reset on insert.
func (r *BlockRepository) StoreBlock(ctx context.Context, block *core.KnowledgeBlock) error {
	if err := core.ValidateBlock(block); err != nil {
		return err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeBlockKey(block.ID)

		existing, err := readBlock(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return storage.ErrDuplicateKey
		}

		block.Backlinks = nil
		block.References = nil
		block.InsertedAt = stampNow()
		block.UpdatedAt = block.InsertedAt
		sortNoteItems(block.NoteItems)

		if err := tx.Set(key, storage.MarshalBlock(block)); err != nil {
			return err
		}
		if err := writeBlockIndexes(tx, block); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err == nil {
		r.backend.notify(storage.EventBlockStored, block.ID)
	}
	return err
}

// GetBlock retrieves a single block by ID.
func (r *BlockRepository) GetBlock(ctx context.Context, id string) (*core.KnowledgeBlock, error) {
	var result *core.KnowledgeBlock
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readBlock(tx, makeBlockKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// UpdateBlock applies a partial update to an existing block.
func (r *BlockRepository) UpdateBlock(ctx context.Context, id string, patch *core.BlockPatch) (*core.KnowledgeBlock, error) {
	var result *core.KnowledgeBlock
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeBlockKey(id)
		old, err := readBlock(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		updated := *old
		patch.Apply(&updated)
		updated.ID = old.ID
		updated.UserID = old.UserID
		updated.UpdatedAt = stampNow()

		if err := core.ValidateBlock(&updated); err != nil {
			return err
		}

		if err := deleteBlockIndexes(tx, old); err != nil {
			return err
		}
		if err := tx.Set(key, storage.MarshalBlock(&updated)); err != nil {
			return err
		}
		if err := writeBlockIndexes(tx, &updated); err != nil {
			return err
		}

		result = &updated
		return tx.Commit()
	}, true)

	if err == nil {
		r.backend.notify(storage.EventBlockUpdated, id)
	}
	return result, err
}

// DeleteBlock removes a block, its index entries, and both sides of
// every reference it participates in.
func (r *BlockRepository) DeleteBlock(ctx context.Context, id string) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeBlockKey(id)
		block, err := readBlock(tx, key)
		if err != nil {
			return err
		}
		if block == nil {
			return storage.ErrNotFound
		}

		// Outgoing references: drop the backlink on each target.
		for _, ref := range block.References {
			if err := tx.Delete(makeBlockRefKey(ref.ID)); err != nil {
				return err
			}
			target, err := readBlock(tx, makeBlockKey(ref.TargetBlockID))
			if err != nil {
				return err
			}
			if target == nil {
				continue
			}
			target.Backlinks = removeString(target.Backlinks, id)
			if err := tx.Set(makeBlockKey(target.ID), storage.MarshalBlock(target)); err != nil {
				return err
			}
		}

		// Incoming references: drop them from each referencing block.
		for _, sourceID := range block.Backlinks {
			source, err := readBlock(tx, makeBlockKey(sourceID))
			if err != nil {
				return err
			}
			if source == nil {
				continue
			}
			kept := source.References[:0]
			for _, ref := range source.References {
				if ref.TargetBlockID == id {
					if err := tx.Delete(makeBlockRefKey(ref.ID)); err != nil {
						return err
					}
					continue
				}
				kept = append(kept, ref)
			}
			source.References = kept
			if err := tx.Set(makeBlockKey(sourceID), storage.MarshalBlock(source)); err != nil {
				return err
			}
		}

		if err := deleteBlockIndexes(tx, block); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err == nil {
		r.backend.notify(storage.EventBlockDeleted, id)
	}
	return err
}

// GetBlocksByUser retrieves blocks owned by a user, newest first.
func (r *BlockRepository) GetBlocksByUser(ctx context.Context, userID string, page storage.Pagination) ([]*core.KnowledgeBlock, error) {
	blocks, err := r.collectByIndex(blockUserPrefix + ":" + userID + ":")
	if err != nil {
		return nil, err
	}
	slices.SortFunc(blocks, func(a, b *core.KnowledgeBlock) int {
		return b.InsertedAt.Compare(a.InsertedAt)
	})
	lo, hi := page.Clamp(len(blocks))
	return blocks[lo:hi], nil
}

// GetBlocksByLibraryItem retrieves the blocks attached to a library
// item, ordered by Position.
func (r *BlockRepository) GetBlocksByLibraryItem(ctx context.Context, libraryItemID string) ([]*core.KnowledgeBlock, error) {
	blocks, err := r.collectByIndex(blockItemPrefix + ":" + libraryItemID + ":")
	if err != nil {
		return nil, err
	}
	slices.SortFunc(blocks, func(a, b *core.KnowledgeBlock) int {
		if c := a.Position - b.Position; c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return blocks, nil
}

// GetBlocksByTag retrieves blocks carrying the (normalized) tag.
func (r *BlockRepository) GetBlocksByTag(ctx context.Context, tag string, page storage.Pagination) ([]*core.KnowledgeBlock, error) {
	normalized := core.NormalizeTagName(tag)
	if normalized == "" {
		return nil, storage.ErrInvalidQuery
	}
	blocks, err := r.collectByIndex(blockTagPrefix + ":" + normalized + ":")
	if err != nil {
		return nil, err
	}
	slices.SortFunc(blocks, func(a, b *core.KnowledgeBlock) int {
		return b.InsertedAt.Compare(a.InsertedAt)
	})
	lo, hi := page.Clamp(len(blocks))
	return blocks[lo:hi], nil
}

// AddNoteItem appends a note item, keeping items sorted by Order.
func (r *BlockRepository) AddNoteItem(ctx context.Context, blockID string, item *core.NoteItem) error {
	if err := core.ValidateNoteItem(item); err != nil {
		return err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeBlockKey(blockID)
		block, err := readBlock(tx, key)
		if err != nil {
			return err
		}
		if block == nil {
			return storage.ErrNotFound
		}
		if len(block.NoteItems) >= core.MaxNoteItems {
			return storage.ErrInvalidQuery
		}

		if item.ID == "" {
			item.ID = core.NewUUID()
		}
		item.InsertedAt = stampNow()
		item.UpdatedAt = item.InsertedAt

		block.NoteItems = append(block.NoteItems, *item)
		sortNoteItems(block.NoteItems)
		block.UpdatedAt = item.InsertedAt

		if err := tx.Set(key, storage.MarshalBlock(block)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err == nil {
		r.backend.notify(storage.EventBlockUpdated, blockID)
	}
	return err
}

// RemoveNoteItem removes a note item from a block.
func (r *BlockRepository) RemoveNoteItem(ctx context.Context, blockID, itemID string) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeBlockKey(blockID)
		block, err := readBlock(tx, key)
		if err != nil {
			return err
		}
		if block == nil {
			return storage.ErrNotFound
		}

		idx := -1
		for i, item := range block.NoteItems {
			if item.ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return storage.ErrNotFound
		}

		block.NoteItems = append(block.NoteItems[:idx], block.NoteItems[idx+1:]...)
		block.UpdatedAt = stampNow()

		if err := tx.Set(key, storage.MarshalBlock(block)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err == nil {
		r.backend.notify(storage.EventBlockUpdated, blockID)
	}
	return err
}

// ReorderNoteItems rewrites note item order to match ids, which must be
// a permutation of the block's current item IDs.
func (r *BlockRepository) ReorderNoteItems(ctx context.Context, blockID string, ids []string) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeBlockKey(blockID)
		block, err := readBlock(tx, key)
		if err != nil {
			return err
		}
		if block == nil {
			return storage.ErrNotFound
		}
		if len(ids) != len(block.NoteItems) {
			return storage.ErrInvalidQuery
		}

		byID := make(map[string]core.NoteItem, len(block.NoteItems))
		for _, item := range block.NoteItems {
			byID[item.ID] = item
		}

		now := stampNow()
		reordered := make([]core.NoteItem, 0, len(ids))
		for i, id := range ids {
			item, ok := byID[id]
			if !ok {
				return storage.ErrInvalidQuery
			}
			delete(byID, id)
			item.Order = i
			item.UpdatedAt = now
			reordered = append(reordered, item)
		}

		block.NoteItems = reordered
		block.UpdatedAt = now

		if err := tx.Set(key, storage.MarshalBlock(block)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err == nil {
		r.backend.notify(storage.EventBlockUpdated, blockID)
	}
	return err
}

// AddReference records a reference between two existing blocks and adds
// the matching backlink to the target, in one transaction.
func (r *BlockRepository) AddReference(ctx context.Context, ref *core.BlockReference) error {
	if err := core.ValidateReference(ref); err != nil {
		return err
	}
	if ref.SourceBlockID == ref.TargetBlockID {
		return storage.ErrConsistency
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		sourceKey := makeBlockKey(ref.SourceBlockID)
		source, err := readBlock(tx, sourceKey)
		if err != nil {
			return err
		}
		targetKey := makeBlockKey(ref.TargetBlockID)
		target, err2 := readBlock(tx, targetKey)
		if err2 != nil {
			return err2
		}
		if source == nil || target == nil {
			return storage.ErrConsistency
		}

		for _, existing := range source.References {
			if existing.TargetBlockID == ref.TargetBlockID && existing.Type == ref.Type {
				return storage.ErrDuplicateKey
			}
		}

		if ref.ID == "" {
			ref.ID = core.NewUUID()
		}
		ref.InsertedAt = stampNow()

		source.References = append(source.References, *ref)
		source.UpdatedAt = ref.InsertedAt
		if !slices.Contains(target.Backlinks, ref.SourceBlockID) {
			target.Backlinks = append(target.Backlinks, ref.SourceBlockID)
		}
		target.UpdatedAt = ref.InsertedAt

		if err := tx.Set(sourceKey, storage.MarshalBlock(source)); err != nil {
			return err
		}
		if err := tx.Set(targetKey, storage.MarshalBlock(target)); err != nil {
			return err
		}
		if err := tx.Set(makeBlockRefKey(ref.ID), []byte(ref.SourceBlockID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err == nil {
		r.backend.notify(storage.EventReferenceAdded, ref.ID)
	}
	return err
}

// RemoveReference removes a reference and its backlink.
func (r *BlockRepository) RemoveReference(ctx context.Context, refID string) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		refKey := makeBlockRefKey(refID)
		item, err := tx.Get(refKey)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		var sourceID string
		if err := item.Value(func(val []byte) error {
			sourceID = string(val)
			return nil
		}); err != nil {
			return err
		}

		sourceKey := makeBlockKey(sourceID)
		source, err := readBlock(tx, sourceKey)
		if err != nil {
			return err
		}
		if source == nil {
			return storage.ErrNotFound
		}

		idx := -1
		for i, ref := range source.References {
			if ref.ID == refID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return storage.ErrNotFound
		}
		removed := source.References[idx]
		source.References = append(source.References[:idx], source.References[idx+1:]...)
		source.UpdatedAt = stampNow()

		// Keep the backlink if another reference to the same target remains.
		stillLinked := false
		for _, ref := range source.References {
			if ref.TargetBlockID == removed.TargetBlockID {
				stillLinked = true
				break
			}
		}
		if !stillLinked {
			target, err := readBlock(tx, makeBlockKey(removed.TargetBlockID))
			if err != nil {
				return err
			}
			if target != nil {
				target.Backlinks = removeString(target.Backlinks, sourceID)
				target.UpdatedAt = source.UpdatedAt
				if err := tx.Set(makeBlockKey(target.ID), storage.MarshalBlock(target)); err != nil {
					return err
				}
			}
		}

		if err := tx.Set(sourceKey, storage.MarshalBlock(source)); err != nil {
			return err
		}
		if err := tx.Delete(refKey); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err == nil {
		r.backend.notify(storage.EventReferenceRemoved, refID)
	}
	return err
}

// GetReferences returns the outgoing references of a block.
func (r *BlockRepository) GetReferences(ctx context.Context, blockID string) ([]core.BlockReference, error) {
	block, err := r.GetBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	return block.References, nil
}

// GetBacklinks returns the IDs of blocks referencing this block.
func (r *BlockRepository) GetBacklinks(ctx context.Context, blockID string) ([]string, error) {
	block, err := r.GetBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	return block.Backlinks, nil
}

// SearchBlocks runs a full-text search over blocks, including note item
// contents.
func (r *BlockRepository) SearchBlocks(ctx context.Context, query *storage.BlockQuery) (*storage.BlockSearchResult, error) {
	if query == nil {
		return nil, storage.ErrInvalidQuery
	}

	terms := make([]string, 0, len(query.Terms))
	for _, t := range query.Terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			terms = append(terms, t)
		}
	}

	var matches []*storage.BlockMatch
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(blockPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var block *core.KnowledgeBlock
			err := iter.Item().Value(func(val []byte) error {
				var err error
				block, err = storage.UnmarshalBlock(val)
				return err
			})
			if err != nil {
				return err
			}
			if !blockMatchesQuery(block, query) {
				continue
			}

			blob := block.SearchBlob()
			score := 1.0
			matched := true
			for _, term := range terms {
				n := strings.Count(blob, term)
				if n == 0 {
					matched = false
					break
				}
				score += float64(n)
			}
			if !matched {
				continue
			}
			matches = append(matches, &storage.BlockMatch{Block: block, Score: score})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matches, func(a, b *storage.BlockMatch) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Block.ID, b.Block.ID)
	})

	result := &storage.BlockSearchResult{Total: len(matches)}
	lo, hi := query.Page.Clamp(len(matches))
	result.Matches = matches[lo:hi]
	return result, nil
}

// BlockStatistics summarizes a user's blocks.
func (r *BlockRepository) BlockStatistics(ctx context.Context, userID string) (*storage.BlockStatistics, error) {
	blocks, err := r.collectByIndex(blockUserPrefix + ":" + userID + ":")
	if err != nil {
		return nil, err
	}

	stats := &storage.BlockStatistics{
		ByAccess:      make(map[core.AccessLevel]int),
		CreatedPerDay: make(map[string]int),
	}
	tagCounts := make(map[string]int)
	for _, block := range blocks {
		stats.TotalBlocks++
		stats.TotalNoteItems += len(block.NoteItems)
		stats.TotalReferences += len(block.References)
		stats.ByAccess[block.Access]++
		stats.CreatedPerDay[block.InsertedAt.UTC().Format("2006-01-02")]++
		for _, tag := range block.Tags {
			tagCounts[core.NormalizeTagName(tag)]++
		}
	}
	if stats.TotalBlocks > 0 {
		stats.MeanNoteItems = float64(stats.TotalNoteItems) / float64(stats.TotalBlocks)
	}

	for tag, count := range tagCounts {
		stats.TopTags = append(stats.TopTags, storage.TagCount{Tag: tag, Count: count})
	}
	slices.SortFunc(stats.TopTags, func(a, b storage.TagCount) int {
		if c := b.Count - a.Count; c != 0 {
			return c
		}
		return strings.Compare(a.Tag, b.Tag)
	})
	if len(stats.TopTags) > 10 {
		stats.TopTags = stats.TopTags[:10]
	}
	return stats, nil
}

// collectByIndex scans an index prefix and loads the referenced blocks.
func (r *BlockRepository) collectByIndex(prefix string) ([]*core.KnowledgeBlock, error) {
	var results []*core.KnowledgeBlock
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id string
			if err := iter.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}
			block, err := readBlock(tx, makeBlockKey(id))
			if err != nil {
				return err
			}
			if block != nil {
				results = append(results, block)
			}
		}
		return nil
	}, false)
	return results, err
}

func blockMatchesQuery(b *core.KnowledgeBlock, q *storage.BlockQuery) bool {
	if q.UserID != "" && b.UserID != q.UserID {
		return false
	}
	if q.LibraryItemID != "" && b.LibraryItemID != q.LibraryItemID {
		return false
	}
	if q.Access != 0 && b.Access != q.Access {
		return false
	}
	if !q.Start.IsZero() && b.InsertedAt.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && !b.InsertedAt.Before(q.End) {
		return false
	}
	if len(q.Tags) > 0 {
		have := normalizedTagSet(b.Tags)
		for _, tag := range q.Tags {
			if !have[core.NormalizeTagName(tag)] {
				return false
			}
		}
	}
	return true
}

func sortNoteItems(items []core.NoteItem) {
	slices.SortStableFunc(items, func(a, b core.NoteItem) int {
		return a.Order - b.Order
	})
}

func removeString(list []string, s string) []string {
	kept := list[:0]
	for _, v := range list {
		if v != s {
			kept = append(kept, v)
		}
	}
	return kept
}

// writeBlockIndexes writes every secondary index entry for a block.
func writeBlockIndexes(tx *badger.Txn, b *core.KnowledgeBlock) error {
	idVal := []byte(b.ID)

	if err := tx.Set(makeBlockUserKey(b.UserID, b.ID), idVal); err != nil {
		return err
	}
	if err := tx.Set(makeBlockItemKey(b.LibraryItemID, b.ID), idVal); err != nil {
		return err
	}
	for _, tag := range b.Tags {
		normalized := core.NormalizeTagName(tag)
		if normalized == "" {
			continue
		}
		if err := tx.Set(makeBlockTagKey(normalized, b.ID), idVal); err != nil {
			return err
		}
	}
	return nil
}

// deleteBlockIndexes removes every secondary index entry for a block.
func deleteBlockIndexes(tx *badger.Txn, b *core.KnowledgeBlock) error {
	if err := tx.Delete(makeBlockUserKey(b.UserID, b.ID)); err != nil {
		return err
	}
	if err := tx.Delete(makeBlockItemKey(b.LibraryItemID, b.ID)); err != nil {
		return err
	}
	for _, tag := range b.Tags {
		normalized := core.NormalizeTagName(tag)
		if normalized == "" {
			continue
		}
		if err := tx.Delete(makeBlockTagKey(normalized, b.ID)); err != nil {
			return err
		}
	}
	return nil
}

// readBlock reads a block from the transaction. Returns nil, nil when
// the key doesn't exist.
func readBlock(tx *badger.Txn, key []byte) (*core.KnowledgeBlock, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var block *core.KnowledgeBlock
	err = item.Value(func(val []byte) error {
		var err error
		block, err = storage.UnmarshalBlock(val)
		return err
	})
	return block, err
}
