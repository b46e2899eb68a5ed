package badger

import (
	"context"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hinata-sys/hinata/core"
	"github.com/hinata-sys/hinata/storage"
)

const (
	// aiTagTTL bounds the lifetime of AI-extracted tags that nobody uses.
	aiTagTTL = 30 * 24 * time.Hour
	// systemTagIdleTTL is how long an unused system tag survives cleanup.
	systemTagIdleTTL = 90 * 24 * time.Hour
	// weightHalfLife dampens the recency factor of tag weights.
	weightHalfLife = 7 * 24 * time.Hour
)

// systemTagNames are the built-in tags created by SeedSystemTags.
var systemTagNames = []string{"important", "todo", "done", "draft", "archived"}

// TagRepository implements storage.TagRepository for BadgerDB.
type TagRepository struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.TagRepository = (*TagRepository)(nil)

// NewTagRepository creates a new TagRepository.
func NewTagRepository(backend *Backend) (*TagRepository, error) {
	seq, err := backend.GetSequence(tagUsageSeq)
	if err != nil {
		return nil, err
	}
	return &TagRepository{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the usage sequence.
func (r *TagRepository) Close() error {
	return r.seq.Release()
}

// CreateTag creates a tag keyed by its normalized name. Creating an
// existing name returns the existing tag; a name matching a registered
// synonym resolves to the canonical tag.
func (r *TagRepository) CreateTag(ctx context.Context, name string, typ core.TagType, category string) (*core.Tag, error) {
	normalized := core.NormalizeTagName(name)
	if normalized == "" {
		return nil, core.ErrEmptyTagName
	}
	if len(normalized) > core.MaxTagLen {
		return nil, core.ErrFieldTooLong
	}
	if err := core.ValidateTagType(typ); err != nil {
		return nil, err
	}

	var result *core.Tag
	created := false
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := resolveTag(tx, normalized)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}

		now := stampNow()
		tag := &core.Tag{
			ID:             core.IDFromContent(normalized),
			Name:           strings.TrimSpace(name),
			NormalizedName: normalized,
			Type:           typ,
			Category:       category,
			InsertedAt:     now,
			UpdatedAt:      now,
		}
		if typ == core.TagAIExtracted {
			tag.ExpiresAt = now.Add(aiTagTTL)
		}

		if err := tx.Set(makeTagKey(tag.ID), storage.MarshalTag(tag)); err != nil {
			return err
		}
		if err := tx.Set(makeTagNameKey(normalized), storage.MarshalID(tag.ID)); err != nil {
			return err
		}

		result = tag
		created = true
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	if created {
		r.backend.notify(storage.EventTagCreated, result.ID.String())
	}
	return result, nil
}

// GetTag retrieves a tag by ID.
func (r *TagRepository) GetTag(ctx context.Context, id core.ID) (*core.Tag, error) {
	var result *core.Tag
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readTag(tx, makeTagKey(id))
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

// GetTagByName retrieves a tag by name or registered synonym.
func (r *TagRepository) GetTagByName(ctx context.Context, name string) (*core.Tag, error) {
	normalized := core.NormalizeTagName(name)
	if normalized == "" {
		return nil, core.ErrEmptyTagName
	}

	var result *core.Tag
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = resolveTag(tx, normalized)
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

// DeleteTag removes a tag, reparenting its children to the tag's own
// parent and dropping its name, synonym, and usage records.
func (r *TagRepository) DeleteTag(ctx context.Context, id core.ID) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeTagKey(id)
		tag, err := readTag(tx, key)
		if err != nil {
			return err
		}
		if tag == nil {
			return storage.ErrNotFound
		}

		// Unlink from the parent.
		if tag.ParentID != 0 {
			parent, err := readTag(tx, makeTagKey(tag.ParentID))
			if err != nil {
				return err
			}
			if parent != nil {
				parent.ChildrenIDs = removeID(parent.ChildrenIDs, id)
				parent.ChildrenIDs = appendIDs(parent.ChildrenIDs, tag.ChildrenIDs)
				if err := tx.Set(makeTagKey(parent.ID), storage.MarshalTag(parent)); err != nil {
					return err
				}
			}
		}

		// Reparent the children.
		for _, childID := range tag.ChildrenIDs {
			child, err := readTag(tx, makeTagKey(childID))
			if err != nil {
				return err
			}
			if child == nil {
				continue
			}
			child.ParentID = tag.ParentID
			if err := tx.Set(makeTagKey(childID), storage.MarshalTag(child)); err != nil {
				return err
			}
		}

		if err := tx.Delete(makeTagNameKey(tag.NormalizedName)); err != nil {
			return err
		}
		for _, syn := range tag.Synonyms {
			if err := tx.Delete(makeTagSynonymKey(syn)); err != nil {
				return err
			}
		}
		if err := deleteTagUsage(tx, id); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err == nil {
		r.backend.notify(storage.EventTagDeleted, id.String())
	}
	return err
}

// SetParent links a tag under a parent. Cycles and self-parenting are
// consistency violations.
func (r *TagRepository) SetParent(ctx context.Context, childID, parentID core.ID) error {
	if childID == parentID {
		return storage.ErrConsistency
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		child, err := readTag(tx, makeTagKey(childID))
		if err != nil {
			return err
		}
		parent, err := readTag(tx, makeTagKey(parentID))
		if err != nil {
			return err
		}
		if child == nil || parent == nil {
			return storage.ErrNotFound
		}

		// Reject a parent that already descends from the child.
		ancestor := parent
		for ancestor.ParentID != 0 {
			if ancestor.ParentID == childID {
				return storage.ErrConsistency
			}
			ancestor, err = readTag(tx, makeTagKey(ancestor.ParentID))
			if err != nil {
				return err
			}
			if ancestor == nil {
				break
			}
		}

		// Unlink from the previous parent.
		if child.ParentID != 0 && child.ParentID != parentID {
			previous, err := readTag(tx, makeTagKey(child.ParentID))
			if err != nil {
				return err
			}
			if previous != nil {
				previous.ChildrenIDs = removeID(previous.ChildrenIDs, childID)
				if err := tx.Set(makeTagKey(previous.ID), storage.MarshalTag(previous)); err != nil {
					return err
				}
			}
		}

		now := stampNow()
		child.ParentID = parentID
		child.UpdatedAt = now
		if !slices.Contains(parent.ChildrenIDs, childID) {
			parent.ChildrenIDs = append(parent.ChildrenIDs, childID)
		}
		parent.UpdatedAt = now

		if err := tx.Set(makeTagKey(childID), storage.MarshalTag(child)); err != nil {
			return err
		}
		if err := tx.Set(makeTagKey(parentID), storage.MarshalTag(parent)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// TagPath returns the chain from the tag up to its root ancestor, tag
// first.
func (r *TagRepository) TagPath(ctx context.Context, id core.ID) ([]*core.Tag, error) {
	var path []*core.Tag
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		current, err := readTag(tx, makeTagKey(id))
		if err != nil {
			return err
		}
		if current == nil {
			return storage.ErrNotFound
		}

		for current != nil {
			path = append(path, current)
			if current.ParentID == 0 {
				break
			}
			current, err = readTag(tx, makeTagKey(current.ParentID))
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return path, err
}

// AddSynonym registers an alternate name resolving to the tag.
func (r *TagRepository) AddSynonym(ctx context.Context, id core.ID, synonym string) error {
	normalized := core.NormalizeTagName(synonym)
	if normalized == "" {
		return core.ErrEmptyTagName
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		tag, err := readTag(tx, makeTagKey(id))
		if err != nil {
			return err
		}
		if tag == nil {
			return storage.ErrNotFound
		}

		// The synonym must not shadow a tag name or another synonym.
		if existing, err := resolveTag(tx, normalized); err != nil {
			return err
		} else if existing != nil {
			if existing.ID == id && slices.Contains(tag.Synonyms, normalized) {
				return nil
			}
			return storage.ErrDuplicateKey
		}

		tag.Synonyms = append(tag.Synonyms, normalized)
		tag.UpdatedAt = stampNow()

		if err := tx.Set(makeTagSynonymKey(normalized), storage.MarshalID(id)); err != nil {
			return err
		}
		if err := tx.Set(makeTagKey(id), storage.MarshalTag(tag)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// UseTag records a usage of the tag on an item: bumps UsageCount and
// LastUsed, recomputes Weight, and appends an immutable usage record.
func (r *TagRepository) UseTag(ctx context.Context, id core.ID, itemID, method string) error {
	if itemID == "" {
		return storage.ErrInvalidQuery
	}

	seq, err := r.seq.Next()
	if err != nil {
		return err
	}

	err = r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeTagKey(id)
		tag, err := readTag(tx, key)
		if err != nil {
			return err
		}
		if tag == nil {
			return storage.ErrNotFound
		}

		now := stampNow()
		tag.UsageCount++
		tag.LastUsed = now
		tag.Weight = tagWeight(tag.UsageCount, now, now)
		tag.UpdatedAt = now

		usage := &core.TagUsage{
			TagID:  id,
			ItemID: itemID,
			Method: method,
			UsedAt: now,
		}

		if err := tx.Set(key, storage.MarshalTag(tag)); err != nil {
			return err
		}
		if err := tx.Set(makeTagUsageKey(id, seq), storage.MarshalTagUsage(usage)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err == nil {
		r.backend.notify(storage.EventTagUsed, id.String())
	}
	return err
}

// UsageHistory returns the most recent usage records for a tag, newest
// first.
func (r *TagRepository) UsageHistory(ctx context.Context, id core.ID, limit int) ([]core.TagUsage, error) {
	var records []core.TagUsage
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if tag, err := readTag(tx, makeTagKey(id)); err != nil {
			return err
		} else if tag == nil {
			return storage.ErrNotFound
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialTagUsageKey(id)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var usage *core.TagUsage
			err := iter.Item().Value(func(val []byte) error {
				var err error
				usage, err = storage.UnmarshalTagUsage(val)
				return err
			})
			if err != nil {
				return err
			}
			records = append(records, *usage)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.Reverse(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// QueryTags scans tags matching the query, ordered by normalized name.
func (r *TagRepository) QueryTags(ctx context.Context, query *storage.TagQuery) ([]*core.Tag, error) {
	if query == nil {
		return nil, storage.ErrInvalidQuery
	}
	prefix := core.NormalizeTagName(query.NamePrefix)

	var results []*core.Tag
	err := r.scanTags(func(tag *core.Tag) {
		if prefix != "" && !strings.HasPrefix(tag.NormalizedName, prefix) {
			return
		}
		if query.Type != 0 && tag.Type != query.Type {
			return
		}
		if query.Category != "" && tag.Category != query.Category {
			return
		}
		if tag.UsageCount < query.MinUsage {
			return
		}
		results = append(results, tag)
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.Tag) int {
		return strings.Compare(a.NormalizedName, b.NormalizedName)
	})
	lo, hi := query.Page.Clamp(len(results))
	return results[lo:hi], nil
}

// PopularTags returns the most used tags, usage count descending.
func (r *TagRepository) PopularTags(ctx context.Context, limit int) ([]*core.Tag, error) {
	var results []*core.Tag
	err := r.scanTags(func(tag *core.Tag) {
		if tag.UsageCount > 0 {
			results = append(results, tag)
		}
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.Tag) int {
		if c := b.UsageCount - a.UsageCount; c != 0 {
			return c
		}
		return strings.Compare(a.NormalizedName, b.NormalizedName)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// CleanupTags removes expired AI tags and long-unused system tags.
// User tags are never removed.
func (r *TagRepository) CleanupTags(ctx context.Context, now time.Time) (int, error) {
	var stale []core.ID
	err := r.scanTags(func(tag *core.Tag) {
		switch tag.Type {
		case core.TagAIExtracted:
			if !tag.ExpiresAt.IsZero() && tag.ExpiresAt.Before(now) {
				stale = append(stale, tag.ID)
			}
		case core.TagSystem:
			if tag.UsageCount == 0 && tag.InsertedAt.Before(now.Add(-systemTagIdleTTL)) {
				stale = append(stale, tag.ID)
			}
		}
	})
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range stale {
		if err := r.DeleteTag(ctx, id); err != nil {
			if err == storage.ErrNotFound {
				continue
			}
			return deleted, err
		}
		deleted++
	}
	if deleted > 0 {
		r.backend.notify(storage.EventCleanupRun, "tags")
	}
	return deleted, nil
}

// SeedSystemTags creates the built-in system tags. Safe to call on
// every startup.
func (r *TagRepository) SeedSystemTags(ctx context.Context) error {
	for _, name := range systemTagNames {
		if _, err := r.CreateTag(ctx, name, core.TagSystem, "workflow"); err != nil {
			return err
		}
	}
	return nil
}

// scanTags visits every stored tag.
func (r *TagRepository) scanTags(visit func(*core.Tag)) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(tagPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var tag *core.Tag
			err := iter.Item().Value(func(val []byte) error {
				var err error
				tag, err = storage.UnmarshalTag(val)
				return err
			})
			if err != nil {
				return err
			}
			visit(tag)
		}
		return nil
	}, false)
}

// tagWeight combines usage volume with recency. A heavily used tag that
// goes cold loses weight gradually, with a half life of weightHalfLife.
func tagWeight(usageCount int, lastUsed, now time.Time) float64 {
	volume := math.Log(float64(usageCount)+1) / 10
	age := now.Sub(lastUsed)
	if age < 0 {
		age = 0
	}
	recency := 1 / (1 + age.Seconds()/weightHalfLife.Seconds())
	w := volume * recency
	if w > 1 {
		w = 1
	}
	return w
}

// resolveTag looks up a tag by normalized name, falling back to the
// synonym index. Returns nil, nil when neither matches.
func resolveTag(tx *badger.Txn, normalized string) (*core.Tag, error) {
	id, err := readTagID(tx, makeTagNameKey(normalized))
	if err != nil {
		return nil, err
	}
	if id == 0 {
		id, err = readTagID(tx, makeTagSynonymKey(normalized))
		if err != nil {
			return nil, err
		}
	}
	if id == 0 {
		return nil, nil
	}
	return readTag(tx, makeTagKey(id))
}

// readTagID reads an ID value. Returns 0 when the key doesn't exist.
func readTagID(tx *badger.Txn, key []byte) (core.ID, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, nil
		}
		return 0, err
	}

	var id core.ID
	err = item.Value(func(val []byte) error {
		var err error
		id, err = storage.UnmarshalID(val)
		return err
	})
	return id, err
}

// readTag reads a tag from the transaction. Returns nil, nil when the
// key doesn't exist.
func readTag(tx *badger.Txn, key []byte) (*core.Tag, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var tag *core.Tag
	err = item.Value(func(val []byte) error {
		var err error
		tag, err = storage.UnmarshalTag(val)
		return err
	})
	return tag, err
}

// deleteTagUsage removes a tag's usage records.
func deleteTagUsage(tx *badger.Txn, id core.ID) error {
	var stale [][]byte
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makePartialTagUsageKey(id)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	for iter.Rewind(); iter.Valid(); iter.Next() {
		stale = append(stale, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, key := range stale {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func removeID(list []core.ID, id core.ID) []core.ID {
	kept := list[:0]
	for _, v := range list {
		if v != id {
			kept = append(kept, v)
		}
	}
	return kept
}

func appendIDs(list []core.ID, add []core.ID) []core.ID {
	for _, id := range add {
		if !slices.Contains(list, id) {
			list = append(list, id)
		}
	}
	return list
}
