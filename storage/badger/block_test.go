package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hinata-sys/hinata/core"
	"github.com/hinata-sys/hinata/storage"
)

func testBlock(userID, libraryItemID, highlight string, tags ...string) *core.KnowledgeBlock {
	return &core.KnowledgeBlock{
		ID:            core.NewUUID(),
		UserID:        userID,
		LibraryItemID: libraryItemID,
		Core: core.Core{
			Highlight: highlight,
			At:        "https://example.com/article",
			Tags:      tags,
			Access:    core.AccessPrivate,
		},
	}
}

func TestBlockBasics(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	block := testBlock("user-1", "lib-1", "a captured idea", "notes")
	if err := repos.Blocks.StoreBlock(ctx, block); err != nil {
		t.Fatalf("Failed to store block: %v", err)
	}

	got, err := repos.Blocks.GetBlock(ctx, block.ID)
	if err != nil {
		t.Fatalf("Failed to get block: %v", err)
	}
	if got.Highlight != "a captured idea" {
		t.Fatalf("Expected 'a captured idea', got '%s'", got.Highlight)
	}

	dup := testBlock("user-1", "lib-1", "other")
	dup.ID = block.ID
	if err := repos.Blocks.StoreBlock(ctx, dup); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	byItem, err := repos.Blocks.GetBlocksByLibraryItem(ctx, "lib-1")
	if err != nil {
		t.Fatalf("Failed to query by library item: %v", err)
	}
	if len(byItem) != 1 {
		t.Fatalf("Expected 1 block, got %d", len(byItem))
	}
}

func TestBlockPositionOrder(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	positions := []int{2, 0, 1}
	ids := make([]string, len(positions))
	for i, pos := range positions {
		b := testBlock("user-1", "lib-1", "positioned")
		b.Position = pos
		ids[i] = b.ID
		if err := repos.Blocks.StoreBlock(ctx, b); err != nil {
			t.Fatalf("Failed to store block: %v", err)
		}
	}

	byItem, err := repos.Blocks.GetBlocksByLibraryItem(ctx, "lib-1")
	if err != nil {
		t.Fatalf("Failed to query by library item: %v", err)
	}
	for i, b := range byItem {
		if b.Position != i {
			t.Fatalf("Expected position %d at index %d, got %d", i, i, b.Position)
		}
	}
}

func TestNoteItemLifecycle(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	block := testBlock("user-1", "lib-1", "with notes")
	if err := repos.Blocks.StoreBlock(ctx, block); err != nil {
		t.Fatalf("Failed to store block: %v", err)
	}

	first := &core.NoteItem{Content: "first note", Order: 1}
	second := &core.NoteItem{Content: "second note", Order: 0}
	if err := repos.Blocks.AddNoteItem(ctx, block.ID, first); err != nil {
		t.Fatalf("Failed to add note item: %v", err)
	}
	if err := repos.Blocks.AddNoteItem(ctx, block.ID, second); err != nil {
		t.Fatalf("Failed to add note item: %v", err)
	}
	if first.ID == "" || second.ID == "" {
		t.Fatal("Expected generated note item IDs")
	}

	got, err := repos.Blocks.GetBlock(ctx, block.ID)
	if err != nil {
		t.Fatalf("Failed to get block: %v", err)
	}
	if len(got.NoteItems) != 2 || got.NoteItems[0].Content != "second note" {
		t.Fatalf("Expected items sorted by order, got %+v", got.NoteItems)
	}

	// Reorder with a full permutation.
	if err := repos.Blocks.ReorderNoteItems(ctx, block.ID, []string{first.ID, second.ID}); err != nil {
		t.Fatalf("Failed to reorder: %v", err)
	}
	got, _ = repos.Blocks.GetBlock(ctx, block.ID)
	if got.NoteItems[0].ID != first.ID || got.NoteItems[0].Order != 0 {
		t.Fatalf("Expected first note first after reorder, got %+v", got.NoteItems)
	}

	// A partial list is rejected.
	if err := repos.Blocks.ReorderNoteItems(ctx, block.ID, []string{first.ID}); !errors.Is(err, storage.ErrInvalidQuery) {
		t.Fatalf("Expected ErrInvalidQuery, got %v", err)
	}

	if err := repos.Blocks.RemoveNoteItem(ctx, block.ID, first.ID); err != nil {
		t.Fatalf("Failed to remove note item: %v", err)
	}
	if err := repos.Blocks.RemoveNoteItem(ctx, block.ID, first.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for removed item, got %v", err)
	}
}

func TestReferencesAndBacklinks(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	source := testBlock("user-1", "lib-1", "source block")
	target := testBlock("user-1", "lib-2", "target block")
	for _, b := range []*core.KnowledgeBlock{source, target} {
		if err := repos.Blocks.StoreBlock(ctx, b); err != nil {
			t.Fatalf("Failed to store block: %v", err)
		}
	}

	ref := &core.BlockReference{
		SourceBlockID: source.ID,
		TargetBlockID: target.ID,
		Type:          core.ReferenceStrong,
		Context:       "builds on",
	}
	if err := repos.Blocks.AddReference(ctx, ref); err != nil {
		t.Fatalf("Failed to add reference: %v", err)
	}

	refs, err := repos.Blocks.GetReferences(ctx, source.ID)
	if err != nil {
		t.Fatalf("Failed to get references: %v", err)
	}
	if len(refs) != 1 || refs[0].TargetBlockID != target.ID {
		t.Fatalf("Unexpected references: %+v", refs)
	}

	backlinks, err := repos.Blocks.GetBacklinks(ctx, target.ID)
	if err != nil {
		t.Fatalf("Failed to get backlinks: %v", err)
	}
	if len(backlinks) != 1 || backlinks[0] != source.ID {
		t.Fatalf("Unexpected backlinks: %v", backlinks)
	}

	// Same source, target, and type is a duplicate.
	dup := &core.BlockReference{SourceBlockID: source.ID, TargetBlockID: target.ID, Type: core.ReferenceStrong}
	if err := repos.Blocks.AddReference(ctx, dup); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// Self-references are a consistency violation.
	self := &core.BlockReference{SourceBlockID: source.ID, TargetBlockID: source.ID, Type: core.ReferenceWeak}
	if err := repos.Blocks.AddReference(ctx, self); !errors.Is(err, storage.ErrConsistency) {
		t.Fatalf("Expected ErrConsistency, got %v", err)
	}

	// Missing endpoints are a consistency violation.
	dangling := &core.BlockReference{SourceBlockID: source.ID, TargetBlockID: core.NewUUID(), Type: core.ReferenceWeak}
	if err := repos.Blocks.AddReference(ctx, dangling); !errors.Is(err, storage.ErrConsistency) {
		t.Fatalf("Expected ErrConsistency, got %v", err)
	}

	// Removing the reference clears the backlink.
	if err := repos.Blocks.RemoveReference(ctx, ref.ID); err != nil {
		t.Fatalf("Failed to remove reference: %v", err)
	}
	backlinks, _ = repos.Blocks.GetBacklinks(ctx, target.ID)
	if len(backlinks) != 0 {
		t.Fatalf("Expected no backlinks, got %v", backlinks)
	}
	if err := repos.Blocks.RemoveReference(ctx, ref.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteBlockCleansBothSides(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	a := testBlock("user-1", "lib-1", "block a")
	b := testBlock("user-1", "lib-1", "block b")
	c := testBlock("user-1", "lib-1", "block c")
	for _, blk := range []*core.KnowledgeBlock{a, b, c} {
		if err := repos.Blocks.StoreBlock(ctx, blk); err != nil {
			t.Fatalf("Failed to store block: %v", err)
		}
	}

	// a -> b, c -> b, b -> a. Deleting b must clean references in a and c.
	for _, ref := range []*core.BlockReference{
		{SourceBlockID: a.ID, TargetBlockID: b.ID, Type: core.ReferenceStrong},
		{SourceBlockID: c.ID, TargetBlockID: b.ID, Type: core.ReferenceWeak},
		{SourceBlockID: b.ID, TargetBlockID: a.ID, Type: core.ReferenceWeak},
	} {
		if err := repos.Blocks.AddReference(ctx, ref); err != nil {
			t.Fatalf("Failed to add reference: %v", err)
		}
	}

	if err := repos.Blocks.DeleteBlock(ctx, b.ID); err != nil {
		t.Fatalf("Failed to delete block: %v", err)
	}

	refsA, _ := repos.Blocks.GetReferences(ctx, a.ID)
	if len(refsA) != 0 {
		t.Fatalf("Expected a's reference to b to be removed, got %+v", refsA)
	}
	refsC, _ := repos.Blocks.GetReferences(ctx, c.ID)
	if len(refsC) != 0 {
		t.Fatalf("Expected c's reference to b to be removed, got %+v", refsC)
	}
	backlinksA, _ := repos.Blocks.GetBacklinks(ctx, a.ID)
	if len(backlinksA) != 0 {
		t.Fatalf("Expected b's backlink on a to be removed, got %v", backlinksA)
	}
}

func TestSearchBlocksIncludesNoteItems(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	block := testBlock("user-1", "lib-1", "plain highlight")
	if err := repos.Blocks.StoreBlock(ctx, block); err != nil {
		t.Fatalf("Failed to store block: %v", err)
	}
	item := &core.NoteItem{Content: "zettelkasten method", Order: 0}
	if err := repos.Blocks.AddNoteItem(ctx, block.ID, item); err != nil {
		t.Fatalf("Failed to add note item: %v", err)
	}

	res, err := repos.Blocks.SearchBlocks(ctx, &storage.BlockQuery{Terms: []string{"zettelkasten"}})
	if err != nil {
		t.Fatalf("SearchBlocks failed: %v", err)
	}
	if res.Total != 1 || res.Matches[0].Block.ID != block.ID {
		t.Fatalf("Expected the block found via its note item, got %d matches", res.Total)
	}
}

func TestSearchBlocksDateRange(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	block := testBlock("user-1", "lib-1", "dated highlight")
	if err := repos.Blocks.StoreBlock(ctx, block); err != nil {
		t.Fatalf("Failed to store block: %v", err)
	}

	res, err := repos.Blocks.SearchBlocks(ctx, &storage.BlockQuery{
		Start: block.InsertedAt.Add(-time.Hour),
		End:   block.InsertedAt.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("SearchBlocks failed: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("Expected the block inside the range, got %d matches", res.Total)
	}

	res, err = repos.Blocks.SearchBlocks(ctx, &storage.BlockQuery{
		Start: block.InsertedAt.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("SearchBlocks failed: %v", err)
	}
	if res.Total != 0 {
		t.Fatalf("Expected no blocks created after the range start, got %d", res.Total)
	}
}

func TestBlockStatistics(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	b1 := testBlock("user-1", "lib-1", "first", "go", "storage")
	b2 := testBlock("user-1", "lib-2", "second", "go")
	b2.Access = core.AccessShared
	other := testBlock("user-2", "lib-3", "unrelated", "go")
	for _, b := range []*core.KnowledgeBlock{b1, b2, other} {
		if err := repos.Blocks.StoreBlock(ctx, b); err != nil {
			t.Fatalf("Failed to store block: %v", err)
		}
	}
	if err := repos.Blocks.AddNoteItem(ctx, b1.ID, &core.NoteItem{Content: "note"}); err != nil {
		t.Fatalf("Failed to add note item: %v", err)
	}

	stats, err := repos.Blocks.BlockStatistics(ctx, "user-1")
	if err != nil {
		t.Fatalf("BlockStatistics failed: %v", err)
	}
	if stats.TotalBlocks != 2 || stats.TotalNoteItems != 1 {
		t.Fatalf("Unexpected stats: %+v", stats)
	}
	if stats.ByAccess[core.AccessPrivate] != 1 || stats.ByAccess[core.AccessShared] != 1 {
		t.Fatalf("Unexpected access breakdown: %+v", stats.ByAccess)
	}
	if len(stats.TopTags) == 0 || stats.TopTags[0].Tag != "go" || stats.TopTags[0].Count != 2 {
		t.Fatalf("Unexpected top tags: %+v", stats.TopTags)
	}
	if stats.MeanNoteItems != 0.5 {
		t.Fatalf("Expected mean 0.5 note items per block, got %v", stats.MeanNoteItems)
	}
	today := time.Now().UTC().Format("2006-01-02")
	if stats.CreatedPerDay[today] != 2 {
		t.Fatalf("Unexpected creation histogram: %+v", stats.CreatedPerDay)
	}
}
