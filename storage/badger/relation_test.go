package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hinata-sys/hinata/core"
	"github.com/hinata-sys/hinata/storage"
)

func testRelation(source, target string, typ core.RelationType, strength float64) *core.Relation {
	return &core.Relation{
		SourceID: source,
		TargetID: target,
		Type:     typ,
		Strength: strength,
		Origin:   core.OriginUser,
	}
}

func TestRelationBasics(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	rel, err := repos.Relations.CreateRelation(ctx, testRelation("a", "b", core.RelationStrongReference, 0.8))
	if err != nil {
		t.Fatalf("Failed to create relation: %v", err)
	}
	if rel.ID == 0 {
		t.Fatal("Expected content-derived relation ID")
	}

	got, err := repos.Relations.GetRelation(ctx, rel.ID)
	if err != nil {
		t.Fatalf("Failed to get relation: %v", err)
	}
	if !got.InsertedAt.Equal(rel.InsertedAt) {
		t.Fatalf("Expected InsertedAt to read back unchanged, got %v vs %v", got.InsertedAt, rel.InsertedAt)
	}
	if got.SourceID != "a" || got.TargetID != "b" {
		t.Fatalf("Unexpected relation: %+v", got)
	}
	if got.AccessCount != 1 || got.LastAccessed.IsZero() {
		t.Fatalf("Expected access to be recorded, got count %d", got.AccessCount)
	}

	// Self-loops are a consistency violation.
	if _, err := repos.Relations.CreateRelation(ctx, testRelation("a", "a", core.RelationWeakReference, 0.5)); !errors.Is(err, storage.ErrConsistency) {
		t.Fatalf("Expected ErrConsistency, got %v", err)
	}

	// Strength out of range is a validation failure.
	if _, err := repos.Relations.CreateRelation(ctx, testRelation("a", "c", core.RelationWeakReference, 1.5)); !errors.Is(err, core.ErrInvalidStrength) {
		t.Fatalf("Expected ErrInvalidStrength, got %v", err)
	}
}

func TestRelationTripleDedupe(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	first, err := repos.Relations.CreateRelation(ctx, testRelation("a", "b", core.RelationTagAssociation, 0.3))
	if err != nil {
		t.Fatalf("Failed to create relation: %v", err)
	}

	// Same triple again: updated in place, same ID, new strength.
	second, err := repos.Relations.CreateRelation(ctx, testRelation("a", "b", core.RelationTagAssociation, 0.9))
	if err != nil {
		t.Fatalf("Failed to re-create relation: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("Expected same ID for same triple, got %d and %d", first.ID, second.ID)
	}
	if second.Strength != 0.9 {
		t.Fatalf("Expected updated strength 0.9, got %f", second.Strength)
	}
	if !second.InsertedAt.Equal(first.InsertedAt) {
		t.Fatal("Expected the original insertion time to be kept")
	}

	// A different type is a different relation.
	third, err := repos.Relations.CreateRelation(ctx, testRelation("a", "b", core.RelationUserDefined, 0.3))
	if err != nil {
		t.Fatalf("Failed to create relation: %v", err)
	}
	if third.ID == first.ID {
		t.Fatal("Expected distinct ID for distinct type")
	}
}

func TestQueryRelations(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	rels := []*core.Relation{
		testRelation("a", "b", core.RelationStrongReference, 0.9),
		testRelation("a", "c", core.RelationTagAssociation, 0.4),
		testRelation("b", "c", core.RelationStrongReference, 0.7),
	}
	for _, rel := range rels {
		if _, err := repos.Relations.CreateRelation(ctx, rel); err != nil {
			t.Fatalf("Failed to create relation: %v", err)
		}
	}

	bySource, err := repos.Relations.QueryRelations(ctx, &storage.RelationQuery{SourceIDs: []string{"a"}})
	if err != nil {
		t.Fatalf("QueryRelations failed: %v", err)
	}
	if len(bySource) != 2 {
		t.Fatalf("Expected 2 relations from a, got %d", len(bySource))
	}
	if bySource[0].Strength < bySource[1].Strength {
		t.Fatal("Expected strength descending order")
	}

	strong, err := repos.Relations.QueryRelations(ctx, &storage.RelationQuery{
		Types:       []core.RelationType{core.RelationStrongReference},
		MinStrength: 0.8,
	})
	if err != nil {
		t.Fatalf("QueryRelations failed: %v", err)
	}
	if len(strong) != 1 || strong[0].SourceID != "a" {
		t.Fatalf("Unexpected strong relations: %+v", strong)
	}

	// Strength ranges bound both ends.
	maxStrength := 0.5
	mid, err := repos.Relations.QueryRelations(ctx, &storage.RelationQuery{
		MinStrength: 0.3,
		MaxStrength: &maxStrength,
	})
	if err != nil {
		t.Fatalf("QueryRelations failed: %v", err)
	}
	if len(mid) != 1 || mid[0].TargetID != "c" || mid[0].SourceID != "a" {
		t.Fatalf("Unexpected mid-strength relations: %+v", mid)
	}

	// Date ranges bound the creation time.
	dated, err := repos.Relations.QueryRelations(ctx, &storage.RelationQuery{
		Start: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("QueryRelations failed: %v", err)
	}
	if len(dated) != 0 {
		t.Fatalf("Expected no relations created in the future, got %d", len(dated))
	}

	// Query scans do not record accesses.
	got, err := repos.Relations.QueryRelations(ctx, &storage.RelationQuery{SourceIDs: []string{"b"}})
	if err != nil {
		t.Fatalf("QueryRelations failed: %v", err)
	}
	if got[0].AccessCount != 0 {
		t.Fatalf("Query must not bump access count, got %d", got[0].AccessCount)
	}
}

func TestQueryRelationsBidirectionalFilter(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	oneWay := testRelation("a", "b", core.RelationStrongReference, 0.8)
	both := testRelation("a", "c", core.RelationTagAssociation, 0.6)
	both.Bidirectional = true
	for _, rel := range []*core.Relation{oneWay, both} {
		if _, err := repos.Relations.CreateRelation(ctx, rel); err != nil {
			t.Fatalf("Failed to create relation: %v", err)
		}
	}

	wantBidi := true
	got, err := repos.Relations.QueryRelations(ctx, &storage.RelationQuery{Bidirectional: &wantBidi})
	if err != nil {
		t.Fatalf("QueryRelations failed: %v", err)
	}
	if len(got) != 1 || got[0].TargetID != "c" {
		t.Fatalf("Expected only the bidirectional relation, got %+v", got)
	}

	wantBidi = false
	got, err = repos.Relations.QueryRelations(ctx, &storage.RelationQuery{Bidirectional: &wantBidi})
	if err != nil {
		t.Fatalf("QueryRelations failed: %v", err)
	}
	if len(got) != 1 || got[0].TargetID != "b" {
		t.Fatalf("Expected only the one-way relation, got %+v", got)
	}
}

func TestRelationsForItemBidirectional(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	oneWay := testRelation("x", "item", core.RelationStrongReference, 0.9)
	bidi := testRelation("y", "item", core.RelationTagAssociation, 0.5)
	bidi.Bidirectional = true
	for _, rel := range []*core.Relation{oneWay, bidi} {
		if _, err := repos.Relations.CreateRelation(ctx, rel); err != nil {
			t.Fatalf("Failed to create relation: %v", err)
		}
	}

	// As a target, only the bidirectional relation is visible.
	got, err := repos.Relations.RelationsForItem(ctx, "item", nil)
	if err != nil {
		t.Fatalf("RelationsForItem failed: %v", err)
	}
	if len(got) != 1 || got[0].SourceID != "y" {
		t.Fatalf("Expected only the bidirectional relation, got %+v", got)
	}
	if got[0].AccessCount != 1 {
		t.Fatalf("Expected access to be recorded, got %d", got[0].AccessCount)
	}
}

func TestBuildGraph(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	// root -> a -> b, plus a weak edge root -> c filtered by minStrength.
	for _, rel := range []*core.Relation{
		testRelation("root", "a", core.RelationStrongReference, 0.9),
		testRelation("a", "b", core.RelationStrongReference, 0.8),
		testRelation("root", "c", core.RelationWeakReference, 0.1),
	} {
		if _, err := repos.Relations.CreateRelation(ctx, rel); err != nil {
			t.Fatalf("Failed to create relation: %v", err)
		}
	}

	graph, err := repos.Relations.BuildGraph(ctx, []string{"root"}, 2, 0.5)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}
	if len(graph.Nodes) != 3 {
		t.Fatalf("Expected 3 nodes, got %+v", graph.Nodes)
	}
	depths := make(map[string]int)
	for _, n := range graph.Nodes {
		depths[n.ItemID] = n.Depth
	}
	if depths["root"] != 0 || depths["a"] != 1 || depths["b"] != 2 {
		t.Fatalf("Unexpected depths: %v", depths)
	}
	if len(graph.Edges) != 2 {
		t.Fatalf("Expected 2 edges, got %d", len(graph.Edges))
	}
	if graph.Density == 0 {
		t.Fatal("Expected non-zero density")
	}
	if len(graph.Clusters) != 1 || len(graph.Clusters[0]) != 3 {
		t.Fatalf("Expected one cluster of 3, got %+v", graph.Clusters)
	}

	// Depth 1 stops before b.
	graph, err = repos.Relations.BuildGraph(ctx, []string{"root"}, 1, 0.5)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}
	if len(graph.Nodes) != 2 {
		t.Fatalf("Expected 2 nodes at depth 1, got %d", len(graph.Nodes))
	}

	// Multiple roots merge into one neighborhood; c enters at depth 0.
	graph, err = repos.Relations.BuildGraph(ctx, []string{"root", "c"}, 2, 0.5)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}
	depths = make(map[string]int)
	for _, n := range graph.Nodes {
		depths[n.ItemID] = n.Depth
	}
	if depths["root"] != 0 || depths["c"] != 0 || depths["a"] != 1 || depths["b"] != 2 {
		t.Fatalf("Unexpected multi-root depths: %v", depths)
	}
}

func TestRecommendRelated(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	// item -> direct (0.9), direct -> distant (0.8).
	for _, rel := range []*core.Relation{
		testRelation("item", "direct", core.RelationStrongReference, 0.9),
		testRelation("direct", "distant", core.RelationStrongReference, 0.8),
	} {
		if _, err := repos.Relations.CreateRelation(ctx, rel); err != nil {
			t.Fatalf("Failed to create relation: %v", err)
		}
	}

	recs, err := repos.Relations.RecommendRelated(ctx, "item", 10, 0)
	if err != nil {
		t.Fatalf("RecommendRelated failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 recommendations, got %d", len(recs))
	}
	if recs[0].ItemID != "direct" {
		t.Fatalf("Expected the direct neighbor first, got %s", recs[0].ItemID)
	}
	// Second degree score is discounted: 0.9 * 0.8 * 0.7.
	want := 0.9 * 0.8 * secondDegreeDecay
	if recs[1].ItemID != "distant" || recs[1].Score != want {
		t.Fatalf("Unexpected second degree recommendation: %+v", recs[1])
	}

	// A floor above the second hop's strength prunes the distant item.
	recs, err = repos.Relations.RecommendRelated(ctx, "item", 10, 0.85)
	if err != nil {
		t.Fatalf("RecommendRelated failed: %v", err)
	}
	if len(recs) != 1 || recs[0].ItemID != "direct" {
		t.Fatalf("Expected only the direct neighbor above the floor, got %+v", recs)
	}
}

func TestRelationCleanupSparesUserOrigin(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	userRel := testRelation("a", "b", core.RelationUserDefined, 0.5)
	systemRel := testRelation("a", "c", core.RelationDerived, 0.5)
	systemRel.Origin = core.OriginSystem
	for _, rel := range []*core.Relation{userRel, systemRel} {
		if _, err := repos.Relations.CreateRelation(ctx, rel); err != nil {
			t.Fatalf("Failed to create relation: %v", err)
		}
	}

	// A future cutoff makes both stale, but only the system one goes.
	deleted, err := repos.Relations.CleanupRelations(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CleanupRelations failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("Expected 1 deletion, got %d", deleted)
	}
	if _, err := repos.Relations.GetRelation(ctx, userRel.ID); err != nil {
		t.Fatalf("User relation must survive cleanup: %v", err)
	}
	if _, err := repos.Relations.GetRelation(ctx, systemRel.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected system relation to be gone, got %v", err)
	}
}

func TestDecayStrengths(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	strong := testRelation("a", "b", core.RelationDerived, 0.8)
	strong.Origin = core.OriginSystem
	weak := testRelation("a", "c", core.RelationDerived, 0.05)
	weak.Origin = core.OriginSystem
	for _, rel := range []*core.Relation{strong, weak} {
		if _, err := repos.Relations.CreateRelation(ctx, rel); err != nil {
			t.Fatalf("Failed to create relation: %v", err)
		}
	}

	touched, err := repos.Relations.DecayStrengths(ctx, time.Now().Add(time.Hour), 0.5, 0.1)
	if err != nil {
		t.Fatalf("DecayStrengths failed: %v", err)
	}
	if touched != 2 {
		t.Fatalf("Expected 2 relations touched, got %d", touched)
	}

	got, err := repos.Relations.GetRelation(ctx, strong.ID)
	if err != nil {
		t.Fatalf("Failed to get relation: %v", err)
	}
	if got.Strength != 0.4 {
		t.Fatalf("Expected decayed strength 0.4, got %f", got.Strength)
	}

	// The weak one fell below the floor and was deleted.
	if _, err := repos.Relations.GetRelation(ctx, weak.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected the weak relation to be deleted, got %v", err)
	}
}

func TestUpdateStrength(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	rel, err := repos.Relations.CreateRelation(ctx, testRelation("a", "b", core.RelationUserDefined, 0.5))
	if err != nil {
		t.Fatalf("Failed to create relation: %v", err)
	}

	if err := repos.Relations.UpdateStrength(ctx, rel.ID, 1.2); !errors.Is(err, core.ErrInvalidStrength) {
		t.Fatalf("Expected ErrInvalidStrength, got %v", err)
	}
	if err := repos.Relations.UpdateStrength(ctx, rel.ID, 0.25); err != nil {
		t.Fatalf("UpdateStrength failed: %v", err)
	}

	got, err := repos.Relations.GetRelation(ctx, rel.ID)
	if err != nil {
		t.Fatalf("Failed to get relation: %v", err)
	}
	if got.Strength != 0.25 {
		t.Fatalf("Expected strength 0.25, got %f", got.Strength)
	}
}
