package badger

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hinata-sys/hinata/core"
	"github.com/hinata-sys/hinata/storage"
)

// secondDegreeDecay discounts recommendation scores that arrive through
// an intermediate item.
const secondDegreeDecay = 0.7

// ClusterDetector partitions the nodes of a discovered neighborhood
// into clusters. edges maps each node to its neighbors.
type ClusterDetector func(nodes []string, edges map[string][]string) [][]string

// DerivationStrategy produces follow-on relations from a newly created
// one. The default derives nothing.
type DerivationStrategy func(rel *core.Relation) []*core.Relation

// RelationRepository implements storage.RelationRepository for BadgerDB.
type RelationRepository struct {
	backend  *Backend
	clusters ClusterDetector
	derive   DerivationStrategy
}

var _ storage.RelationRepository = (*RelationRepository)(nil)

// NewRelationRepository creates a new RelationRepository. Cluster
// detection and relation derivation are pluggable; the defaults chunk
// nodes into ceil(n/10) clusters and derive nothing.
func NewRelationRepository(backend *Backend) (*RelationRepository, error) {
	return &RelationRepository{
		backend:  backend,
		clusters: chunkClusters,
	}, nil
}

// SetClusterDetector replaces the cluster detection strategy.
func (r *RelationRepository) SetClusterDetector(detector ClusterDetector) {
	if detector != nil {
		r.clusters = detector
	}
}

// SetDerivationStrategy installs a strategy invoked after each
// successful CreateRelation. Derived relations are stored with system
// origin; derivation failures do not fail the originating create.
func (r *RelationRepository) SetDerivationStrategy(strategy DerivationStrategy) {
	r.derive = strategy
}

// Close releases resources. RelationRepository has no resources to release.
func (r *RelationRepository) Close() error {
	return nil
}

// CreateRelation validates and stores a relation. The ID is derived from
// the (source, target, type) triple; an existing triple is updated in
// place, keeping its insertion time and access history.
func (r *RelationRepository) CreateRelation(ctx context.Context, rel *core.Relation) (*core.Relation, error) {
	if err := core.ValidateRelation(rel); err != nil {
		return nil, err
	}
	if rel.SourceID == rel.TargetID {
		return nil, storage.ErrConsistency
	}

	rel.ID = core.RelationID(rel.SourceID, rel.TargetID, rel.Type)

	var result *core.Relation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRelationKey(rel.ID)
		existing, err := readRelation(tx, key)
		if err != nil {
			return err
		}

		now := stampNow()
		if existing != nil {
			existing.Strength = rel.Strength
			existing.Bidirectional = rel.Bidirectional
			existing.Metadata = rel.Metadata
			existing.UpdatedAt = now
			result = existing
		} else {
			rel.AccessCount = 0
			rel.LastAccessed = time.Time{}
			rel.InsertedAt = now
			rel.UpdatedAt = now
			result = rel

			if err := writeRelationIndexes(tx, rel); err != nil {
				return err
			}
		}

		if err := tx.Set(key, storage.MarshalRelation(result)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	r.backend.notify(storage.EventRelationCreated, result.ID.String())

	if r.derive != nil {
		for _, derived := range r.derive(result) {
			derived.Origin = core.OriginSystem
			if _, err := r.CreateRelation(ctx, derived); err != nil {
				r.backend.logger.Warn("relation derivation failed",
					"source", derived.SourceID, "target", derived.TargetID, "error", err)
			}
		}
	}
	return result, nil
}

// GetRelation retrieves a relation by ID and records the access.
func (r *RelationRepository) GetRelation(ctx context.Context, id core.ID) (*core.Relation, error) {
	var result *core.Relation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRelationKey(id)
		rel, err := readRelation(tx, key)
		if err != nil {
			return err
		}
		if rel == nil {
			return storage.ErrNotFound
		}

		rel.AccessCount++
		rel.LastAccessed = stampNow()
		if err := tx.Set(key, storage.MarshalRelation(rel)); err != nil {
			return err
		}

		result = rel
		return tx.Commit()
	}, true)
	return result, err
}

// DeleteRelation removes a relation and its index entries.
func (r *RelationRepository) DeleteRelation(ctx context.Context, id core.ID) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRelationKey(id)
		rel, err := readRelation(tx, key)
		if err != nil {
			return err
		}
		if rel == nil {
			return storage.ErrNotFound
		}

		if err := deleteRelationIndexes(tx, rel); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err == nil {
		r.backend.notify(storage.EventRelationDeleted, id.String())
	}
	return err
}

// UpdateStrength sets the strength of an existing relation.
func (r *RelationRepository) UpdateStrength(ctx context.Context, id core.ID, strength float64) error {
	if strength < 0 || strength > 1 {
		return core.ErrInvalidStrength
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRelationKey(id)
		rel, err := readRelation(tx, key)
		if err != nil {
			return err
		}
		if rel == nil {
			return storage.ErrNotFound
		}

		rel.Strength = strength
		rel.UpdatedAt = stampNow()
		if err := tx.Set(key, storage.MarshalRelation(rel)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// QueryRelations scans relations matching the query. Endpoint filters
// use the endpoint indexes; the rest falls back to a full scan.
func (r *RelationRepository) QueryRelations(ctx context.Context, query *storage.RelationQuery) ([]*core.Relation, error) {
	if query == nil {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.Relation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		candidates, err := r.candidateRelations(tx, query)
		if err != nil {
			return err
		}
		for _, rel := range candidates {
			if relationMatches(rel, query) {
				results = append(results, rel)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sortRelationsByStrength(results)
	lo, hi := query.Page.Clamp(len(results))
	return results[lo:hi], nil
}

// RelationsForItem returns relations where the item is the source, or
// the target of a bidirectional relation. Each returned relation has its
// access recorded.
func (r *RelationRepository) RelationsForItem(ctx context.Context, itemID string, types []core.RelationType) ([]*core.Relation, error) {
	var results []*core.Relation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		rels, err := relationsTouching(tx, itemID)
		if err != nil {
			return err
		}

		now := stampNow()
		for _, rel := range rels {
			if rel.TargetID == itemID && !rel.Bidirectional {
				continue
			}
			if len(types) > 0 && !slices.Contains(types, rel.Type) {
				continue
			}

			rel.AccessCount++
			rel.LastAccessed = now
			if err := tx.Set(makeRelationKey(rel.ID), storage.MarshalRelation(rel)); err != nil {
				return err
			}
			results = append(results, rel)
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	sortRelationsByStrength(results)
	return results, nil
}

// BuildGraph walks the relation graph breadth first from one or more
// roots, bounded by depth and a minimum strength.
func (r *RelationRepository) BuildGraph(ctx context.Context, rootIDs []string, depth int, minStrength float64) (*storage.Graph, error) {
	if len(rootIDs) == 0 || depth < 0 {
		return nil, storage.ErrInvalidQuery
	}
	for _, id := range rootIDs {
		if id == "" {
			return nil, storage.ErrInvalidQuery
		}
	}

	graph := &storage.Graph{RootIDs: rootIDs}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		visited := make(map[string]int, len(rootIDs))
		frontier := make([]string, 0, len(rootIDs))
		for _, id := range rootIDs {
			if _, ok := visited[id]; ok {
				continue
			}
			visited[id] = 0
			frontier = append(frontier, id)
		}
		seenEdges := make(map[core.ID]bool)
		adjacency := make(map[string][]string)

		for level := 0; level < depth && len(frontier) > 0; level++ {
			var next []string
			for _, itemID := range frontier {
				rels, err := relationsTouching(tx, itemID)
				if err != nil {
					return err
				}
				for _, rel := range rels {
					if rel.Strength < minStrength {
						continue
					}
					neighbor := rel.TargetID
					if rel.TargetID == itemID {
						if !rel.Bidirectional {
							continue
						}
						neighbor = rel.SourceID
					}

					if _, ok := visited[neighbor]; !ok {
						visited[neighbor] = level + 1
						next = append(next, neighbor)
					}
					if !seenEdges[rel.ID] {
						seenEdges[rel.ID] = true
						graph.Edges = append(graph.Edges, storage.GraphEdge{
							SourceID: rel.SourceID,
							TargetID: rel.TargetID,
							Type:     rel.Type,
							Strength: rel.Strength,
						})
						adjacency[rel.SourceID] = append(adjacency[rel.SourceID], rel.TargetID)
						adjacency[rel.TargetID] = append(adjacency[rel.TargetID], rel.SourceID)
					}
				}
			}
			frontier = next
		}

		nodes := make([]string, 0, len(visited))
		for id := range visited {
			nodes = append(nodes, id)
		}
		slices.Sort(nodes)
		for _, id := range nodes {
			graph.Nodes = append(graph.Nodes, storage.GraphNode{ItemID: id, Depth: visited[id]})
		}

		if n := len(nodes); n > 1 {
			graph.Density = float64(len(graph.Edges)) / float64(n*(n-1))
		}
		graph.Clusters = r.clusters(nodes, adjacency)
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return graph, nil
}

// RecommendRelated ranks items related to the given one through first
// and second degree relations. Edges weaker than minStrength are not
// traversed.
func (r *RelationRepository) RecommendRelated(ctx context.Context, itemID string, limit int, minStrength float64) ([]storage.RelatedItem, error) {
	scores := make(map[string]float64)
	via := make(map[string][]core.RelationType)

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		first, err := relationsTouching(tx, itemID)
		if err != nil {
			return err
		}
		for _, rel := range first {
			if rel.Strength < minStrength {
				continue
			}
			neighbor, ok := otherEndpoint(rel, itemID)
			if !ok {
				continue
			}
			if rel.Strength > scores[neighbor] {
				scores[neighbor] = rel.Strength
			}
			via[neighbor] = appendType(via[neighbor], rel.Type)

			second, err := relationsTouching(tx, neighbor)
			if err != nil {
				return err
			}
			for _, rel2 := range second {
				if rel2.Strength < minStrength {
					continue
				}
				distant, ok := otherEndpoint(rel2, neighbor)
				if !ok || distant == itemID {
					continue
				}
				score := rel.Strength * rel2.Strength * secondDegreeDecay
				if score > scores[distant] {
					scores[distant] = score
				}
				via[distant] = appendType(via[distant], rel2.Type)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	results := make([]storage.RelatedItem, 0, len(scores))
	for id, score := range scores {
		results = append(results, storage.RelatedItem{ItemID: id, Score: score, Via: via[id]})
	}
	slices.SortFunc(results, func(a, b storage.RelatedItem) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ItemID, b.ItemID)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DecayStrengths multiplies the strength of stale system-origin
// relations by factor, deleting those that fall below floor.
func (r *RelationRepository) DecayStrengths(ctx context.Context, cutoff time.Time, factor, floor float64) (int, error) {
	if factor < 0 || factor > 1 {
		return 0, storage.ErrInvalidQuery
	}

	touched := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		stale, err := r.staleSystemRelations(tx, cutoff)
		if err != nil {
			return err
		}

		now := stampNow()
		for _, rel := range stale {
			rel.Strength *= factor
			rel.UpdatedAt = now
			touched++

			if rel.Strength < floor {
				if err := deleteRelationIndexes(tx, rel); err != nil {
					return err
				}
				if err := tx.Delete(makeRelationKey(rel.ID)); err != nil {
					return err
				}
				continue
			}
			if err := tx.Set(makeRelationKey(rel.ID), storage.MarshalRelation(rel)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return touched, nil
}

// CleanupRelations deletes system-origin relations last accessed before
// the cutoff. User-origin relations are never removed.
func (r *RelationRepository) CleanupRelations(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		stale, err := r.staleSystemRelations(tx, cutoff)
		if err != nil {
			return err
		}
		for _, rel := range stale {
			if err := deleteRelationIndexes(tx, rel); err != nil {
				return err
			}
			if err := tx.Delete(makeRelationKey(rel.ID)); err != nil {
				return err
			}
			deleted++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.backend.notify(storage.EventCleanupRun, "relations")
	}
	return deleted, nil
}

// staleSystemRelations snapshots system-origin relations whose last
// touch is before the cutoff.
func (r *RelationRepository) staleSystemRelations(tx *badger.Txn, cutoff time.Time) ([]*core.Relation, error) {
	var stale []*core.Relation
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(relationPrefix + ":")
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var rel *core.Relation
		err := iter.Item().Value(func(val []byte) error {
			var err error
			rel, err = storage.UnmarshalRelation(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		if rel.Origin != core.OriginSystem {
			continue
		}
		if relationLastTouch(rel).Before(cutoff) {
			stale = append(stale, rel)
		}
	}
	return stale, nil
}

// candidateRelations narrows the scan using endpoint indexes when the
// query names endpoints.
func (r *RelationRepository) candidateRelations(tx *badger.Txn, query *storage.RelationQuery) ([]*core.Relation, error) {
	if len(query.SourceIDs) == 0 && len(query.TargetIDs) == 0 {
		return scanRelations(tx)
	}

	seen := make(map[core.ID]bool)
	var results []*core.Relation
	collect := func(prefix string, ids []string) error {
		for _, itemID := range ids {
			rels, err := scanRelationIndex(tx, prefix+":"+itemID+":")
			if err != nil {
				return err
			}
			for _, rel := range rels {
				if !seen[rel.ID] {
					seen[rel.ID] = true
					results = append(results, rel)
				}
			}
		}
		return nil
	}

	if err := collect(relationSrcPrefix, query.SourceIDs); err != nil {
		return nil, err
	}
	if err := collect(relationTgtPrefix, query.TargetIDs); err != nil {
		return nil, err
	}
	return results, nil
}

func relationMatches(rel *core.Relation, q *storage.RelationQuery) bool {
	if len(q.SourceIDs) > 0 && !slices.Contains(q.SourceIDs, rel.SourceID) {
		return false
	}
	if len(q.TargetIDs) > 0 && !slices.Contains(q.TargetIDs, rel.TargetID) {
		return false
	}
	if len(q.Types) > 0 && !slices.Contains(q.Types, rel.Type) {
		return false
	}
	if q.Origin != 0 && rel.Origin != q.Origin {
		return false
	}
	if rel.Strength < q.MinStrength {
		return false
	}
	if q.MaxStrength != nil && rel.Strength > *q.MaxStrength {
		return false
	}
	if q.Bidirectional != nil && rel.Bidirectional != *q.Bidirectional {
		return false
	}
	if !q.Start.IsZero() && rel.InsertedAt.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && !rel.InsertedAt.Before(q.End) {
		return false
	}
	return true
}

// relationsTouching returns relations where the item is either endpoint,
// deduplicated.
func relationsTouching(tx *badger.Txn, itemID string) ([]*core.Relation, error) {
	asSource, err := scanRelationIndex(tx, relationSrcPrefix+":"+itemID+":")
	if err != nil {
		return nil, err
	}
	asTarget, err := scanRelationIndex(tx, relationTgtPrefix+":"+itemID+":")
	if err != nil {
		return nil, err
	}

	seen := make(map[core.ID]bool, len(asSource))
	results := make([]*core.Relation, 0, len(asSource)+len(asTarget))
	for _, rel := range asSource {
		seen[rel.ID] = true
		results = append(results, rel)
	}
	for _, rel := range asTarget {
		if !seen[rel.ID] {
			results = append(results, rel)
		}
	}
	return results, nil
}

// scanRelationIndex resolves an endpoint index prefix to full relations.
func scanRelationIndex(tx *badger.Txn, prefix string) ([]*core.Relation, error) {
	var results []*core.Relation
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var id core.ID
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return nil, err
		}
		rel, err := readRelation(tx, makeRelationKey(id))
		if err != nil {
			return nil, err
		}
		if rel != nil {
			results = append(results, rel)
		}
	}
	return results, nil
}

// scanRelations loads every relation.
func scanRelations(tx *badger.Txn) ([]*core.Relation, error) {
	var results []*core.Relation
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(relationPrefix + ":")
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var rel *core.Relation
		err := iter.Item().Value(func(val []byte) error {
			var err error
			rel, err = storage.UnmarshalRelation(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		results = append(results, rel)
	}
	return results, nil
}

func sortRelationsByStrength(rels []*core.Relation) {
	slices.SortFunc(rels, func(a, b *core.Relation) int {
		if a.Strength != b.Strength {
			if a.Strength > b.Strength {
				return -1
			}
			return 1
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}

func otherEndpoint(rel *core.Relation, itemID string) (string, bool) {
	if rel.SourceID == itemID {
		return rel.TargetID, true
	}
	if rel.TargetID == itemID && rel.Bidirectional {
		return rel.SourceID, true
	}
	return "", false
}

func appendType(types []core.RelationType, t core.RelationType) []core.RelationType {
	if slices.Contains(types, t) {
		return types
	}
	return append(types, t)
}

// relationLastTouch is the timestamp cleanup decisions are made on:
// the last access, or the insertion time if never accessed.
func relationLastTouch(rel *core.Relation) time.Time {
	if rel.LastAccessed.IsZero() {
		return rel.InsertedAt
	}
	return rel.LastAccessed
}

// chunkClusters is the trivial default cluster detector: ceil(n/10)
// clusters of up to ten nodes each, in sorted node order.
func chunkClusters(nodes []string, _ map[string][]string) [][]string {
	const clusterSize = 10
	var clusters [][]string
	for lo := 0; lo < len(nodes); lo += clusterSize {
		hi := lo + clusterSize
		if hi > len(nodes) {
			hi = len(nodes)
		}
		clusters = append(clusters, nodes[lo:hi])
	}
	return clusters
}

// writeRelationIndexes writes every secondary index entry for a
// relation. Index values hold the relation ID.
func writeRelationIndexes(tx *badger.Txn, rel *core.Relation) error {
	idVal := storage.MarshalID(rel.ID)

	if err := tx.Set(makeRelationEndpointKey(relationSrcPrefix, rel.SourceID, rel.ID), idVal); err != nil {
		return err
	}
	if err := tx.Set(makeRelationEndpointKey(relationTgtPrefix, rel.TargetID, rel.ID), idVal); err != nil {
		return err
	}
	return tx.Set(makeRelationTypeKey(rel.Type, rel.ID), idVal)
}

// deleteRelationIndexes removes every secondary index entry for a
// relation.
func deleteRelationIndexes(tx *badger.Txn, rel *core.Relation) error {
	if err := tx.Delete(makeRelationEndpointKey(relationSrcPrefix, rel.SourceID, rel.ID)); err != nil {
		return err
	}
	if err := tx.Delete(makeRelationEndpointKey(relationTgtPrefix, rel.TargetID, rel.ID)); err != nil {
		return err
	}
	return tx.Delete(makeRelationTypeKey(rel.Type, rel.ID))
}

// readRelation reads a relation from the transaction. Returns nil, nil
// when the key doesn't exist.
func readRelation(tx *badger.Txn, key []byte) (*core.Relation, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var rel *core.Relation
	err = item.Value(func(val []byte) error {
		var err error
		rel, err = storage.UnmarshalRelation(val)
		return err
	})
	return rel, err
}
