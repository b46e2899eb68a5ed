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


package recommend

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/hinata-sys/hinata/core"
	"github.com/hinata-sys/hinata/storage"
)

const (
	keywordScore         = 0.8
	keywordConfidence    = 0.7
	popularityConfidence = 0.5
	neighborScore        = 0.6
	neighborConfidence   = 0.6

	// How many keywords from the content are checked against known tags.
	keywordCandidates = 20

	defaultMinConfidence = 0.5

	aiTagCategory = "extracted"
)

// Recommender suggests tags for content and materializes extracted tags.
type Recommender struct {
	tags          storage.TagRepository
	relations     storage.RelationRepository
	minConfidence float64
	logger        *slog.Logger
}

// Option configures a Recommender.
type Option func(*Recommender) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recommender) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithMinConfidence sets the confidence floor below which candidates are
// dropped. Default is 0.5.
func WithMinConfidence(min float64) Option {
	return func(r *Recommender) error {
		r.minConfidence = min
		return nil
	}
}

// NewRecommender creates a new recommender over the given repositories.
func NewRecommender(
	tags storage.TagRepository,
	relations storage.RelationRepository,
	opts ...Option,
) (*Recommender, error) {
	if tags == nil {
		return nil, ErrTagRepositoryRequired
	}
	if relations == nil {
		return nil, ErrRelationRepositoryRequired
	}

	r := &Recommender{
		tags:          tags,
		relations:     relations,
		minConfidence: defaultMinConfidence,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RecommendTags suggests up to limit tags for the given content. Tags named
// in existingTags are never suggested. Candidates come from three sources
// merged by tag, keeping the highest score per tag: content keywords that
// match known tags, popular tags, and tag-association neighbors of the
// existing tags.
func (r *Recommender) RecommendTags(ctx context.Context, content string, existingTags []string, limit int) ([]storage.TagRecommendation, error) {
	applied := make(map[string]bool, len(existingTags))
	for _, name := range existingTags {
		if normalized := core.NormalizeTagName(name); normalized != "" {
			applied[normalized] = true
		}
	}

	candidates := make(map[core.ID]storage.TagRecommendation)
	add := func(tag *core.Tag, score, confidence float64, reason string) {
		if tag == nil || applied[tag.NormalizedName] {
			return
		}
		if existing, ok := candidates[tag.ID]; ok && existing.Score >= score {
			return
		}
		candidates[tag.ID] = storage.TagRecommendation{
			Tag:        tag,
			Score:      score,
			Confidence: confidence,
			Reason:     reason,
		}
	}

	// 1. Content keywords that already exist as tags.
	keywords, err := ExtractKeywords(content, keywordCandidates)
	if err != nil {
		return nil, err
	}
	for _, keyword := range keywords {
		tag, err := r.tags.GetTagByName(ctx, keyword.Word)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		add(tag, keywordScore, keywordConfidence, "content keyword")
	}

	// 2. Popular tags not yet applied, scored by their usage weight.
	popular, err := r.tags.PopularTags(ctx, limit*3)
	if err != nil {
		return nil, err
	}
	for _, tag := range popular {
		add(tag, tag.Weight, popularityConfidence, "popular")
	}

	// 3. Tag-association neighbors of the applied tags.
	for name := range applied {
		tag, err := r.tags.GetTagByName(ctx, name)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		neighbors, err := r.associatedTagNames(ctx, tag.NormalizedName)
		if err != nil {
			return nil, err
		}
		for _, neighbor := range neighbors {
			neighborTag, err := r.tags.GetTagByName(ctx, neighbor)
			if errors.Is(err, storage.ErrNotFound) {
				r.logger.Debug("associated item is not a tag", "itemID", neighbor)
				continue
			}
			if err != nil {
				return nil, err
			}
			add(neighborTag, neighborScore, neighborConfidence, "related tag")
		}
	}

	results := make([]storage.TagRecommendation, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Confidence < r.minConfidence {
			continue
		}
		results = append(results, candidate)
	}
	slices.SortFunc(results, func(a, b storage.TagRecommendation) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Tag.NormalizedName, b.Tag.NormalizedName)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ExtractTags extracts frequency-ranked keywords from content and
// materializes them as AI tags. Keywords scoring below the confidence floor
// are skipped. Extraction reuses existing tags when the name already
// resolves to one.
func (r *Recommender) ExtractTags(ctx context.Context, content string, maxTags int) ([]*core.Tag, error) {
	keywords, err := ExtractKeywords(content, maxTags)
	if err != nil {
		return nil, err
	}

	tags := make([]*core.Tag, 0, len(keywords))
	for _, keyword := range keywords {
		if keyword.Score < r.minConfidence {
			continue
		}
		tag, err := r.tags.CreateTag(ctx, keyword.Word, core.TagAIExtracted, aiTagCategory)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// associatedTagNames returns the opposite endpoints of tag-association
// relations touching the given tag name.
func (r *Recommender) associatedTagNames(ctx context.Context, name string) ([]string, error) {
	types := []core.RelationType{core.RelationTagAssociation}

	outgoing, err := r.relations.QueryRelations(ctx, &storage.RelationQuery{
		SourceIDs: []string{name},
		Types:     types,
	})
	if err != nil {
		return nil, err
	}
	incoming, err := r.relations.QueryRelations(ctx, &storage.RelationQuery{
		TargetIDs: []string{name},
		Types:     types,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var names []string
	for _, rel := range append(outgoing, incoming...) {
		other := rel.TargetID
		if other == name {
			other = rel.SourceID
		}
		if other == name || seen[other] {
			continue
		}
		seen[other] = true
		names = append(names, other)
	}
	return names, nil
}
