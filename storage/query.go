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
	"time"

	"github.com/hinata-sys/hinata/core"
)

// SortField selects the field packet search results are ordered by.
type SortField int

const (
	SortByCaptureTime SortField = iota + 1
	SortByAttention
	SortByUpdateTime
)

// SortDirection selects ascending or descending order.
type SortDirection int

const (
	SortDescending SortDirection = iota
	SortAscending
)

// SortOptions pairs a field with a direction. The zero value sorts by
// capture time, newest first.
type SortOptions struct {
	Field     SortField
	Direction SortDirection
}

// Pagination bounds a result window. A zero Limit means no limit.
type Pagination struct {
	Offset int
	Limit  int
}

// Clamp applies the window to a slice length, returning [lo, hi).
func (p Pagination) Clamp(n int) (int, int) {
	lo := p.Offset
	if lo < 0 {
		lo = 0
	}
	if lo > n {
		lo = n
	}
	hi := n
	if p.Limit > 0 && lo+p.Limit < n {
		hi = lo + p.Limit
	}
	return lo, hi
}

// PacketFilters narrows a packet search. Nil or zero fields do not filter.
// All set filters must match (AND semantics).
type PacketFilters struct {
	UserID         string
	CaptureSource  core.CaptureSource
	UserAction     core.UserAction
	Access         core.AccessLevel
	Tags           []string
	DeviceType     string
	HasAttachments *bool
	MinAttention   *int
	MaxAttention   *int
	Start          time.Time
	End            time.Time
}

// PacketQuery is a full-text packet search request. All terms must appear
// in the packet's searchable text (AND of terms).
type PacketQuery struct {
	Terms        []string
	Filters      PacketFilters
	Sort         SortOptions
	Page         Pagination
	Aggregations bool
}

// PacketMatch is a single search hit with its similarity or rank score.
type PacketMatch struct {
	Packet *core.Packet
	Score  float64
}

// AttentionStats summarizes attention scores over a result set.
type AttentionStats struct {
	Min    int
	Max    int
	Mean   float64
	Median float64
}

// PacketAggregations are computed over the full matching set, before
// pagination is applied.
type PacketAggregations struct {
	BySource  map[core.CaptureSource]int
	ByAction  map[core.UserAction]int
	ByTag     map[string]int
	Attention AttentionStats
}

// PacketSearchResult carries the page of hits plus the total match count.
type PacketSearchResult struct {
	Matches      []*PacketMatch
	Total        int
	Aggregations *PacketAggregations
}

// TrendGranularity selects the bucket width for attention trends.
type TrendGranularity int

const (
	TrendHourly TrendGranularity = iota + 1
	TrendDaily
	TrendWeekly
	TrendMonthly
)

// TrendBucket is one time bucket of an attention trend. Bucket keys use
// UTC: "2006-01-02T15" for hourly, "2006-01-02" for daily, "2006-W27"
// for weekly (ISO week) and "2006-01" for monthly.
type TrendBucket struct {
	Bucket        string
	PacketCount   int
	MeanAttention float64
	PeakAttention int
	BySource      map[core.CaptureSource]int
}

// BlockQuery is a full-text knowledge block search request. Start and
// End bound the block's creation time.
type BlockQuery struct {
	Terms         []string
	UserID        string
	LibraryItemID string
	Tags          []string
	Access        core.AccessLevel
	Start         time.Time
	End           time.Time
	Sort          SortOptions
	Page          Pagination
}

// BlockMatch is a single block search hit.
type BlockMatch struct {
	Block *core.KnowledgeBlock
	Score float64
}

// BlockSearchResult carries the page of hits plus the total match count.
type BlockSearchResult struct {
	Matches []*BlockMatch
	Total   int
}

// TagCount pairs a tag with its occurrence count.
type TagCount struct {
	Tag   string
	Count int
}

// BlockStatistics summarizes a user's knowledge blocks. CreatedPerDay
// keys are UTC days formatted "2006-01-02".
type BlockStatistics struct {
	TotalBlocks     int
	TotalNoteItems  int
	MeanNoteItems   float64
	TotalReferences int
	ByAccess        map[core.AccessLevel]int
	TopTags         []TagCount
	CreatedPerDay   map[string]int
}

// RelationQuery narrows a relation scan. Empty or nil fields do not
// filter. Start and End bound the relation's creation time.
type RelationQuery struct {
	SourceIDs     []string
	TargetIDs     []string
	Types         []core.RelationType
	Origin        core.Origin
	MinStrength   float64
	MaxStrength   *float64
	Bidirectional *bool
	Start         time.Time
	End           time.Time
	Page          Pagination
}

// GraphNode is one item in a relation graph.
type GraphNode struct {
	ItemID string
	Depth  int
}

// GraphEdge is one relation in a relation graph.
type GraphEdge struct {
	SourceID string
	TargetID string
	Type     core.RelationType
	Strength float64
}

// Graph is the neighborhood around one or more root items: nodes
// discovered by breadth first traversal, the edges between them, and
// derived statistics. Density is edges / (n * (n-1)) for n > 1, zero
// otherwise.
type Graph struct {
	RootIDs  []string
	Nodes    []GraphNode
	Edges    []GraphEdge
	Density  float64
	Clusters [][]string
}

// RelatedItem is a recommendation candidate with its aggregate score.
type RelatedItem struct {
	ItemID string
	Score  float64
	Via    []core.RelationType
}

// TagQuery narrows a tag scan. Empty fields do not filter.
type TagQuery struct {
	NamePrefix string
	Type       core.TagType
	Category   string
	MinUsage   int
	Page       Pagination
}

// TagRecommendation is one suggested tag. Score ranks suggestions and
// Confidence expresses how trustworthy the signal behind them is; both
// live in [0, 1].
type TagRecommendation struct {
	Tag        *core.Tag
	Score      float64
	Confidence float64
	Reason     string
}
