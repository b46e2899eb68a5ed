package badger

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hinata-sys/hinata/core"
	"github.com/hinata-sys/hinata/storage"
)

// SearchPackets runs a full-text search over all packets. Every term
// must appear in the packet's searchable text; filters are ANDed on top.
// Terms that tokenize cleanly are prefiltered through the token index;
// anything else falls back to a full scan. Aggregations are computed
// over the full matching set, before pagination.
func (r *PacketRepository) SearchPackets(ctx context.Context, query *storage.PacketQuery) (*storage.PacketSearchResult, error) {
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

	var matches []*storage.PacketMatch
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		consider := func(packet *core.Packet) {
			if !matchesFilters(packet, &query.Filters) {
				return
			}
			score, ok := scoreTerms(packet.SearchBlob(), terms)
			if ok {
				matches = append(matches, &storage.PacketMatch{Packet: packet, Score: score})
			}
		}

		if tokenQueryable(terms) {
			for _, id := range tokenCandidates(tx, terms) {
				packet, err := readPacket(tx, makePacketKey(id))
				if err != nil {
					return err
				}
				if packet != nil {
					consider(packet)
				}
			}
			return nil
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(packetPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var packet *core.Packet
			err := iter.Item().Value(func(val []byte) error {
				var err error
				packet, err = storage.UnmarshalPacket(val)
				return err
			})
			if err != nil {
				return err
			}
			consider(packet)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sortMatches(matches, query.Sort)

	result := &storage.PacketSearchResult{Total: len(matches)}
	if query.Aggregations {
		result.Aggregations = aggregatePackets(matches)
	}

	lo, hi := query.Page.Clamp(len(matches))
	result.Matches = matches[lo:hi]
	return result, nil
}

// SimilarPackets ranks other packets by similarity to the given one.
// The score combines shared tags (Jaccard, weight 0.5), owner (0.2),
// capture source (0.2), and user action (0.1). Packets scoring below
// minScore are dropped.
func (r *PacketRepository) SimilarPackets(ctx context.Context, id string, minScore float64, limit int) ([]*storage.PacketMatch, error) {
	ref, err := r.GetPacket(ctx, id)
	if err != nil {
		return nil, err
	}
	refTags := normalizedTagSet(ref.Payload.Tags)

	var matches []*storage.PacketMatch
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(packetPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var packet *core.Packet
			err := iter.Item().Value(func(val []byte) error {
				var err error
				packet, err = storage.UnmarshalPacket(val)
				return err
			})
			if err != nil {
				return err
			}
			if packet.ID() == id {
				continue
			}

			score := 0.0
			if packet.Payload.UserID == ref.Payload.UserID {
				score += 0.2
			}
			if packet.Metadata.CaptureSource == ref.Metadata.CaptureSource {
				score += 0.2
			}
			if packet.Metadata.UserAction == ref.Metadata.UserAction {
				score += 0.1
			}
			score += 0.5 * jaccard(refTags, normalizedTagSet(packet.Payload.Tags))

			if score >= minScore {
				matches = append(matches, &storage.PacketMatch{Packet: packet, Score: score})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matches, func(a, b *storage.PacketMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return strings.Compare(a.Packet.ID(), b.Packet.ID())
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// AttentionTrend buckets a user's packets by capture time. Bucket keys
// are UTC: "2006-01-02T15" hourly, "2006-01-02" daily, "2006-W27"
// weekly (ISO week), "2006-01" monthly.
func (r *PacketRepository) AttentionTrend(ctx context.Context, userID string, start, end time.Time, granularity storage.TrendGranularity) ([]storage.TrendBucket, error) {
	var key func(time.Time) string
	switch granularity {
	case storage.TrendHourly:
		key = func(t time.Time) string { return t.Format("2006-01-02T15") }
	case storage.TrendDaily:
		key = func(t time.Time) string { return t.Format("2006-01-02") }
	case storage.TrendWeekly:
		key = func(t time.Time) string {
			year, week := t.ISOWeek()
			return fmt.Sprintf("%04d-W%02d", year, week)
		}
	case storage.TrendMonthly:
		key = func(t time.Time) string { return t.Format("2006-01") }
	default:
		return nil, storage.ErrInvalidQuery
	}

	packets, err := r.GetPacketsByUser(ctx, userID, storage.Pagination{})
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*storage.TrendBucket)
	sums := make(map[string]int)
	for _, p := range packets {
		ts := p.Metadata.CaptureTimestamp
		if ts.Before(start) || !ts.Before(end) {
			continue
		}
		k := key(ts.UTC())
		b := byKey[k]
		if b == nil {
			b = &storage.TrendBucket{
				Bucket:   k,
				BySource: make(map[core.CaptureSource]int),
			}
			byKey[k] = b
		}
		b.PacketCount++
		b.BySource[p.Metadata.CaptureSource]++
		if p.Metadata.AttentionScore > b.PeakAttention {
			b.PeakAttention = p.Metadata.AttentionScore
		}
		sums[k] += p.Metadata.AttentionScore
	}

	buckets := make([]storage.TrendBucket, 0, len(byKey))
	for k, b := range byKey {
		b.MeanAttention = float64(sums[k]) / float64(b.PacketCount)
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Bucket < buckets[j].Bucket
	})
	return buckets, nil
}

// scoreTerms requires every term as a substring of the blob and scores
// by total occurrence count.
func scoreTerms(blob string, terms []string) (float64, bool) {
	score := 1.0
	for _, term := range terms {
		n := strings.Count(blob, term)
		if n == 0 {
			return 0, false
		}
		score += float64(n)
	}
	return score, true
}

// tokenQueryable reports whether every term survives tokenization
// unchanged. Such a term can only match inside an indexed token, so the
// token index sees every packet a full scan would.
func tokenQueryable(terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	for _, term := range terms {
		tokens := core.Tokenize(term)
		if len(tokens) != 1 || tokens[0] != term {
			return false
		}
	}
	return true
}

// tokenCandidates scans the token index keys and returns the IDs of
// packets holding every term inside some token. Keys-only, no packet is
// unmarshalled.
func tokenCandidates(tx *badger.Txn, terms []string) []string {
	var result map[string]bool
	for _, term := range terms {
		ids := make(map[string]bool)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(packetTokenPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			// Key format is prefix:token:packetID; neither tokens nor
			// packet IDs contain a colon.
			rest := string(iter.Item().Key()[len(packetTokenPrefix)+1:])
			sep := strings.LastIndexByte(rest, ':')
			if sep < 0 {
				continue
			}
			if !strings.Contains(rest[:sep], term) {
				continue
			}
			id := rest[sep+1:]
			if result == nil || result[id] {
				ids[id] = true
			}
		}
		iter.Close()
		result = ids
	}

	ids := make([]string, 0, len(result))
	for id := range result {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func matchesFilters(p *core.Packet, f *storage.PacketFilters) bool {
	if f.UserID != "" && p.Payload.UserID != f.UserID {
		return false
	}
	if f.CaptureSource != 0 && p.Metadata.CaptureSource != f.CaptureSource {
		return false
	}
	if f.UserAction != 0 && p.Metadata.UserAction != f.UserAction {
		return false
	}
	if f.Access != 0 && p.Payload.Access != f.Access {
		return false
	}
	if f.DeviceType != "" && p.Metadata.Device.DeviceType != f.DeviceType {
		return false
	}
	if f.HasAttachments != nil && (len(p.Payload.Attachments) > 0) != *f.HasAttachments {
		return false
	}
	if f.MinAttention != nil && p.Metadata.AttentionScore < *f.MinAttention {
		return false
	}
	if f.MaxAttention != nil && p.Metadata.AttentionScore > *f.MaxAttention {
		return false
	}
	if !f.Start.IsZero() && p.Metadata.CaptureTimestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && !p.Metadata.CaptureTimestamp.Before(f.End) {
		return false
	}
	if len(f.Tags) > 0 {
		have := normalizedTagSet(p.Payload.Tags)
		for _, tag := range f.Tags {
			if !have[core.NormalizeTagName(tag)] {
				return false
			}
		}
	}
	return true
}

func sortMatches(matches []*storage.PacketMatch, opts storage.SortOptions) {
	cmp := func(a, b *storage.PacketMatch) int {
		var c int
		switch opts.Field {
		case storage.SortByAttention:
			c = a.Packet.Metadata.AttentionScore - b.Packet.Metadata.AttentionScore
		case storage.SortByUpdateTime:
			c = a.Packet.UpdatedAt.Compare(b.Packet.UpdatedAt)
		default:
			c = a.Packet.Metadata.CaptureTimestamp.Compare(b.Packet.Metadata.CaptureTimestamp)
		}
		if c == 0 {
			c = strings.Compare(a.Packet.ID(), b.Packet.ID())
		}
		if opts.Direction == storage.SortDescending {
			c = -c
		}
		return c
	}
	slices.SortFunc(matches, cmp)
}

func aggregatePackets(matches []*storage.PacketMatch) *storage.PacketAggregations {
	agg := &storage.PacketAggregations{
		BySource: make(map[core.CaptureSource]int),
		ByAction: make(map[core.UserAction]int),
		ByTag:    make(map[string]int),
	}
	sum := 0
	scores := make([]int, 0, len(matches))
	for i, m := range matches {
		p := m.Packet
		agg.BySource[p.Metadata.CaptureSource]++
		agg.ByAction[p.Metadata.UserAction]++
		for _, tag := range p.Payload.Tags {
			agg.ByTag[core.NormalizeTagName(tag)]++
		}

		score := p.Metadata.AttentionScore
		sum += score
		scores = append(scores, score)
		if i == 0 || score < agg.Attention.Min {
			agg.Attention.Min = score
		}
		if score > agg.Attention.Max {
			agg.Attention.Max = score
		}
	}
	if len(scores) > 0 {
		agg.Attention.Mean = float64(sum) / float64(len(scores))
		sort.Ints(scores)
		mid := len(scores) / 2
		if len(scores)%2 == 1 {
			agg.Attention.Median = float64(scores[mid])
		} else {
			agg.Attention.Median = float64(scores[mid-1]+scores[mid]) / 2
		}
	}
	return agg
}

func normalizedTagSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if n := core.NormalizeTagName(tag); n != "" {
			set[n] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
