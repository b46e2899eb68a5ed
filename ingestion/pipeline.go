package ingestion

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"strings"

	"github.com/panjf2000/ants/v2"

	"github.com/hinata-sys/hinata/core"
	"github.com/hinata-sys/hinata/storage"
)

const (
	defaultMaxTags = 5

	usageMethodManual    = "manual"
	usageMethodExtracted = "extracted"
)

// TagExtractor materializes tags for captured content.
type TagExtractor interface {
	ExtractTags(ctx context.Context, content string, maxTags int) ([]*core.Tag, error)
}

// Pipeline orchestrates the capture and enrichment of packets.
// Stored packets are enriched asynchronously with extracted tags.
type Pipeline struct {
	packets   storage.PacketRepository
	tags      storage.TagRepository
	extractor TagExtractor
	pool      *ants.Pool
	maxTags   int
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent enrichment.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithMaxTags sets how many tags enrichment may extract per packet.
// Default is 5.
func WithMaxTags(n int) Option {
	return func(p *Pipeline) error {
		if n > 0 {
			p.maxTags = n
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new capture pipeline.
func NewPipeline(
	packets storage.PacketRepository,
	tags storage.TagRepository,
	extractor TagExtractor,
	opts ...Option,
) (*Pipeline, error) {
	if packets == nil {
		return nil, ErrPacketRepositoryRequired
	}
	if tags == nil {
		return nil, ErrTagRepositoryRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		packets:   packets,
		tags:      tags,
		extractor: extractor,
		pool:      pool,
		maxTags:   defaultMaxTags,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// Capture stores the packets and submits each one for asynchronous
// enrichment. Storage failures fail the capture; enrichment failures are
// logged but do not.
func (p *Pipeline) Capture(ctx context.Context, packets ...*core.Packet) error {
	for _, packet := range packets {
		if err := p.packets.StorePacket(ctx, packet); err != nil {
			return err
		}
	}

	for _, packet := range packets {
		id := packet.ID()
		err := p.pool.Submit(func() {
			if err := p.enrich(context.Background(), id); err != nil {
				p.logger.Error("error enriching packet", "packetID", id, "err", err)
			}
		})
		if err != nil {
			p.logger.Error("error submitting enrichment", "packetID", id, "err", err)
		}
	}
	return nil
}

// enrich records usage of the packet's manual tags, extracts additional tags
// from the content, and merges the new tag names into the packet.
func (p *Pipeline) enrich(ctx context.Context, packetID string) error {
	packet, err := p.packets.GetPacket(ctx, packetID)
	if err != nil {
		return err
	}

	applied := make(map[string]bool, len(packet.Payload.Tags))
	for _, name := range packet.Payload.Tags {
		tag, err := p.tags.CreateTag(ctx, name, core.TagUser, "")
		if err != nil {
			return err
		}
		if err := p.tags.UseTag(ctx, tag.ID, packetID, usageMethodManual); err != nil {
			return err
		}
		applied[tag.NormalizedName] = true
	}

	content := strings.TrimSpace(packet.Payload.Highlight + " " + packet.Payload.Note)
	extracted, err := p.extractor.ExtractTags(ctx, content, p.maxTags)
	if err != nil {
		return err
	}

	merged := slices.Clone(packet.Payload.Tags)
	for _, tag := range extracted {
		if err := p.tags.UseTag(ctx, tag.ID, packetID, usageMethodExtracted); err != nil {
			return err
		}
		if applied[tag.NormalizedName] {
			continue
		}
		applied[tag.NormalizedName] = true
		merged = append(merged, tag.NormalizedName)
	}
	if len(merged) > core.MaxTags {
		merged = merged[:core.MaxTags]
	}
	if len(merged) == len(packet.Payload.Tags) {
		return nil
	}

	_, err = p.packets.UpdatePacket(ctx, packetID, &core.PacketPatch{
		Payload: &core.PayloadPatch{Tags: &merged},
	})
	return err
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
