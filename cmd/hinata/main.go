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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hinata-sys/hinata"
	"github.com/hinata-sys/hinata/config"
	"github.com/hinata-sys/hinata/core"
	"github.com/hinata-sys/hinata/maintenance"
	"github.com/hinata-sys/hinata/storage"
)

func main() {
	app := &cli.App{
		Name:  "hinata",
		Usage: "Knowledge capture storage and indexing engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "capture",
				Usage:  "Capture a highlight as a packet",
				Action: captureCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "Owner of the capture",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "highlight",
						Usage:    "Captured text",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "note",
						Usage: "Annotation attached to the capture",
					},
					&cli.StringFlag{
						Name:     "at",
						Usage:    "Source address of the capture",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "tag",
						Usage: "Tag to apply (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "extract",
						Usage: "Extract additional tags from the content",
					},
				},
			},
			{
				Name:   "search",
				Usage:  "Search captured packets",
				Action: searchCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Search terms, all of which must match",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "user",
						Aliases: []string{"u"},
						Usage:   "Restrict results to one user",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show capture and tag statistics for a user",
				Action: statsCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User to report on",
						Required: true,
					},
				},
			},
			{
				Name:   "cleanup",
				Usage:  "Run one maintenance sweep over relations and tags",
				Action: cleanupCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.DurationFlag{
						Name:  "relation-ttl",
						Usage: "How long an untouched system relation survives",
						Value: 90 * 24 * time.Hour,
					},
					&cli.Float64Flag{
						Name:  "decay-factor",
						Usage: "Multiplier applied to stale relation strengths",
						Value: 0.9,
					},
					&cli.Float64Flag{
						Name:  "decay-floor",
						Usage: "Strength below which decayed relations are deleted",
						Value: 0.1,
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "Create the built-in system tags",
				Action: seedCommand,
				Flags:  []cli.Flag{dbFlag()},
			},
			{
				Name:   "run",
				Usage:  "Run the store with background maintenance until interrupted",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the YAML configuration file",
						Required: true,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to the database directory",
		Required: true,
	}
}

func openDatabase(c *cli.Context) (*hinata.Database, error) {
	db, err := hinata.NewDatabase(c.String("db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func captureCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	packet := &core.Packet{
		Metadata: core.PacketMetadata{
			PacketID:         core.NewUUID(),
			CaptureSource:    core.CaptureManualInput,
			CaptureTimestamp: time.Now(),
			UserAction:       core.ActionQuickSave,
		},
		Payload: core.PacketPayload{
			Core: core.Core{
				Highlight: c.String("highlight"),
				Note:      c.String("note"),
				At:        c.String("at"),
				Tags:      c.StringSlice("tag"),
				Access:    core.AccessPrivate,
			},
			UserID: c.String("user"),
		},
	}
	if err := db.PacketRepository().StorePacket(ctx, packet); err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	fmt.Printf("captured packet %s\n", packet.ID())

	if !c.Bool("extract") {
		return nil
	}
	recommender, err := db.NewRecommender()
	if err != nil {
		return err
	}
	content := strings.TrimSpace(packet.Payload.Highlight + " " + packet.Payload.Note)
	extracted, err := recommender.ExtractTags(ctx, content, 5)
	if err != nil {
		return fmt.Errorf("tag extraction failed: %w", err)
	}
	for _, tag := range extracted {
		if err := db.TagRepository().UseTag(ctx, tag.ID, packet.ID(), "extracted"); err != nil {
			return err
		}
		fmt.Printf("extracted tag %s\n", tag.NormalizedName)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	query := &storage.PacketQuery{
		Terms:   strings.Fields(c.String("query")),
		Filters: storage.PacketFilters{UserID: c.String("user")},
		Page:    storage.Pagination{Limit: c.Int("limit")},
	}
	result, err := db.PacketRepository().SearchPackets(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Printf("%d matching packets\n", result.Total)
	for _, match := range result.Matches {
		fmt.Printf("%8.2f  %s  %s\n", match.Score, match.Packet.ID(), match.Packet.Payload.Highlight)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	user := c.String("user")
	packets, err := db.PacketRepository().GetPacketsByUser(ctx, user, storage.Pagination{})
	if err != nil {
		return err
	}
	stats, err := db.BlockRepository().BlockStatistics(ctx, user)
	if err != nil {
		return err
	}
	popular, err := db.TagRepository().PopularTags(ctx, 10)
	if err != nil {
		return err
	}

	fmt.Printf("packets:    %d\n", len(packets))
	fmt.Printf("blocks:     %d\n", stats.TotalBlocks)
	fmt.Printf("note items: %d\n", stats.TotalNoteItems)
	fmt.Printf("references: %d\n", stats.TotalReferences)
	if len(popular) > 0 {
		fmt.Println("popular tags:")
		for _, tag := range popular {
			fmt.Printf("  %-24s %d\n", tag.NormalizedName, tag.UsageCount)
		}
	}
	return nil
}

func cleanupCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	janitor, err := db.NewJanitor(
		maintenance.WithRelationTTL(c.Duration("relation-ttl")),
		maintenance.WithDecay(c.Float64("decay-factor"), c.Float64("decay-floor")),
	)
	if err != nil {
		return err
	}
	defer janitor.Release()

	report, err := janitor.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	fmt.Printf("decayed relations: %d\n", report.DecayedRelations)
	fmt.Printf("removed relations: %d\n", report.RemovedRelations)
	fmt.Printf("removed tags:      %d\n", report.RemovedTags)
	return nil
}

func runCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	db, err := hinata.NewDatabaseFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.TagRepository().SeedSystemTags(context.Background()); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	janitor, err := db.NewJanitor(
		maintenance.WithInterval(cfg.Maintenance.Interval),
		maintenance.WithRelationTTL(cfg.Maintenance.RelationTTL),
		maintenance.WithDecay(cfg.Maintenance.DecayFactor, cfg.Maintenance.DecayFloor),
	)
	if err != nil {
		return err
	}
	defer janitor.Release()
	janitor.Start()

	logger.Info("store running", "path", cfg.Storage.Path, "sweepInterval", cfg.Maintenance.Interval.String())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	return nil
}

func seedCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.TagRepository().SeedSystemTags(ctx); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	fmt.Println("system tags seeded")
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
