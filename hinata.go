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


package hinata

import (
	"context"
	"log/slog"

	"github.com/hinata-sys/hinata/config"
	"github.com/hinata-sys/hinata/ingestion"
	"github.com/hinata-sys/hinata/maintenance"
	"github.com/hinata-sys/hinata/recommend"
	"github.com/hinata-sys/hinata/storage"
	"github.com/hinata-sys/hinata/storage/badger"
)

// Database is the facade over the four stores sharing one badger backend.
type Database struct {
	backend   *badger.Backend
	packets   storage.PacketRepository
	blocks    storage.BlockRepository
	relations storage.RelationRepository
	tags      storage.TagRepository
	logger    *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	inMemory bool
	observer storage.Observer
}

// WithInMemory opens the backend in memory. All data is lost on close.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithObserver registers an observer for store events.
func WithObserver(obs storage.Observer) DatabaseOption {
	return func(o *databaseOptions) {
		o.observer = obs
	}
}

// NewDatabase opens the backend at filePath, wires up the four stores, and
// seeds the built-in system tags.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}
	if options.observer != nil {
		backend.SetObserver(options.observer)
	}

	packets, err := badger.NewPacketRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	blocks, err := badger.NewBlockRepository(backend)
	if err != nil {
		packets.Close()
		backend.Close()
		return nil, err
	}

	relations, err := badger.NewRelationRepository(backend)
	if err != nil {
		blocks.Close()
		packets.Close()
		backend.Close()
		return nil, err
	}

	tags, err := badger.NewTagRepository(backend)
	if err != nil {
		relations.Close()
		blocks.Close()
		packets.Close()
		backend.Close()
		return nil, err
	}

	if err := tags.SeedSystemTags(context.Background()); err != nil {
		tags.Close()
		relations.Close()
		blocks.Close()
		packets.Close()
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:   backend,
		packets:   packets,
		blocks:    blocks,
		relations: relations,
		tags:      tags,
		logger:    slog.Default(),
	}, nil
}

// NewDatabaseFromConfig opens a database as described by the storage section
// of the configuration.
func NewDatabaseFromConfig(cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if cfg.Storage.InMemory {
		opts = append(opts, WithInMemory())
	}
	return NewDatabase(cfg.Storage.Path, opts...)
}

// Close releases the repositories, then the backend.
func (db *Database) Close() error {
	if err := db.tags.Close(); err != nil {
		db.logger.Error("error closing tag repository", "err", err)
		return err
	}
	if err := db.relations.Close(); err != nil {
		db.logger.Error("error closing relation repository", "err", err)
		return err
	}
	if err := db.blocks.Close(); err != nil {
		db.logger.Error("error closing block repository", "err", err)
		return err
	}
	if err := db.packets.Close(); err != nil {
		db.logger.Error("error closing packet repository", "err", err)
		return err
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) PacketRepository() storage.PacketRepository {
	return db.packets
}

func (db *Database) BlockRepository() storage.BlockRepository {
	return db.blocks
}

func (db *Database) RelationRepository() storage.RelationRepository {
	return db.relations
}

func (db *Database) TagRepository() storage.TagRepository {
	return db.tags
}

// NewRecommender creates a tag recommender over the database's stores.
func (db *Database) NewRecommender(opts ...recommend.Option) (*recommend.Recommender, error) {
	return recommend.NewRecommender(db.tags, db.relations, opts...)
}

// NewIngestionPipeline creates a capture pipeline. The extractor defaults to
// a recommender built over this database.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	recommender, err := db.NewRecommender()
	if err != nil {
		return nil, err
	}
	return ingestion.NewPipeline(db.packets, db.tags, recommender, opts...)
}

// NewJanitor creates a maintenance janitor over the database's stores.
func (db *Database) NewJanitor(opts ...maintenance.Option) (*maintenance.Janitor, error) {
	return maintenance.NewJanitor(db.relations, db.tags, opts...)
}
