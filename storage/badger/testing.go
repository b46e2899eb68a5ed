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

package badger

import "github.com/hinata-sys/hinata/storage"

// Repositories bundles the four stores sharing one backend.
type Repositories struct {
	Packets   storage.PacketRepository
	Blocks    storage.BlockRepository
	Relations storage.RelationRepository
	Tags      storage.TagRepository
	Backend   *Backend
}

// Close releases the repositories and the backend, in that order.
func (r *Repositories) Close() error {
	r.Packets.Close()
	r.Blocks.Close()
	r.Relations.Close()
	r.Tags.Close()
	return r.Backend.Close()
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must close the result when done.
func NewMemoryRepositories() (*Repositories, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	packets, err := NewPacketRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	blocks, err := NewBlockRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	relations, err := NewRelationRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	tags, err := NewTagRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Repositories{
		Packets:   packets,
		Blocks:    blocks,
		Relations: relations,
		Tags:      tags,
		Backend:   backend,
	}, nil
}
