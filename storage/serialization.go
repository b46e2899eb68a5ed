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
	"fmt"

	"github.com/hinata-sys/hinata/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: id: %w", ErrSerializationFailed, err)
	}
	return id, nil
}

// MarshalPacket serializes a Packet to bytes.
func MarshalPacket(packet *core.Packet) []byte {
	buf := make([]byte, core.PacketMUS.Size(*packet))
	core.PacketMUS.Marshal(*packet, buf)
	return buf
}

// UnmarshalPacket deserializes a Packet from bytes.
func UnmarshalPacket(data []byte) (*core.Packet, error) {
	packet, _, err := core.PacketMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: packet: %w", ErrSerializationFailed, err)
	}
	return &packet, nil
}

// MarshalBlock serializes a KnowledgeBlock to bytes.
func MarshalBlock(block *core.KnowledgeBlock) []byte {
	buf := make([]byte, core.BlockMUS.Size(*block))
	core.BlockMUS.Marshal(*block, buf)
	return buf
}

// UnmarshalBlock deserializes a KnowledgeBlock from bytes.
func UnmarshalBlock(data []byte) (*core.KnowledgeBlock, error) {
	block, _, err := core.BlockMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: block: %w", ErrSerializationFailed, err)
	}
	return &block, nil
}

// MarshalRelation serializes a Relation to bytes.
func MarshalRelation(rel *core.Relation) []byte {
	buf := make([]byte, core.RelationMUS.Size(*rel))
	core.RelationMUS.Marshal(*rel, buf)
	return buf
}

// UnmarshalRelation deserializes a Relation from bytes.
func UnmarshalRelation(data []byte) (*core.Relation, error) {
	rel, _, err := core.RelationMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: relation: %w", ErrSerializationFailed, err)
	}
	return &rel, nil
}

// MarshalTag serializes a Tag to bytes.
func MarshalTag(tag *core.Tag) []byte {
	buf := make([]byte, core.TagMUS.Size(*tag))
	core.TagMUS.Marshal(*tag, buf)
	return buf
}

// UnmarshalTag deserializes a Tag from bytes.
func UnmarshalTag(data []byte) (*core.Tag, error) {
	tag, _, err := core.TagMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: tag: %w", ErrSerializationFailed, err)
	}
	return &tag, nil
}

// MarshalTagUsage serializes a TagUsage to bytes.
func MarshalTagUsage(usage *core.TagUsage) []byte {
	buf := make([]byte, core.TagUsageMUS.Size(*usage))
	core.TagUsageMUS.Marshal(*usage, buf)
	return buf
}

// UnmarshalTagUsage deserializes a TagUsage from bytes.
func UnmarshalTagUsage(data []byte) (*core.TagUsage, error) {
	usage, _, err := core.TagUsageMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: tag usage: %w", ErrSerializationFailed, err)
	}
	return &usage, nil
}
