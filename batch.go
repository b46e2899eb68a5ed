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
	"errors"
	"fmt"

	"github.com/hinata-sys/hinata/core"
	"github.com/hinata-sys/hinata/storage"
)

// BatchAction identifies what a batch operation does.
type BatchAction int

const (
	BatchStorePacket BatchAction = iota + 1
	BatchUpdatePacket
	BatchDeletePacket
	BatchStoreBlock
	BatchUpdateBlock
	BatchDeleteBlock
	BatchCreateRelation
	BatchDeleteRelation
	BatchCreateTag
	BatchDeleteTag
)

// Batch failure codes, so callers can retry only the failed subset without
// parsing error strings.
const (
	BatchCodeOK          = "OK"
	BatchCodeValidation  = "VALIDATION"
	BatchCodeNotFound    = "NOT_FOUND"
	BatchCodeDuplicate   = "DUPLICATE"
	BatchCodeConsistency = "CONSISTENCY"
	BatchCodeInternal    = "INTERNAL"
)

// ErrUnknownBatchAction is returned for an operation with an action outside
// the closed set.
var ErrUnknownBatchAction = errors.New("unknown batch action")

// BatchOperation is one entry in a heterogeneous batch. Only the fields
// relevant to the action are read.
type BatchOperation struct {
	Action BatchAction

	Packet      *core.Packet
	PacketID    string
	PacketPatch *core.PacketPatch

	Block      *core.KnowledgeBlock
	BlockID    string
	BlockPatch *core.BlockPatch

	Relation   *core.Relation
	RelationID core.ID

	TagName     string
	TagType     core.TagType
	TagCategory string
	TagID       core.ID
}

// BatchResult reports the outcome of one batch operation.
type BatchResult struct {
	Success bool
	Error   error
	Code    string
}

// ExecuteBatch applies the operations in order, best effort: a failing
// operation is recorded in its result and never aborts the rest of the
// batch. The batch is not transactional; earlier mutations stay applied when
// a later operation fails.
func (db *Database) ExecuteBatch(ctx context.Context, ops []BatchOperation) []BatchResult {
	results := make([]BatchResult, len(ops))
	for i, op := range ops {
		err := db.applyBatchOperation(ctx, op)
		if err != nil {
			results[i] = BatchResult{Error: err, Code: classifyBatchError(err)}
			continue
		}
		results[i] = BatchResult{Success: true, Code: BatchCodeOK}
	}
	return results
}

func (db *Database) applyBatchOperation(ctx context.Context, op BatchOperation) error {
	switch op.Action {
	case BatchStorePacket:
		return db.packets.StorePacket(ctx, op.Packet)
	case BatchUpdatePacket:
		_, err := db.packets.UpdatePacket(ctx, op.PacketID, op.PacketPatch)
		return err
	case BatchDeletePacket:
		return db.packets.DeletePacket(ctx, op.PacketID)
	case BatchStoreBlock:
		return db.blocks.StoreBlock(ctx, op.Block)
	case BatchUpdateBlock:
		_, err := db.blocks.UpdateBlock(ctx, op.BlockID, op.BlockPatch)
		return err
	case BatchDeleteBlock:
		return db.blocks.DeleteBlock(ctx, op.BlockID)
	case BatchCreateRelation:
		_, err := db.relations.CreateRelation(ctx, op.Relation)
		return err
	case BatchDeleteRelation:
		return db.relations.DeleteRelation(ctx, op.RelationID)
	case BatchCreateTag:
		_, err := db.tags.CreateTag(ctx, op.TagName, op.TagType, op.TagCategory)
		return err
	case BatchDeleteTag:
		return db.tags.DeleteTag(ctx, op.TagID)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownBatchAction, op.Action)
	}
}

func classifyBatchError(err error) string {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return BatchCodeNotFound
	case errors.Is(err, storage.ErrDuplicateKey):
		return BatchCodeDuplicate
	case errors.Is(err, storage.ErrConsistency):
		return BatchCodeConsistency
	case errors.Is(err, core.ErrInvalidPacket),
		errors.Is(err, core.ErrInvalidBlock),
		errors.Is(err, core.ErrInvalidRelation),
		errors.Is(err, core.ErrInvalidTag),
		errors.Is(err, core.ErrEmptyTagName),
		errors.Is(err, core.ErrFieldTooLong),
		errors.Is(err, core.ErrInvalidStrength),
		errors.Is(err, core.ErrInvalidTagType),
		errors.Is(err, storage.ErrInvalidQuery),
		errors.Is(err, ErrUnknownBatchAction):
		return BatchCodeValidation
	default:
		return BatchCodeInternal
	}
}
