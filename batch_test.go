package hinata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hinata-sys/hinata/core"
	"github.com/hinata-sys/hinata/storage"
)

func TestExecuteBatch(t *testing.T) {
	db, err := NewDatabase("", WithInMemory())
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	good := testPacket("u1", "first capture", "notes")
	duplicate := testPacket("u1", "second capture")
	duplicate.Metadata.PacketID = good.Metadata.PacketID

	results := db.ExecuteBatch(ctx, []BatchOperation{
		{Action: BatchStorePacket, Packet: good},
		{Action: BatchStorePacket, Packet: duplicate},
		{Action: BatchCreateTag, TagName: "project", TagType: core.TagUser},
		{Action: BatchDeletePacket, PacketID: "no-such-packet"},
		{Action: BatchCreateRelation, Relation: &core.Relation{
			SourceID: "item-a",
			TargetID: "item-a",
			Type:     core.RelationStrongReference,
			Strength: 0.5,
			Origin:   core.OriginUser,
		}},
	})

	require.Len(t, results, 5)

	assert.True(t, results[0].Success)
	assert.Equal(t, BatchCodeOK, results[0].Code)

	assert.False(t, results[1].Success)
	assert.ErrorIs(t, results[1].Error, storage.ErrDuplicateKey)
	assert.Equal(t, BatchCodeDuplicate, results[1].Code)

	assert.True(t, results[2].Success)

	assert.False(t, results[3].Success)
	assert.Equal(t, BatchCodeNotFound, results[3].Code)

	assert.False(t, results[4].Success)
	assert.Equal(t, BatchCodeConsistency, results[4].Code, "self-loop relations are consistency errors")

	// Earlier mutations stay applied after later failures.
	stored, err := db.PacketRepository().GetPacket(ctx, good.ID())
	require.NoError(t, err)
	assert.Equal(t, "first capture", stored.Payload.Highlight)
}

func TestExecuteBatchUpdates(t *testing.T) {
	db, err := NewDatabase("", WithInMemory())
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	packet := testPacket("u1", "before", "notes")
	require.NoError(t, db.PacketRepository().StorePacket(ctx, packet))

	block := &core.KnowledgeBlock{
		ID:            core.NewUUID(),
		UserID:        "u1",
		LibraryItemID: "lib-1",
		Core: core.Core{
			Highlight: "before",
			At:        "https://example.com",
			Access:    core.AccessPrivate,
		},
	}
	require.NoError(t, db.BlockRepository().StoreBlock(ctx, block))

	note := "annotated"
	empty := ""
	results := db.ExecuteBatch(ctx, []BatchOperation{
		{Action: BatchUpdatePacket, PacketID: packet.ID(), PacketPatch: &core.PacketPatch{
			Payload: &core.PayloadPatch{Note: &note},
		}},
		{Action: BatchUpdateBlock, BlockID: block.ID, BlockPatch: &core.BlockPatch{Note: &note}},
		{Action: BatchUpdatePacket, PacketID: "no-such-packet", PacketPatch: &core.PacketPatch{
			Payload: &core.PayloadPatch{Note: &note},
		}},
		{Action: BatchUpdateBlock, BlockID: block.ID, BlockPatch: &core.BlockPatch{Highlight: &empty}},
	})

	require.Len(t, results, 4)

	assert.True(t, results[0].Success)
	assert.Equal(t, BatchCodeOK, results[0].Code)
	assert.True(t, results[1].Success)
	assert.Equal(t, BatchCodeOK, results[1].Code)

	assert.False(t, results[2].Success)
	assert.ErrorIs(t, results[2].Error, storage.ErrNotFound)
	assert.Equal(t, BatchCodeNotFound, results[2].Code)

	// Blanking the highlight fails re-validation of the merged block.
	assert.False(t, results[3].Success)
	assert.Equal(t, BatchCodeValidation, results[3].Code)

	gotPacket, err := db.PacketRepository().GetPacket(ctx, packet.ID())
	require.NoError(t, err)
	assert.Equal(t, "annotated", gotPacket.Payload.Note)

	gotBlock, err := db.BlockRepository().GetBlock(ctx, block.ID)
	require.NoError(t, err)
	assert.Equal(t, "annotated", gotBlock.Note)
	assert.Equal(t, "before", gotBlock.Highlight)
}

func TestExecuteBatchValidationFailures(t *testing.T) {
	db, err := NewDatabase("", WithInMemory())
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	invalid := testPacket("u1", "")

	results := db.ExecuteBatch(ctx, []BatchOperation{
		{Action: BatchStorePacket, Packet: invalid},
		{Action: BatchCreateTag, TagName: "   ", TagType: core.TagUser},
		{Action: BatchAction(99)},
	})

	require.Len(t, results, 3)
	for i, result := range results {
		assert.False(t, result.Success, "operation %d should fail", i)
		assert.Equal(t, BatchCodeValidation, result.Code, "operation %d", i)
	}
	assert.ErrorIs(t, results[2].Error, ErrUnknownBatchAction)
}
