package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hinata-sys/hinata/core"
	"github.com/hinata-sys/hinata/storage"
	"github.com/hinata-sys/hinata/storage/badger"
)

func TestNewJanitorValidation(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	_, err = NewJanitor(nil, repos.Tags)
	assert.ErrorIs(t, err, ErrRelationRepositoryRequired)

	_, err = NewJanitor(repos.Relations, nil)
	assert.ErrorIs(t, err, ErrTagRepositoryRequired)
}

func TestRunOnceSweepsStaleSystemRelations(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	ctx := context.Background()

	janitor, err := NewJanitor(repos.Relations, repos.Tags,
		WithRelationTTL(time.Nanosecond), WithDecay(0.5, 0.1))
	require.NoError(t, err)
	t.Cleanup(janitor.Release)

	system := &core.Relation{
		SourceID: "item-a",
		TargetID: "item-b",
		Type:     core.RelationSemanticSimilarity,
		Strength: 0.8,
		Origin:   core.OriginSystem,
	}
	_, err = repos.Relations.CreateRelation(ctx, system)
	require.NoError(t, err)

	user := &core.Relation{
		SourceID: "item-a",
		TargetID: "item-c",
		Type:     core.RelationStrongReference,
		Strength: 0.9,
		Origin:   core.OriginUser,
	}
	_, err = repos.Relations.CreateRelation(ctx, user)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	report, err := janitor.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.DecayedRelations)
	assert.Equal(t, 1, report.RemovedRelations)
	assert.Equal(t, 0, report.RemovedTags)

	// User-origin relations survive any TTL.
	kept, err := repos.Relations.QueryRelations(ctx, &storage.RelationQuery{})
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, user.ID, kept[0].ID)
}

func TestStartStop(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	janitor, err := NewJanitor(repos.Relations, repos.Tags, WithInterval(5*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(janitor.Release)

	janitor.Start()
	janitor.Start() // second start is a no-op
	time.Sleep(20 * time.Millisecond)
	janitor.Stop()
	janitor.Stop() // second stop is a no-op
}
