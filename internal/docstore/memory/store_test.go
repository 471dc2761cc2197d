package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siglatools/sigla/internal/docstore"
)

func TestFindOneAndUpsert_CreatesOnce(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	keys := docstore.Document{"name": "Congress", "category": "gov", "country": nil}

	first, err := s.FindOneAndUpsert(ctx, "institutions", keys)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID())
	assert.Equal(t, "Congress", first["name"])
	assert.Nil(t, first["country"])

	second, err := s.FindOneAndUpsert(ctx, "institutions", keys)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, 1, s.Len("institutions"))
}

func TestBulkUpsert_CreateThenMatch(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	ops := []docstore.UpsertOp{
		{Filter: docstore.Filter{"name": "A"}, Set: docstore.Document{"name": "A", "v": 1}},
		{Filter: docstore.Filter{"name": "B"}, Set: docstore.Document{"name": "B", "v": 1}},
	}

	res, err := s.BulkUpsert(ctx, "things", ops)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Upserted)
	assert.Equal(t, 0, res.Matched)
	require.Len(t, res.UpsertedIDs, 2)

	ops[1].Set = docstore.Document{"name": "B", "v": 2}
	res, err = s.BulkUpsert(ctx, "things", ops)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Upserted)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 1, res.Modified)
	assert.Empty(t, res.UpsertedIDs)

	docs, err := s.Find(ctx, "things", docstore.Filter{"name": "B"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 2.0, docs[0]["v"])
}

func TestBulkUpsert_UpsertedIDsFollowRequestIndex(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.BulkUpsert(ctx, "things", []docstore.UpsertOp{
		{Filter: docstore.Filter{"name": "existing"}, Set: docstore.Document{}},
	})
	require.NoError(t, err)

	res, err := s.BulkUpsert(ctx, "things", []docstore.UpsertOp{
		{Filter: docstore.Filter{"name": "existing"}, Set: docstore.Document{}},
		{Filter: docstore.Filter{"name": "new"}, Set: docstore.Document{}},
	})
	require.NoError(t, err)

	_, hasFirst := res.UpsertedIDs[0]
	assert.False(t, hasFirst)
	id, ok := res.UpsertedIDs[1]
	require.True(t, ok)

	docs, err := s.Find(ctx, "things", docstore.Filter{"name": "new"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID())
}

func TestBulkUpsert_PartialFailure(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	res, err := s.BulkUpsert(ctx, "things", []docstore.UpsertOp{
		{Filter: docstore.Filter{"name": "ok"}, Set: docstore.Document{}},
		{Filter: docstore.Filter{"name": docstore.InStrings([]string{"a", "b"})}, Set: docstore.Document{}},
		{Filter: docstore.Filter{"name": "also-ok"}, Set: docstore.Document{}},
	})
	require.Error(t, err)

	var bulkErr *docstore.BulkWriteError
	require.True(t, errors.As(err, &bulkErr))
	require.Len(t, bulkErr.Failures, 1)
	assert.Equal(t, 1, bulkErr.Failures[0].Index)
	assert.True(t, errors.Is(err, docstore.ErrInvalidFilter))

	require.NotNil(t, res)
	assert.Equal(t, 2, res.Upserted)
	assert.Equal(t, 2, s.Len("things"))
}

func TestFind_MembershipAndOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for _, name := range []string{"c", "a", "b"} {
		_, err := s.FindOneAndUpsert(ctx, "letters", docstore.Document{"name": name})
		require.NoError(t, err)
	}

	docs, err := s.Find(ctx, "letters", docstore.Filter{"name": docstore.InStrings([]string{"a", "c"})})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "c", docs[0]["name"])
	assert.Equal(t, "a", docs[1]["name"])

	byID, err := s.Find(ctx, "letters", docstore.Filter{docstore.IDField: docs[1].ID()})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "a", byID[0]["name"])
}

func TestFind_MissingCollection(t *testing.T) {
	s := NewStore()
	docs, err := s.Find(context.Background(), "nothing", docstore.Filter{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestFind_ReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, err := s.FindOneAndUpsert(ctx, "things", docstore.Document{"name": "x"})
	require.NoError(t, err)

	docs, err := s.Find(ctx, "things", docstore.Filter{})
	require.NoError(t, err)
	docs[0]["name"] = "mutated"

	again, err := s.Find(ctx, "things", docstore.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "x", again[0]["name"])
}

func TestCollectionsAndDeleteMany(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.FindOneAndUpsert(ctx, "variables", docstore.Document{"name": "v"})
	require.NoError(t, err)
	_, err = s.FindOneAndUpsert(ctx, "institutions", docstore.Document{"name": "i1"})
	require.NoError(t, err)
	_, err = s.FindOneAndUpsert(ctx, "institutions", docstore.Document{"name": "i2"})
	require.NoError(t, err)

	names, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"institutions", "variables"}, names)

	n, err := s.DeleteMany(ctx, "institutions")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 0, s.Len("institutions"))

	n, err = s.DeleteMany(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestClosedStore(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	ctx := context.Background()
	_, err := s.Find(ctx, "things", nil)
	assert.True(t, docstore.IsClosed(err))
	_, err = s.FindOneAndUpsert(ctx, "things", docstore.Document{"a": 1})
	assert.True(t, docstore.IsClosed(err))
	_, err = s.BulkUpsert(ctx, "things", nil)
	assert.True(t, docstore.IsClosed(err))
	_, err = s.Collections(ctx)
	assert.True(t, docstore.IsClosed(err))
	_, err = s.DeleteMany(ctx, "things")
	assert.True(t, docstore.IsClosed(err))
}

func TestInvalidCollection(t *testing.T) {
	s := NewStore()
	_, err := s.Find(context.Background(), "bad name", nil)
	assert.True(t, errors.Is(err, docstore.ErrInvalidCollection))
}

func TestCancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.BulkUpsert(ctx, "things", []docstore.UpsertOp{{Filter: docstore.Filter{"a": 1}}})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, s.Len("things"))
}
