package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"milkbank/internal/infra/persistence/memory"
	"milkbank/internal/infra/persistence/snapshot"
	"milkbank/pkg/domain"
)

type fakeCollection struct {
	docs     []interface{}
	findErr  error
	writeErr error
	written  []mongo.WriteModel
}

func (f *fakeCollection) Find(context.Context, interface{}, ...*options.FindOptions) (*mongo.Cursor, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return mongo.NewCursorFromDocuments(f.docs, nil, nil)
}

func (f *fakeCollection) BulkWrite(_ context.Context, models []mongo.WriteModel, _ ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	f.written = models
	return &mongo.BulkWriteResult{UpsertedCount: int64(len(models))}, nil
}

func newTestBuckets(coll *fakeCollection) *buckets {
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	return &buckets{coll: coll, now: func() time.Time { return fixed }}
}

func TestLoadBucketsDecodesDocuments(t *testing.T) {
	coll := &fakeCollection{docs: []interface{}{
		bson.D{{Key: "_id", Value: memory.BucketRecipients}, {Key: "payload", Value: `{"r1":{"id":"r1","name":"Baby"}}`}},
		bson.D{{Key: "_id", Value: memory.BucketDiscards}, {Key: "payload", Value: `{}`}},
	}}
	store, err := snapshot.Open(context.Background(), newTestBuckets(coll), nil)
	require.NoError(t, err)

	snap := store.ExportState()
	require.Len(t, snap.Recipients, 1)
	assert.Equal(t, "Baby", snap.Recipients["r1"].Name)
}

func TestSaveBucketsUpsertsOneDocumentPerBucket(t *testing.T) {
	coll := &fakeCollection{}
	store, err := snapshot.Open(context.Background(), newTestBuckets(coll), nil)
	require.NoError(t, err)

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateDonor(domain.Donor{Name: "Ana"})
		return err
	})
	require.NoError(t, err)
	require.Len(t, coll.written, len(memory.Buckets))

	seen := map[string]bool{}
	for _, model := range coll.written {
		replace, ok := model.(*mongo.ReplaceOneModel)
		require.True(t, ok)
		require.NotNil(t, replace.Upsert)
		assert.True(t, *replace.Upsert)
		doc, ok := replace.Replacement.(stateDocument)
		require.True(t, ok)
		seen[doc.Bucket] = true
		assert.False(t, doc.UpdatedAt.IsZero())
	}
	assert.Len(t, seen, len(memory.Buckets))
}

func TestSaveFailureRollsBackWorkingSet(t *testing.T) {
	coll := &fakeCollection{writeErr: errors.New("not primary")}
	store, err := snapshot.Open(context.Background(), newTestBuckets(coll), nil)
	require.NoError(t, err)

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateDonor(domain.Donor{Name: "Ana"})
		return err
	})
	require.Error(t, err)
	assert.Empty(t, store.ExportState().Donors)
}

func TestLoadBucketsPropagatesFindError(t *testing.T) {
	coll := &fakeCollection{findErr: errors.New("auth failed")}
	_, err := snapshot.Open(context.Background(), newTestBuckets(coll), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth failed")
	assert.NoError(t, newTestBuckets(coll).Close())
}
