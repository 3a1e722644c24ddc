package archive

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milkbank/internal/blob"
	"milkbank/internal/core"
)

type steppingClock struct{ t time.Time }

func (c *steppingClock) now() time.Time {
	current := c.t
	c.t = c.t.Add(time.Hour)
	return current
}

func newFixture(t *testing.T, retain int) (*core.Service, *Archiver, blob.Store) {
	t.Helper()
	svc := core.NewInMemoryService(nil)
	source, ok := svc.Store().(core.StateArchiver)
	require.True(t, ok, "memory store must export state")
	blobs := blob.NewMemory()
	clock := &steppingClock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	archiver, err := New(source, blobs, Options{Retain: retain, Now: clock.now})
	require.NoError(t, err)
	return svc, archiver, blobs
}

func registerDonor(t *testing.T, svc *core.Service, name string) core.Donor {
	t.Helper()
	donor, _, err := svc.RegisterDonor(context.Background(), core.DonorInput{Name: name})
	require.NoError(t, err)
	return donor
}

func TestNewValidatesArguments(t *testing.T) {
	svc := core.NewInMemoryService(nil)
	source := svc.Store().(core.StateArchiver)

	_, err := New(nil, blob.NewMemory(), Options{})
	assert.Error(t, err)
	_, err = New(source, nil, Options{})
	assert.Error(t, err)
	_, err = New(source, blob.NewMemory(), Options{Retain: -1})
	assert.Error(t, err)

	archiver, err := New(source, blob.NewMemory(), Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPrefix, archiver.prefix)
}

func TestSnapshotWritesTimestampedDocument(t *testing.T) {
	ctx := context.Background()
	svc, archiver, blobs := newFixture(t, 0)
	donor := registerDonor(t, svc, "Ana")

	info, err := archiver.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "archive/20250301T080000.000000000Z.json", info.Key)
	assert.NotEmpty(t, info.Checksum)

	head, err := blobs.Head(ctx, info.Key)
	require.NoError(t, err)
	assert.Equal(t, "application/json", head.ContentType)
	assert.Equal(t, FormatVersion, head.Metadata["format"])
	assert.Equal(t, "1", head.Metadata["records"])

	doc, err := archiver.Load(ctx, info.Key)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), doc.CreatedAt)
	require.Contains(t, doc.State.Donors, donor.ID)
	assert.Equal(t, "Ana", doc.State.Donors[donor.ID].Name)
}

func TestSnapshotsWithinOneSecondGetDistinctKeys(t *testing.T) {
	ctx := context.Background()
	svc := core.NewInMemoryService(nil)
	source := svc.Store().(core.StateArchiver)
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(500 * time.Millisecond)}
	archiver, err := New(source, blob.NewMemory(), Options{Now: func() time.Time {
		next := ticks[0]
		ticks = ticks[1:]
		return next
	}})
	require.NoError(t, err)

	first, err := archiver.Snapshot(ctx)
	require.NoError(t, err)
	second, err := archiver.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "archive/20250301T080000.000000000Z.json", first.Key)
	assert.Equal(t, "archive/20250301T080000.500000000Z.json", second.Key)

	listed, err := archiver.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, first.Key, listed[0].Key)
	assert.Equal(t, second.Key, listed[1].Key)
}

func TestRestoreReplacesState(t *testing.T) {
	ctx := context.Background()
	svc, archiver, _ := newFixture(t, 0)
	first := registerDonor(t, svc, "Ana")
	info, err := archiver.Snapshot(ctx)
	require.NoError(t, err)

	registerDonor(t, svc, "Bea")
	donors, err := svc.ListDonors(ctx)
	require.NoError(t, err)
	require.Len(t, donors, 2)

	_, err = archiver.Restore(ctx, info.Key)
	require.NoError(t, err)
	donors, err = svc.ListDonors(ctx)
	require.NoError(t, err)
	require.Len(t, donors, 1)
	assert.Equal(t, first.ID, donors[0].ID)
}

func TestRestoreLatestByDefault(t *testing.T) {
	ctx := context.Background()
	svc, archiver, _ := newFixture(t, 0)

	_, err := archiver.Restore(ctx, "")
	assert.ErrorIs(t, err, ErrNoArchive)

	registerDonor(t, svc, "Ana")
	_, err = archiver.Snapshot(ctx)
	require.NoError(t, err)
	registerDonor(t, svc, "Bea")
	latest, err := archiver.Snapshot(ctx)
	require.NoError(t, err)
	registerDonor(t, svc, "Carla")

	doc, err := archiver.Restore(ctx, "")
	require.NoError(t, err)
	assert.Len(t, doc.State.Donors, 2)
	got, err := archiver.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, latest.Key, got.Key)

	donors, err := svc.ListDonors(ctx)
	require.NoError(t, err)
	assert.Len(t, donors, 2)
}

func TestRetentionPrunesOldest(t *testing.T) {
	ctx := context.Background()
	_, archiver, _ := newFixture(t, 2)
	var keys []string
	for i := 0; i < 3; i++ {
		info, err := archiver.Snapshot(ctx)
		require.NoError(t, err)
		keys = append(keys, info.Key)
	}
	listed, err := archiver.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, keys[1], listed[0].Key)
	assert.Equal(t, keys[2], listed[1].Key)
}

func TestLoadRejectsForeignDocuments(t *testing.T) {
	ctx := context.Background()
	_, archiver, blobs := newFixture(t, 0)

	_, err := blobs.Put(ctx, "archive/bad.json", strings.NewReader("not json"), blob.PutOptions{})
	require.NoError(t, err)
	_, err = archiver.Load(ctx, "archive/bad.json")
	assert.Error(t, err)

	_, err = blobs.Put(ctx, "archive/other.json", strings.NewReader(`{"format":"other/v9"}`), blob.PutOptions{})
	require.NoError(t, err)
	_, err = archiver.Load(ctx, "archive/other.json")
	assert.ErrorContains(t, err, "unsupported format")

	_, err = archiver.Load(ctx, "archive/missing.json")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}
