// Package archive writes traceability archives: full copies of the store
// state kept in blob storage so an auditor can reconstruct which donors,
// bottles and batches fed any administration.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"milkbank/internal/blob"
	"milkbank/internal/core"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "archive/"

// FormatVersion tags every archive document.
const FormatVersion = "milkbank-archive/v1"

const keyTimeLayout = "20060102T150405.000000000Z"

// ErrNoArchive is returned by Latest when nothing has been archived yet.
var ErrNoArchive = errors.New("no archive found")

// Document is the JSON body of an archive blob.
type Document struct {
	Format    string             `json:"format"`
	CreatedAt time.Time          `json:"created_at"`
	State     core.StateSnapshot `json:"state"`
}

// Options tunes an Archiver.
type Options struct {
	Prefix string
	// Retain bounds how many archives are kept; zero keeps all.
	Retain int
	Logger *zap.Logger
	Now    func() time.Time
}

// Archiver snapshots a store into a blob.Store.
type Archiver struct {
	source core.StateArchiver
	blobs  blob.Store
	prefix string
	retain int
	logger *zap.Logger
	now    func() time.Time
}

// New constructs an Archiver over source and blobs.
func New(source core.StateArchiver, blobs blob.Store, opts Options) (*Archiver, error) {
	if source == nil {
		return nil, errors.New("archive source required")
	}
	if blobs == nil {
		return nil, errors.New("archive blob store required")
	}
	if opts.Retain < 0 {
		return nil, fmt.Errorf("invalid retain %d", opts.Retain)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Archiver{
		source: source,
		blobs:  blobs,
		prefix: prefix,
		retain: opts.Retain,
		logger: logger,
		now:    now,
	}, nil
}

// Snapshot exports the current state and stores it under a timestamped key.
func (a *Archiver) Snapshot(ctx context.Context) (blob.Info, error) {
	createdAt := a.now().UTC()
	doc := Document{Format: FormatVersion, CreatedAt: createdAt, State: a.source.ExportState()}
	body, err := json.Marshal(doc)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode archive: %w", err)
	}
	key := a.prefix + createdAt.Format(keyTimeLayout) + ".json"
	info, err := a.blobs.Put(ctx, key, bytes.NewReader(body), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"format":  FormatVersion,
			"records": strconv.Itoa(recordCount(doc.State)),
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store archive %s: %w", key, err)
	}
	a.logger.Info("archive written",
		zap.String("key", info.Key),
		zap.Int64("bytes", info.Size),
		zap.String("checksum", info.Checksum))

	if err := a.prune(ctx); err != nil {
		a.logger.Warn("archive prune failed", zap.Error(err))
	}
	return info, nil
}

// List returns the stored archives, oldest first.
func (a *Archiver) List(ctx context.Context) ([]blob.Info, error) {
	infos, err := a.blobs.List(ctx, a.prefix)
	if err != nil {
		return nil, err
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".json") {
			out = append(out, info)
		}
	}
	return out, nil
}

// Latest returns the newest archive.
func (a *Archiver) Latest(ctx context.Context) (blob.Info, error) {
	infos, err := a.List(ctx)
	if err != nil {
		return blob.Info{}, err
	}
	if len(infos) == 0 {
		return blob.Info{}, ErrNoArchive
	}
	return infos[len(infos)-1], nil
}

// Load reads and decodes the archive stored at key.
func (a *Archiver) Load(ctx context.Context, key string) (Document, error) {
	_, rc, err := a.blobs.Get(ctx, key)
	if err != nil {
		return Document{}, err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return Document{}, fmt.Errorf("read archive %s: %w", key, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode archive %s: %w", key, err)
	}
	if doc.Format != FormatVersion {
		return Document{}, fmt.Errorf("archive %s has unsupported format %q", key, doc.Format)
	}
	return doc, nil
}

// Restore replaces the store state with the archive stored at key. An empty
// key restores the latest archive.
func (a *Archiver) Restore(ctx context.Context, key string) (Document, error) {
	if key == "" {
		latest, err := a.Latest(ctx)
		if err != nil {
			return Document{}, err
		}
		key = latest.Key
	}
	doc, err := a.Load(ctx, key)
	if err != nil {
		return Document{}, err
	}
	if err := a.source.RestoreState(ctx, doc.State); err != nil {
		return Document{}, fmt.Errorf("restore archive %s: %w", key, err)
	}
	a.logger.Info("archive restored", zap.String("key", key), zap.Time("created_at", doc.CreatedAt))
	return doc, nil
}

func (a *Archiver) prune(ctx context.Context) error {
	if a.retain == 0 {
		return nil
	}
	infos, err := a.List(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for len(infos) > a.retain {
		if _, err := a.blobs.Delete(ctx, infos[0].Key); err != nil {
			errs = append(errs, err)
		} else {
			a.logger.Debug("archive pruned", zap.String("key", infos[0].Key))
		}
		infos = infos[1:]
	}
	return errors.Join(errs...)
}

func recordCount(s core.StateSnapshot) int {
	return len(s.Donors) + len(s.Recipients) + len(s.Bottles) + len(s.Batches) +
		len(s.PhysicalInspections) + len(s.QualityControls) +
		len(s.Administrations) + len(s.Discards)
}
