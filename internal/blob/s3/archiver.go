package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// ObjectStore is the part of the bucket the archiver needs.
type ObjectStore interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// BuildArchiver writes one JSON object per built transaction under
// prefix/kind/YYYY/MM/DD/id.json. Identical ids are written once.
type BuildArchiver struct {
	store  ObjectStore
	prefix string
	now    domain.Clock
}

// NewBuildArchiver returns an archiver. A nil clock means time.Now.
func NewBuildArchiver(store ObjectStore, prefix string, now domain.Clock) *BuildArchiver {
	if now == nil {
		now = time.Now
	}
	return &BuildArchiver{store: store, prefix: prefix, now: now}
}

// Key returns the object key for a build.
func (a *BuildArchiver) Key(kind, id string) string {
	return path.Join(a.prefix, kind, a.now().UTC().Format("2006/01/02"), id+".json")
}

// ArchiveBuild stores v as indented JSON.
func (a *BuildArchiver) ArchiveBuild(ctx context.Context, kind, id string, v any) error {
	if id == "" {
		return fmt.Errorf("s3blob: archive %s: empty id", kind)
	}
	key := a.Key(kind, id)
	exists, err := a.store.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal %s: %w", key, err)
	}
	return a.store.Put(ctx, key, bytes.NewReader(raw), "application/json")
}
