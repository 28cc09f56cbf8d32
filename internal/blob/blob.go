// Package blob wraps pkg/storage with the ownership rule screenshots and
// form thumbnails share with every other blob in the system: a blob is
// removed when its owning record is deleted only if no other record
// still points at the same key, checked by query rather than by a
// separate reference count column.
package blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/schoolbot/lockbox/pkg/id"
	"github.com/schoolbot/lockbox/pkg/storage"
)

// Manager uploads and releases screenshot/thumbnail blobs.
type Manager struct {
	store storage.Storage
}

// New builds a Manager over an already-configured storage.Storage.
func New(store storage.Storage) *Manager {
	return &Manager{store: store}
}

// PutScreenshot uploads a PNG screenshot under a fresh opaque key and
// returns that key.
func (m *Manager) PutScreenshot(ctx context.Context, data []byte) (string, error) {
	key := id.NewShortID() + ".png"
	_, err := m.store.Put(ctx, bytes.NewReader(data), int64(len(data)),
		storage.WithKey(key),
		storage.WithPrefix("screenshots"),
		storage.WithContentType("image/png"),
	)
	if err != nil {
		return "", fmt.Errorf("blob: put screenshot: %w", err)
	}
	return key, nil
}

// PutThumbnail uploads a form template thumbnail image under a fresh
// opaque key.
func (m *Manager) PutThumbnail(ctx context.Context, data []byte, contentType string) (string, error) {
	key := id.NewShortID()
	_, err := m.store.Put(ctx, bytes.NewReader(data), int64(len(data)),
		storage.WithKey(key),
		storage.WithPrefix("thumbnails"),
		storage.WithContentType(contentType),
	)
	if err != nil {
		return "", fmt.Errorf("blob: put thumbnail: %w", err)
	}
	return key, nil
}

// ReferenceCheck reports whether some other record still points at key,
// supplied by the caller from the store package that owns the pointing
// record (e.g. "is this screenshot id still any other user's
// last-fill-result?").
type ReferenceCheck func(ctx context.Context, key string) (bool, error)

// Release deletes the blob at key unless stillReferenced reports that
// another record still points at it. A nil or empty key is a no-op.
func (m *Manager) Release(ctx context.Context, key string, stillReferenced ReferenceCheck) error {
	if key == "" {
		return nil
	}

	if stillReferenced != nil {
		referenced, err := stillReferenced(ctx, key)
		if err != nil {
			return fmt.Errorf("blob: check reference: %w", err)
		}
		if referenced {
			return nil
		}
	}

	if err := m.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("blob: delete %s: %w", key, err)
	}
	return nil
}

// ReleaseResultScreenshots releases both screenshots of a FillFormResult,
// each checked independently. A dry run stores the same key for both; that
// key is released once.
func (m *Manager) ReleaseResultScreenshots(ctx context.Context, formScreenshotID, confirmScreenshotID *string, stillReferenced ReferenceCheck) error {
	if formScreenshotID != nil {
		if err := m.Release(ctx, *formScreenshotID, stillReferenced); err != nil {
			return err
		}
	}
	if confirmScreenshotID != nil && (formScreenshotID == nil || *confirmScreenshotID != *formScreenshotID) {
		if err := m.Release(ctx, *confirmScreenshotID, stillReferenced); err != nil {
			return err
		}
	}
	return nil
}
