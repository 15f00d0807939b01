package object

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"resume-builder/internal/shared/util"
)

var (
	// ErrInvalidKey is returned for keys that escape the store root.
	ErrInvalidKey = errors.New("invalid storage key")
	// ErrNotFound is returned by Open when nothing is stored under the key.
	ErrNotFound = errors.New("object not found")
)

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	Put(ctx context.Context, storageKey string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}

// ExportKey builds the storage key of a rendered resume export. Owners are
// hashed so keys never expose account ids.
func ExportKey(userID, resumeID string, at time.Time) (string, error) {
	name, err := util.SanitizeFileName(resumeID)
	if err != nil {
		return "", err
	}
	stamp := at.UTC().Format("20060102T150405.000Z")
	return path.Join(ownerPrefix(userID), name, stamp+".pdf"), nil
}

// CleanKey normalizes a key and rejects traversal.
func CleanKey(storageKey string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(storageKey))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." || strings.Contains(storageKey, "..") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

// ownerPrefix is a stable, path-safe stand-in for an account id.
func ownerPrefix(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:16])
}
