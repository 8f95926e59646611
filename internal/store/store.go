package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mathclub/ideaboard/internal/model"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidPath = errors.New("invalid document path")
	ErrClosed      = errors.New("store closed")
)

// Snapshot is the full content of a collection after a change. Err is set
// when the live query failed; the subscription ends after such a snapshot.
type Snapshot struct {
	Docs []model.Document
	Err  error
}

// Store is the document database the boards are built on.
type Store interface {
	Submit(ctx context.Context, collectionPath string, fields map[string]any) (model.Document, error)
	Get(ctx context.Context, documentPath string) (model.Document, error)
	List(ctx context.Context, collectionPath string) ([]model.Document, error)
	Update(ctx context.Context, documentPath string, fields map[string]any) error
	Delete(ctx context.Context, documentPath string) error
	// Subscribe delivers the collection immediately and again after every
	// insert, update or delete in it. The channel is closed once ctx ends.
	Subscribe(ctx context.Context, collectionPath string) (<-chan Snapshot, error)
	Close() error
}

// CollectionPath namespaces a collection under an application id so several
// deployments can share one database.
func CollectionPath(appID, name string) string {
	return "artifacts/" + appID + "/public/data/" + name
}

func DocumentPath(collectionPath, id string) string {
	return collectionPath + "/" + id
}

// SplitDocumentPath separates a document path into its collection path and id.
func SplitDocumentPath(documentPath string) (collectionPath, id string, err error) {
	i := strings.LastIndex(documentPath, "/")
	if i <= 0 || i == len(documentPath)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, documentPath)
	}
	collectionPath, id = documentPath[:i], documentPath[i+1:]
	if err := ValidateCollectionPath(collectionPath); err != nil {
		return "", "", err
	}
	return collectionPath, id, nil
}

// ValidateCollectionPath checks that a collection path has an odd number of
// non-empty segments, as in collection/doc/collection.
func ValidateCollectionPath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segments := strings.Split(path, "/")
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	if len(segments)%2 == 0 {
		return fmt.Errorf("%w: %q names a document", ErrInvalidPath, path)
	}
	return nil
}
