// Package store implements the release and staging artifact stores the reuse oracle reads
// and the endpoint driver writes (spec.md section 3). Both are mappings from artifact name to
// ArtifactPath, guarded by a many-reader/single-writer lock so that a reader holding the guard
// across a multi-step query (the oracle's sort/dedup/resolve pipeline) sees a stable snapshot.
package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/pkgforge/pkgforge/common/gerror"
	"github.com/pkgforge/pkgforge/common/models"
)

// Store is the contract the core consumes (spec.md section 6): a name-keyed lookup of
// artifacts, plus the locking primitive a multi-step reader needs to hold across its pipeline.
// Put is not part of the core's own contract (writes happen through the endpoint driver) but
// lives on the same interface because every concrete store implementation needs to satisfy
// both roles; the core's reuse oracle only calls GetLocked/RLock/RUnlock.
type Store interface {
	// ID identifies the store for ArtifactPath.InStore checks and log messages.
	ID() string
	Get(ctx context.Context, name string) (models.ArtifactPath, bool, error)
	// GetLocked is Get's lock-free twin, for a caller that is already bracketing a multi-step
	// query with its own RLock/RUnlock (the reuse oracle's sort/dedup/resolve pipeline).
	// Calling GetLocked without holding RLock races the index; calling Get while already
	// holding RLock self-deadlocks, since sync.RWMutex forbids recursive read locking.
	GetLocked(ctx context.Context, name string) (models.ArtifactPath, bool, error)
	Put(ctx context.Context, name string, content io.Reader) (models.ArtifactPath, error)
	// RLock/RUnlock bracket a read-only multi-step query so the snapshot does not shift
	// mid-pipeline (spec.md section 5, "Shared resources").
	RLock()
	RUnlock()
}

// artifactPath is the concrete models.ArtifactPath returned by stores in this package.
type artifactPath struct {
	name    string
	storeID string
}

func (p artifactPath) Name() string                { return p.name }
func (p artifactPath) InStore(storeID string) bool { return p.storeID == storeID }
func (p artifactPath) String() string              { return fmt.Sprintf("%s@%s", p.name, p.storeID) }

// LocalStore is a filesystem-backed Store, content-addressed by blake2b digest in the manner
// of buildbeaver's blob.LocalBlobStore (server/services/blob/local_store.go), but keyed by
// artifact name rather than an arbitrary blob key: PutBlob there takes the caller's key
// verbatim, where here the digest of the content becomes the on-disk name so that two builds
// producing byte-identical output collapse to one file.
type LocalStore struct {
	id   string
	root string

	mu    sync.RWMutex
	index map[string]string // artifact name -> digest
}

func NewLocalStore(id, root string) *LocalStore {
	return &LocalStore{id: id, root: root, index: make(map[string]string)}
}

func (s *LocalStore) ID() string { return s.id }

func (s *LocalStore) RLock()   { s.mu.RLock() }
func (s *LocalStore) RUnlock() { s.mu.RUnlock() }

func (s *LocalStore) Get(ctx context.Context, name string) (models.ArtifactPath, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.GetLocked(ctx, name)
}

// GetLocked assumes the caller already holds RLock; see Store.GetLocked.
func (s *LocalStore) GetLocked(ctx context.Context, name string) (models.ArtifactPath, bool, error) {
	digest, ok := s.index[name]
	if !ok {
		return nil, false, nil
	}
	if _, err := os.Stat(s.blobPath(digest)); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, gerror.Wrap(gerror.CodeInternalInvariant, err, "stat artifact blob")
	}
	return artifactPath{name: name, storeID: s.id}, true, nil
}

func (s *LocalStore) Put(ctx context.Context, name string, content io.Reader) (models.ArtifactPath, error) {
	tmp, err := os.CreateTemp(s.root, "upload-*")
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeInternalInvariant, err, "create temp artifact file")
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeInternalInvariant, err, "init blake2b hash")
	}
	if _, err := io.Copy(io.MultiWriter(tmp, h), content); err != nil {
		return nil, gerror.Wrap(gerror.CodeInternalInvariant, err, "write artifact content")
	}
	digest := hex.EncodeToString(h.Sum(nil))

	if err := os.MkdirAll(filepath.Dir(s.blobPath(digest)), 0700); err != nil {
		return nil, gerror.Wrap(gerror.CodeInternalInvariant, err, "make blob directory")
	}
	if err := os.Rename(tmp.Name(), s.blobPath(digest)); err != nil {
		return nil, gerror.Wrap(gerror.CodeInternalInvariant, err, "rename artifact blob into place")
	}

	s.mu.Lock()
	s.index[name] = digest
	s.mu.Unlock()

	return artifactPath{name: name, storeID: s.id}, nil
}

func (s *LocalStore) blobPath(digest string) string {
	return filepath.Join(s.root, "blobs", digest[:2], digest[2:])
}
