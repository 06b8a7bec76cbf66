// Package sourcecache implements the read-only, package-identity-addressed blob cache
// (spec.md section 1). jobtask.Collaborators carries a SourceCache, but JobTask does not call
// it: a RunnableJob is built from the job definition, its environment and its dependency
// artifacts only. Resolution of what a package's sources actually are is a
// DagBuilder/package-repository concern, out of scope here.
package sourcecache

import (
	"context"
	"io"
	"io/fs"
	"path"

	"github.com/bmatcuk/doublestar/v2"
	"github.com/h2non/filetype"

	"github.com/pkgforge/pkgforge/common/gerror"
	"github.com/pkgforge/pkgforge/common/models"
)

// SourceBytes is the "source bytes handle" spec.md section 6 names: a read-only view over a
// package's cached source tree, globbable by the caller.
type SourceBytes interface {
	// Glob returns every cached file path matching pattern (doublestar syntax: ** for
	// recursive match), in the manner of buildbeaver's use of bmatcuk/doublestar for artifact
	// path expansion (runner/artifact_manager.go).
	Glob(pattern string) ([]string, error)
	// Open returns a reader for one cached file.
	Open(name string) (io.ReadCloser, error)
	// Sniff reports the detected content type of a cached file's leading bytes, using
	// h2non/filetype, so a DagBuilder/build toolchain can distinguish e.g. a tarball
	// source from a plain directory checkout without relying on file extensions.
	Sniff(name string) (string, error)
}

// SourceCache is the contract the core consumes (spec.md section 6).
type SourceCache interface {
	Get(ctx context.Context, ref models.PackageRef) (SourceBytes, error)
}

// FSSourceCache is a SourceCache backed by an fs.FS per package, keyed by PackageRef. Any fs.FS
// works (os.DirFS over a local checkout, for one); the run and serve commands do not construct
// one. In tests it is populated with github.com/psanford/memfs, an in-memory fs.FS
// implementation, avoiding any real filesystem I/O.
type FSSourceCache struct {
	byRef map[models.PackageRef]fs.FS
}

func NewFSSourceCache(byRef map[models.PackageRef]fs.FS) *FSSourceCache {
	return &FSSourceCache{byRef: byRef}
}

func (c *FSSourceCache) Get(ctx context.Context, ref models.PackageRef) (SourceBytes, error) {
	fsys, ok := c.byRef[ref]
	if !ok {
		return nil, gerror.Newf(gerror.CodeNotFound, "no cached source for %s", ref)
	}
	return &fsSourceBytes{fsys: fsys}, nil
}

type fsSourceBytes struct {
	fsys fs.FS
}

func (s *fsSourceBytes) Glob(pattern string) ([]string, error) {
	var matches []string
	err := fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := doublestar.Match(pattern, p)
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeInternalInvariant, err, "glob source cache")
	}
	return matches, nil
}

func (s *fsSourceBytes) Open(name string) (io.ReadCloser, error) {
	f, err := s.fsys.Open(path.Clean(name))
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeNotFound, err, "open cached source file")
	}
	rc, ok := f.(io.ReadCloser)
	if !ok {
		return nil, gerror.Newf(gerror.CodeInternalInvariant, "cached source file %q does not support reading", name)
	}
	return rc, nil
}

func (s *fsSourceBytes) Sniff(name string) (string, error) {
	f, err := s.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 261)
	n, err := io.ReadFull(f, head)
	if n == 0 && err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", gerror.Wrap(gerror.CodeInternalInvariant, err, "read source file header")
	}
	kind, err := filetype.Match(head[:n])
	if err != nil {
		return "", gerror.Wrap(gerror.CodeInternalInvariant, err, "sniff source file type")
	}
	if kind == filetype.Unknown {
		return "application/octet-stream", nil
	}
	return kind.MIME.Value, nil
}
