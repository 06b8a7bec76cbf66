package sourcecache_test

import (
	"context"
	"io"
	"io/fs"
	"testing"

	"github.com/psanford/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/sourcecache"
)

func TestFSSourceCache_GetAndGlob(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.MkdirAll("src", 0755))
	require.NoError(t, fsys.WriteFile("src/main.c", []byte("int main() {}"), 0644))
	require.NoError(t, fsys.WriteFile("README.md", []byte("# libfoo"), 0644))

	ref := models.PackageRef{Name: "libfoo", Version: "1.0"}
	cache := sourcecache.NewFSSourceCache(map[models.PackageRef]fs.FS{ref: fsys})

	bytes, err := cache.Get(context.Background(), ref)
	require.NoError(t, err)

	matches, err := bytes.Glob("src/*.c")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.c"}, matches)

	f, err := bytes.Open("README.md")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "# libfoo", string(data))
}

func TestFSSourceCache_Get_UnknownPackage(t *testing.T) {
	cache := sourcecache.NewFSSourceCache(nil)
	_, err := cache.Get(context.Background(), models.PackageRef{Name: "missing"})
	require.Error(t, err)
}
