package dagbuilder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/pkgforge/core/dagbuilder"
)

func TestBuild_YAML_LinearChain(t *testing.T) {
	manifest := []byte(`
root: app@1.0
packages:
  - name: libc
    version: "1.0"
  - name: app
    version: "1.0"
    dependencies: ["libc@1.0"]
    env:
      CC: gcc
`)
	b := dagbuilder.New()
	d, err := b.Build(manifest, dagbuilder.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())

	roots := d.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, "app", roots[0].PackageRef.Name)
}

func TestBuild_JSON_UnknownDependencyRejected(t *testing.T) {
	manifest := []byte(`{"packages": [{"name": "app", "version": "1.0", "dependencies": ["missing@1.0"]}]}`)
	b := dagbuilder.New()
	_, err := b.Build(manifest, dagbuilder.FormatJSON)
	require.Error(t, err)
}

func TestBuild_HCL2_LinearChain(t *testing.T) {
	manifest := []byte(`
root = "app@1.0"

package "libc" "1.0" {
}

package "app" "1.0" {
  dependencies = ["libc@1.0"]
  env = { CC = "gcc" }
}
`)
	b := dagbuilder.New()
	d, err := b.Build(manifest, dagbuilder.FormatHCL2)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
}

func TestBuild_EmptyManifestRejected(t *testing.T) {
	b := dagbuilder.New()
	_, err := b.Build([]byte(`{"packages": []}`), dagbuilder.FormatJSON)
	require.Error(t, err)
}
