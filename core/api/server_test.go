package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/pkgforge/common/logger"
	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/api"
	"github.com/pkgforge/pkgforge/core/jobtask"
	"github.com/pkgforge/pkgforge/core/store"
)

type fakeArtifact struct{ name string }

func (a fakeArtifact) Name() string                { return a.name }
func (a fakeArtifact) InStore(storeID string) bool { return true }

type alwaysReuseOracle struct{}

func (alwaysReuseOracle) Find(ctx context.Context, job models.JobDefinition, release, staging store.Store, env []models.EnvResource) ([]models.ArtifactPath, error) {
	return []models.ArtifactPath{fakeArtifact{name: job.PackageRef.Name}}, nil
}

func newTestServer() http.Handler {
	srv := api.NewServer(api.Config{Address: ":0"}, jobtask.Collaborators{
		Oracle:     alwaysReuseOracle{},
		LogFactory: logger.NoOpLogFactory,
	}, logger.NoOpLogFactory)
	return srv.Handler()
}

func TestCreateSubmit_LinearManifest_ReturnsRootArtifact(t *testing.T) {
	manifest := `{"packages": [{"name": "libc", "version": "1.0"}, {"name": "app", "version": "1.0", "dependencies": ["libc@1.0"]}]}`
	body, err := json.Marshal(map[string]string{"manifest": manifest, "format": "json"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/submits/", bytes.NewReader(body))
	w := httptest.NewRecorder()
	newTestServer().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		SubmitID  string            `json:"submit_id"`
		Artifacts []string          `json:"artifacts"`
		Errors    map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SubmitID)
	assert.Equal(t, []string{"app"}, resp.Artifacts)
	assert.Empty(t, resp.Errors)
}

func TestCreateSubmit_InvalidManifest_Returns400(t *testing.T) {
	body, err := json.Marshal(map[string]string{"manifest": `{"packages": []}`, "format": "json"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/submits/", bytes.NewReader(body))
	w := httptest.NewRecorder()
	newTestServer().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
