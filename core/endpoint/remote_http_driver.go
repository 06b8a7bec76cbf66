package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/pkgforge/pkgforge/common/gerror"
	"github.com/pkgforge/pkgforge/common/logger"
	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/store"
)

// RemoteHTTPDriver is a Driver that dispatches a job to an out-of-process remote build
// endpoint over HTTP, authenticating with a short-lived bearer JWT. Unlike DockerDriver it owns
// no container lifecycle directly - the remote side does - so Run is a single synchronous
// request/response exchange, with no polling.
type RemoteHTTPDriver struct {
	client  *retryablehttp.Client
	baseURL string
	signKey []byte
	issuer  string
	log     logger.Log
}

func NewRemoteHTTPDriver(baseURL string, signKey []byte, issuer string, logFactory logger.LogFactory) *RemoteHTTPDriver {
	log := logFactory("RemoteHTTPDriver")
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3
	return &RemoteHTTPDriver{client: client, baseURL: baseURL, signKey: signKey, issuer: issuer, log: log}
}

type runRequest struct {
	PackageName    string            `json:"package_name"`
	PackageVersion string            `json:"package_version"`
	Dependencies   []string          `json:"dependencies"`
	Env            map[string]string `json:"env"`
}

type runResponse struct {
	ArtifactNames []string `json:"artifact_names"`
	Error         string   `json:"error,omitempty"`
}

// Run POSTs the runnable job to the remote endpoint's /run endpoint and waits synchronously
// for its response. The log sink is not written to: this driver does not fetch any log output
// from the remote side.
func (d *RemoteHTTPDriver) Run(ctx context.Context, job RunnableJob, logs LogSink, staging store.Store) ([]models.ArtifactPath, error) {
	env := make(map[string]string, len(job.Env))
	for _, e := range job.Env {
		env[e.Name] = e.Value
	}
	deps := make([]string, 0, len(job.DependencyArtifacts))
	for _, a := range job.DependencyArtifacts {
		deps = append(deps, a.Name())
	}

	body, err := json.Marshal(runRequest{
		PackageName:    job.Job.PackageRef.Name,
		PackageVersion: job.Job.PackageRef.Version,
		Dependencies:   deps,
		Env:            env,
	})
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeScheduler, err, "encode run request")
	}

	token, err := d.signToken(job.Job.ID.String())
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeScheduler, err, "sign endpoint auth token")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeScheduler, err, "build run request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeEndpointUnreachable, err, "call remote endpoint")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeScheduler, err, "read run response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, gerror.Newf(gerror.CodeScheduler, "remote endpoint returned %d: %s", resp.StatusCode, string(data))
	}

	var parsed runResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, gerror.Wrap(gerror.CodeScheduler, err, "decode run response")
	}
	if parsed.Error != "" {
		return nil, gerror.Newf(gerror.CodeScheduler, "job %s failed on remote endpoint: %s", job.Job.PackageRef, parsed.Error)
	}

	artifacts := make([]models.ArtifactPath, 0, len(parsed.ArtifactNames))
	for _, name := range parsed.ArtifactNames {
		path, ok, err := staging.Get(ctx, name)
		if err != nil {
			return nil, gerror.Wrap(gerror.CodeScheduler, err, "resolve remote artifact in staging")
		}
		if !ok {
			return nil, gerror.Newf(gerror.CodeInternalInvariant, "remote endpoint reported artifact %q not present in staging", name)
		}
		artifacts = append(artifacts, path)
	}
	return artifacts, nil
}

func (d *RemoteHTTPDriver) NumberOfRunningContainers(ctx context.Context) (int, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/load", nil)
	if err != nil {
		return 0, gerror.Wrap(gerror.CodeScheduler, err, "build load request")
	}
	token, err := d.signToken("load-query")
	if err != nil {
		return 0, gerror.Wrap(gerror.CodeScheduler, err, "sign endpoint auth token")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, gerror.Wrap(gerror.CodeEndpointUnreachable, err, "query remote endpoint load")
	}
	defer resp.Body.Close()

	var parsed struct {
		RunningContainers int `json:"running_containers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, gerror.Wrap(gerror.CodeScheduler, err, "decode load response")
	}
	return parsed.RunningContainers, nil
}

func (d *RemoteHTTPDriver) signToken(subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    d.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(d.signKey)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}
