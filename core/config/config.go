// Package config assembles Config, the top-level settings struct for a pkgforge run, in the
// style of buildbeaver's bb/app.BBConfig: plain Go structs with programmatic defaults,
// overridden by the run/serve subcommands' own flags (wired in cmd/pkgforge). The config file
// and environment that cmd/pkgforge loads through spf13/viper are not applied to it.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkgforge/pkgforge/core/catalog"
)

// StoreConfig selects and configures one of the Store implementations (spec.md section 6).
type StoreConfig struct {
	// Type is "local" or "s3".
	Type           string
	LocalDirectory string
	S3Bucket       string
	S3Region       string
	S3AccessKeyID  string
	S3SecretKey    string
}

// CatalogConfig selects and configures the SQLCatalog's backing database.
type CatalogConfig struct {
	Driver             catalog.Driver
	ConnectionString   string
	MaxIdleConnections int
	MaxOpenConnections int
}

// DockerEndpointConfig configures one DockerDriver-backed endpoint.
type DockerEndpointConfig struct {
	Name  string
	Host  string
	Image string
}

// RemoteEndpointConfig configures one RemoteHTTPDriver-backed endpoint.
type RemoteEndpointConfig struct {
	Name    string
	BaseURL string
	JWTKey  string
	Issuer  string
}

// EndpointConfig lists the build endpoints available to the scheduler (spec.md section 4.1).
type EndpointConfig struct {
	Docker []DockerEndpointConfig
	Remote []RemoteEndpointConfig
}

// ProgressConfig controls how job progress is reported (spec.md section 9).
type ProgressConfig struct {
	// Disabled is not read by cmd/pkgforge: "pkgforge run" picks progress.NoOpReporter from
	// its own --no-progress flag.
	Disabled bool
}

// Config is the complete, assembled configuration for one pkgforge process.
type Config struct {
	ReleaseStore StoreConfig
	StagingStore StoreConfig
	Catalog      CatalogConfig
	Endpoints    EndpointConfig
	Progress     ProgressConfig

	// EndpointPollTimeout is set by DefaultConfig but not read: EndpointPool.Acquire is bounded
	// only by the context it is given.
	EndpointPollTimeout time.Duration

	LogLevel string
}

// DefaultConfig returns a Config usable for a local, single-machine run: a local filesystem
// release/staging store pair and a sqlite catalog under workDir, no endpoints configured (the
// caller must add at least one before scheduling any job), matching the "no magic production
// defaults" stance bb/app.NewBBConfig takes for its own local-mode config.
func DefaultConfig(workDir string) *Config {
	return &Config{
		ReleaseStore: StoreConfig{Type: "local", LocalDirectory: filepath.Join(workDir, "release")},
		StagingStore: StoreConfig{Type: "local", LocalDirectory: filepath.Join(workDir, "staging")},
		Catalog: CatalogConfig{
			Driver:             catalog.DriverSQLite3,
			ConnectionString:   fmt.Sprintf("file:%s?cache=shared", filepath.Join(workDir, "catalog.db")),
			MaxIdleConnections: 2,
			MaxOpenConnections: 10,
		},
		Progress:            ProgressConfig{},
		EndpointPollTimeout: 5 * time.Minute,
		LogLevel:            "info",
	}
}

// EndpointCount reports how many build endpoints are configured. EndpointPoolFactory does not
// consult it; an empty Pool fails at its first Acquire.
func (c *Config) EndpointCount() int {
	return len(c.Endpoints.Docker) + len(c.Endpoints.Remote)
}
