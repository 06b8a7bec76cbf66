package config

import (
	"fmt"
	"strings"

	dockerclient "github.com/docker/docker/client"

	"github.com/pkgforge/pkgforge/common/logger"
	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/endpoint"
	"github.com/pkgforge/pkgforge/core/store"
)

// StoreFactory builds a store.Store from a StoreConfig, mirroring bb/app.BlobStoreFactory's
// type-switch-on-string-then-construct shape.
func StoreFactory(id string, cfg StoreConfig, logFactory logger.LogFactory) (store.Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "local", "":
		return store.NewLocalStore(id, cfg.LocalDirectory), nil
	case "s3":
		return store.NewS3Store(id, store.S3StoreConfig{
			BucketName:      cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
		}, logFactory)
	default:
		return nil, fmt.Errorf("unsupported store type: %q", cfg.Type)
	}
}

// EndpointPoolFactory builds a Pool from every configured endpoint.
func EndpointPoolFactory(cfg EndpointConfig, logFactory logger.LogFactory) (*endpoint.Pool, error) {
	var endpoints []*endpoint.Endpoint
	for _, d := range cfg.Docker {
		cl, err := dockerclient.NewClientWithOpts(dockerclient.WithHost(d.Host), dockerclient.WithAPIVersionNegotiation())
		if err != nil {
			return nil, fmt.Errorf("docker endpoint %q: %w", d.Name, err)
		}
		drv := endpoint.NewDockerDriver(cl, d.Image, logFactory)
		endpoints = append(endpoints, &endpoint.Endpoint{ID: models.NewEndpointID(), Driver: drv})
	}
	for _, r := range cfg.Remote {
		drv := endpoint.NewRemoteHTTPDriver(r.BaseURL, []byte(r.JWTKey), r.Issuer, logFactory)
		endpoints = append(endpoints, &endpoint.Endpoint{ID: models.NewEndpointID(), Driver: drv})
	}
	return endpoint.NewPool(endpoints, logFactory), nil
}
