// Package serve implements "pkgforge serve", which runs the REST front door over the
// Orchestrator, mirroring server/cmd/bb-server/main.go's startup/signal-shutdown shape.
package serve

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pkgforge/pkgforge/common/logger"
	"github.com/pkgforge/pkgforge/core/api"
	"github.com/pkgforge/pkgforge/core/catalog"
	"github.com/pkgforge/pkgforge/core/config"
	"github.com/pkgforge/pkgforge/core/endpoint"
	"github.com/pkgforge/pkgforge/core/jobtask"
	"github.com/pkgforge/pkgforge/core/oracle"
)

var (
	address     string
	workDir     string
	dockerHost  string
	dockerImage string
)

var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST front door, accepting submits over HTTP and streaming progress over SSE",
	RunE:  runE,
}

func init() {
	Cmd.Flags().StringVar(&address, "address", ":8090", "Address to listen on")
	Cmd.Flags().StringVar(&workDir, "work-dir", "./.pkgforge", "Directory for the local release/staging stores and catalog database")
	Cmd.Flags().StringVar(&dockerHost, "docker-host", "unix:///var/run/docker.sock", "Docker daemon address for the build endpoint")
	Cmd.Flags().StringVar(&dockerImage, "docker-image", "", "Docker image used to run each build job (required)")
	_ = Cmd.MarkFlagRequired("docker-image")
}

func runE(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("creating work dir: %w", err)
	}
	cfg := config.DefaultConfig(workDir)
	cfg.Endpoints.Docker = append(cfg.Endpoints.Docker, config.DockerEndpointConfig{
		Name:  "local",
		Host:  dockerHost,
		Image: dockerImage,
	})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logFactory := logger.NewLogrusLogFactory(level)

	releaseStore, err := config.StoreFactory("release", cfg.ReleaseStore, logFactory)
	if err != nil {
		return fmt.Errorf("release store: %w", err)
	}
	stagingStore, err := config.StoreFactory("staging", cfg.StagingStore, logFactory)
	if err != nil {
		return fmt.Errorf("staging store: %w", err)
	}
	cat, err := catalog.NewSQLCatalog(cfg.Catalog.Driver, cfg.Catalog.ConnectionString, logFactory)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	pool, err := config.EndpointPoolFactory(cfg.Endpoints, logFactory)
	if err != nil {
		return fmt.Errorf("endpoint pool: %w", err)
	}
	scheduler := endpoint.NewScheduler(pool, stagingStore)

	deps := jobtask.Collaborators{
		Oracle:     oracle.New(cat),
		Scheduler:  scheduler,
		Release:    releaseStore,
		Staging:    stagingStore,
		LogFactory: logFactory,
	}

	srv := api.NewServer(api.Config{Address: address}, deps, logFactory)
	srv.Start()
	log.Printf("pkgforge serve listening on %s", address)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	log.Print("server shutdown complete")
	return nil
}
