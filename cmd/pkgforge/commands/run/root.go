// Package run implements "pkgforge run", which builds a job DAG from a manifest file and
// executes it locally to completion, mirroring bb/cmd/bb/commands/run/root.go's shape: a single
// cobra.Command with flags bound directly via StringVar/BoolVar, no viper indirection since
// these values only ever come from this one invocation.
package run

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pkgforge/pkgforge/cmd/pkgforge/cli"
	"github.com/pkgforge/pkgforge/common/logger"
	"github.com/pkgforge/pkgforge/core/catalog"
	"github.com/pkgforge/pkgforge/core/config"
	"github.com/pkgforge/pkgforge/core/dagbuilder"
	"github.com/pkgforge/pkgforge/core/endpoint"
	"github.com/pkgforge/pkgforge/core/jobtask"
	"github.com/pkgforge/pkgforge/core/oracle"
	"github.com/pkgforge/pkgforge/core/orchestrator"
	"github.com/pkgforge/pkgforge/core/progress"
)

var (
	manifestPath string
	format       string
	workDir      string
	dockerHost   string
	dockerImage  string
	noProgress   bool
)

var Cmd = &cobra.Command{
	Use:   "run",
	Short: "Build a package manifest's DAG to completion against a single Docker endpoint",
	RunE:  runE,
}

func init() {
	Cmd.Flags().StringVarP(&manifestPath, "file", "f", "", "Path to the package manifest (required)")
	Cmd.Flags().StringVar(&format, "format", "", "Manifest format: yaml, json, or hcl2 (default: inferred from the file extension)")
	Cmd.Flags().StringVar(&workDir, "work-dir", "./.pkgforge", "Directory for the local release/staging stores and catalog database")
	Cmd.Flags().StringVar(&dockerHost, "docker-host", "unix:///var/run/docker.sock", "Docker daemon address for the build endpoint")
	Cmd.Flags().StringVar(&dockerImage, "docker-image", "", "Docker image used to run each build job (required)")
	Cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the terminal spinner display")
	_ = Cmd.MarkFlagRequired("file")
	_ = Cmd.MarkFlagRequired("docker-image")
}

func runE(cmd *cobra.Command, args []string) error {
	manifest, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}

	f := dagbuilder.Format(format)
	if f == "" {
		switch filepath.Ext(manifestPath) {
		case ".yml", ".yaml":
			f = dagbuilder.FormatYAML
		case ".json":
			f = dagbuilder.FormatJSON
		case ".hcl", ".hcl2":
			f = dagbuilder.FormatHCL2
		default:
			return fmt.Errorf("cannot infer manifest format from %q, pass --format", manifestPath)
		}
	}

	builder := dagbuilder.New()
	d, err := builder.Build(manifest, f)
	if err != nil {
		return fmt.Errorf("parsing manifest: %w", err)
	}

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

	var reporter progress.Reporter = progress.NoOpReporter{}
	var spinners *progress.SpinnerReporter
	if !noProgress {
		names := make([]string, 0, d.Len())
		for _, j := range d.Jobs() {
			names = append(names, j.PackageRef.String())
		}
		spinners = progress.NewSpinnerReporter(names)
		spinners.Start()
		reporter = spinners
	}

	orch := orchestrator.New(reporter, deps)
	artifacts, jobErrs, err := orch.Run(cmd.Context(), d)

	if spinners != nil {
		spinners.Stop()
	}

	if err != nil {
		return err
	}
	if len(jobErrs) > 0 {
		for id, jerr := range jobErrs {
			cli.Stderr.Printf("job %s failed: %s\n", id, jerr)
		}
		return fmt.Errorf("%d job(s) failed", len(jobErrs))
	}

	for _, a := range artifacts {
		cli.Stdout.Println(a.Name())
	}
	return nil
}
