package catalog

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/pkgforge/pkgforge/common/gerror"
	"github.com/pkgforge/pkgforge/common/logger"
	"github.com/pkgforge/pkgforge/common/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Driver names the SQL backend a SQLCatalog talks to; the query builder dialect and the
// golang-migrate database driver are both chosen from this.
type Driver string

const (
	DriverSQLite3  Driver = "sqlite3"
	DriverPostgres Driver = "postgres"
)

// SQLCatalog is a Catalog backed by jmoiron/sqlx for query execution, doug-martin/goqu for
// building the candidate-artifact query, and golang-migrate for schema setup - mirroring the
// split buildbeaver draws between its store layer (hand-written SQL + sqlx scanning) and its
// db connection/migration bootstrap, but collapsed into one package since the catalog here has
// a single table rather than a full entity model.
type SQLCatalog struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
	log     logger.Log
}

// NewSQLCatalog opens dataSourceName with driver, runs pending migrations, and returns a ready
// Catalog. driver selects both the goqu SQL dialect and the golang-migrate database driver.
func NewSQLCatalog(driver Driver, dataSourceName string, logFactory logger.LogFactory) (*SQLCatalog, error) {
	log := logFactory("SQLCatalog")

	db, err := sqlx.Connect(string(driver), dataSourceName)
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeInternalInvariant, err, "open catalog database")
	}

	if err := runMigrations(db.DB, driver, log); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLCatalog{
		db:      db,
		dialect: goqu.Dialect(string(driver)),
		log:     log,
	}, nil
}

func runMigrations(db *sql.DB, driver Driver, log logger.Log) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return gerror.Wrap(gerror.CodeInternalInvariant, err, "load embedded migrations")
	}

	var dbDriver migrate.DatabaseDriver
	switch driver {
	case DriverSQLite3:
		dbDriver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case DriverPostgres:
		dbDriver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		return gerror.Newf(gerror.CodeValidation, "unsupported catalog driver %q", driver)
	}
	if err != nil {
		return gerror.Wrap(gerror.CodeInternalInvariant, err, "build migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", source, string(driver), dbDriver)
	if err != nil {
		return gerror.Wrap(gerror.CodeInternalInvariant, err, "construct migrator")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return gerror.Wrap(gerror.CodeInternalInvariant, err, "run catalog migrations")
	}
	log.Debug("catalog schema up to date")
	return nil
}

type artifactRow struct {
	SubmitID       string    `db:"submit_id"`
	JobID          string    `db:"job_id"`
	PackageName    string    `db:"package_name"`
	PackageVersion string    `db:"package_version"`
	ArtifactName   string    `db:"artifact_name"`
	Fingerprint    string    `db:"fingerprint"`
	Released       bool      `db:"released"`
	CreatedAt      time.Time `db:"created_at"`
}

// FindArtifacts returns candidates in catalog order (insertion order, oldest first), which is
// the tie-break the oracle's staging-preference sort falls back to (spec.md section 4.2).
// Rows are matched on package name and version only: env is not used, and neither is the
// stored fingerprint, so a candidate built under a different environment is still returned.
func (c *SQLCatalog) FindArtifacts(ctx context.Context, pkg models.PackageRef, env []models.EnvResource, includeReleased bool) ([]CandidateArtifact, error) {
	ds := c.dialect.From("catalog_artifacts").
		Select("submit_id", "job_id", "package_name", "package_version", "artifact_name", "fingerprint", "released", "created_at").
		Where(goqu.C("package_name").Eq(pkg.Name), goqu.C("package_version").Eq(pkg.Version)).
		Order(goqu.C("id").Asc())
	if !includeReleased {
		ds = ds.Where(goqu.C("released").Eq(false))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeOracle, err, "build catalog query")
	}

	var rows []artifactRow
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, gerror.Wrap(gerror.CodeOracle, err, "query catalog")
	}

	out := make([]CandidateArtifact, 0, len(rows))
	for _, r := range rows {
		out = append(out, CandidateArtifact{
			Name: r.ArtifactName,
			Metadata: ArtifactMetadata{
				Fingerprint: r.Fingerprint,
				Released:    r.Released,
			},
		})
	}
	return out, nil
}

func (c *SQLCatalog) RecordJob(ctx context.Context, submitID models.SubmitID, job models.JobDefinition, fingerprint string, artifactNames []string) error {
	if len(artifactNames) == 0 {
		return nil
	}
	ds := c.dialect.Insert("catalog_artifacts").Cols(
		"submit_id", "job_id", "package_name", "package_version", "artifact_name", "fingerprint", "released",
	)
	rows := make([][]interface{}, 0, len(artifactNames))
	for _, name := range artifactNames {
		rows = append(rows, []interface{}{
			submitID.String(), job.ID.String(), job.PackageRef.Name, job.PackageRef.Version, name, fingerprint, false,
		})
	}
	ds = ds.Vals(rows...)

	query, args, err := ds.ToSQL()
	if err != nil {
		return gerror.Wrap(gerror.CodeInternalInvariant, err, "build catalog insert")
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return gerror.Wrap(gerror.CodeInternalInvariant, err, "record job artifacts")
	}
	return nil
}

// fingerprintInput is hashed by Fingerprint; field order does not matter to hashstructure, but
// slice order does, so callers must pass dependencyArtifacts in a stable order if they want a
// stable fingerprint across runs with the same logical inputs.
type fingerprintInput struct {
	Package      string
	Dependencies []string
	Resources    []string
}

func (c *SQLCatalog) Fingerprint(job models.JobDefinition, dependencyArtifacts []models.ArtifactPath) (string, error) {
	names := make([]string, 0, len(dependencyArtifacts))
	for _, a := range dependencyArtifacts {
		names = append(names, a.Name())
	}
	resources := make([]string, 0, len(job.Resources))
	for _, r := range models.Env(job.Resources) {
		resources = append(resources, fmt.Sprintf("%s=%s", r.Name, r.Value))
	}

	h, err := hashstructure.Hash(fingerprintInput{
		Package:      job.PackageRef.String(),
		Dependencies: names,
		Resources:    resources,
	}, hashstructure.FormatV2, nil)
	if err != nil {
		return "", gerror.Wrap(gerror.CodeOracle, err, "compute job fingerprint")
	}
	return fmt.Sprintf("%x", h), nil
}

func (c *SQLCatalog) Close() error {
	return c.db.Close()
}
