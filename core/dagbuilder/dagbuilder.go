// Package dagbuilder parses package-manifest documents (YAML, JSON or HCL2) into a frozen
// dag.JobDag, mirroring the multi-format support of buildbeaver's
// server/services/queue/parser.BuildDefinitionParser. DAG resolution itself - turning version
// constraints into concrete package versions - is explicitly out of scope (spec.md Non-goals);
// a manifest must already name exact package/version pairs.
package dagbuilder

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/pkgforge/pkgforge/common/gerror"
	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/dag"
)

// Format identifies which concrete syntax a manifest document is written in.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatHCL2 Format = "hcl2"
)

// manifestPackage is one package entry as it appears in a manifest, before resolution into a
// models.JobDefinition. Dependencies name other packages by "name@version"; only exact versions
// are accepted (spec.md's Open Question on version constraints is resolved in favor of the
// DagBuilder rejecting anything else, rather than the core needing to understand constraints).
type manifestPackage struct {
	Name         string            `yaml:"name" json:"name"`
	Version      string            `yaml:"version" json:"version"`
	Dependencies []string          `yaml:"dependencies" json:"dependencies"`
	Env          map[string]string `yaml:"env" json:"env"`
}

type manifestDocument struct {
	Root     string            `yaml:"root" json:"root"`
	Packages []manifestPackage `yaml:"packages" json:"packages"`
}

// Builder parses manifest documents into a dag.JobDag.
type Builder struct{}

func New() *Builder { return &Builder{} }

// Build parses data (in the given format) into a validated, acyclic JobDag.
func (b *Builder) Build(data []byte, format Format) (*dag.StaticJobDag, error) {
	var doc manifestDocument
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatHCL2:
		doc, err = parseHCL2(data)
	default:
		return nil, gerror.Newf(gerror.CodeValidation, "unsupported manifest format: %q", format)
	}
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeValidation, err, fmt.Sprintf("parse %s manifest", format))
	}

	if len(doc.Packages) == 0 {
		return nil, gerror.New(gerror.CodeValidation, "manifest declares no packages")
	}

	refToID := make(map[string]models.JobID, len(doc.Packages))
	for _, p := range doc.Packages {
		if p.Name == "" || p.Version == "" {
			return nil, gerror.Newf(gerror.CodeValidation, "package entry missing name or version: %+v", p)
		}
		refToID[packageKey(p.Name, p.Version)] = models.NewJobID()
	}

	jobs := make([]models.JobDefinition, 0, len(doc.Packages))
	for _, p := range doc.Packages {
		id := refToID[packageKey(p.Name, p.Version)]

		deps := make([]models.JobID, 0, len(p.Dependencies))
		for _, depRef := range p.Dependencies {
			depID, ok := refToID[depRef]
			if !ok {
				return nil, gerror.Newf(gerror.CodeValidation, "package %s@%s depends on unknown package %q (exact name@version required)", p.Name, p.Version, depRef)
			}
			deps = append(deps, depID)
		}

		var resources []models.Resource
		for name, value := range p.Env {
			resources = append(resources, models.NewEnvResource(name, value))
		}

		jobs = append(jobs, models.JobDefinition{
			ID:           id,
			PackageRef:   models.PackageRef{Name: p.Name, Version: p.Version},
			Dependencies: deps,
			Resources:    resources,
		})
	}

	d, err := dag.New(jobs)
	if err != nil {
		return nil, errors.Wrap(err, "manifest does not describe a valid DAG")
	}

	if doc.Root != "" {
		rootID, ok := refToID[doc.Root]
		if !ok {
			return nil, gerror.Newf(gerror.CodeValidation, "manifest root %q does not name a declared package", doc.Root)
		}
		roots := d.Roots()
		if len(roots) != 1 || !roots[0].ID.Equal(rootID) {
			return nil, gerror.Newf(gerror.CodeValidation, "declared root %q is not the DAG's unique sink; check for packages with no dependents other than it", doc.Root)
		}
	}

	return d, nil
}

func packageKey(name, version string) string { return name + "@" + version }
