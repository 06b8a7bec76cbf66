package dagbuilder

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// hclManifestSchema describes the terraform-style block syntax:
//
//	root = "name@version"
//	package "name" "version" {
//	  dependencies = ["otherpkg@1.0"]
//	  env = { KEY = "value" }
//	}
var hclManifestSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{{Name: "root"}},
	Blocks:     []hcl.BlockHeaderSchema{{Type: "package", LabelNames: []string{"name", "version"}}},
}

var hclPackageBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "dependencies"},
		{Name: "env"},
	},
}

// parseHCL2 parses an HCL2 package manifest into the same manifestDocument shape the YAML/JSON
// parsers produce, so Build's validation and wiring logic is format-agnostic beyond this point.
func parseHCL2(data []byte) (manifestDocument, error) {
	var doc manifestDocument

	file, diags := hclsyntax.ParseConfig(data, "manifest.hcl", hcl.InitialPos)
	if diags.HasErrors() {
		return doc, diags
	}

	content, diags := file.Body.Content(hclManifestSchema)
	if diags.HasErrors() {
		return doc, diags
	}

	if attr, ok := content.Attributes["root"]; ok {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return doc, diags
		}
		if err := gocty.FromCtyValue(val, &doc.Root); err != nil {
			return doc, err
		}
	}

	for _, block := range content.Blocks {
		pkg := manifestPackage{Name: block.Labels[0], Version: block.Labels[1]}

		body, diags := block.Body.Content(hclPackageBodySchema)
		if diags.HasErrors() {
			return doc, diags
		}

		if attr, ok := body.Attributes["dependencies"]; ok {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return doc, diags
			}
			deps, err := ctyStringSlice(val)
			if err != nil {
				return doc, err
			}
			pkg.Dependencies = deps
		}

		if attr, ok := body.Attributes["env"]; ok {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return doc, diags
			}
			env, err := ctyStringMap(val)
			if err != nil {
				return doc, err
			}
			pkg.Env = env
		}

		doc.Packages = append(doc.Packages, pkg)
	}

	return doc, nil
}

func ctyStringSlice(val cty.Value) ([]string, error) {
	if val.IsNull() {
		return nil, nil
	}
	var out []string
	it := val.ElementIterator()
	for it.Next() {
		_, v := it.Element()
		var s string
		if err := gocty.FromCtyValue(v, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func ctyStringMap(val cty.Value) (map[string]string, error) {
	if val.IsNull() {
		return nil, nil
	}
	out := make(map[string]string)
	it := val.ElementIterator()
	for it.Next() {
		k, v := it.Element()
		var ks, vs string
		if err := gocty.FromCtyValue(k, &ks); err != nil {
			return nil, err
		}
		if err := gocty.FromCtyValue(v, &vs); err != nil {
			return nil, err
		}
		out[ks] = vs
	}
	return out, nil
}
