package project

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/npmunifier/pkg/manifest"
)

// field maps a configuration key onto its manifest key.
type field struct {
	key  string // snake_case configuration key
	json string // manifest key
}

// manifestFields lists the recognized fields in the order they are written,
// which follows the conventional npm layout.
var manifestFields = []field{
	{"name", "name"},
	{"version", "version"},
	{"private", "private"},
	{"description", "description"},
	{"keywords", "keywords"},
	{"homepage", "homepage"},
	{"bugs", "bugs"},
	{"license", "license"},
	{"author", "author"},
	{"contributors", "contributors"},
	{"funding", "funding"},
	{"repository", "repository"},
	{"type", "type"},
	{"files", "files"},
	{"main", "main"},
	{"module", "module"},
	{"browser", "browser"},
	{"types", "types"},
	{"exports", "exports"},
	{"imports", "imports"},
	{"bin", "bin"},
	{"man", "man"},
	{"directories", "directories"},
	{"workspaces", "workspaces"},
	{"scripts", "scripts"},
	{"config", "config"},
	{"dependencies", "dependencies"},
	{"dev_dependencies", "devDependencies"},
	{"peer_dependencies", "peerDependencies"},
	{"peer_dependencies_meta", "peerDependenciesMeta"},
	{"optional_dependencies", "optionalDependencies"},
	{"bundle_dependencies", "bundleDependencies"},
	{"overrides", "overrides"},
	{"engines", "engines"},
	{"os", "os"},
	{"cpu", "cpu"},
	{"publish_config", "publishConfig"},
}

// lookupField finds the field for a configuration key written in snake_case,
// kebab-case or the manifest's own camelCase.
func lookupField(key string) (field, bool) {
	snake := strings.ReplaceAll(key, "-", "_")
	for _, f := range manifestFields {
		if snake == f.key || key == f.json {
			return f, true
		}
	}
	return field{}, false
}

// projectFallback derives manifest values from a PEP 621 [project] table.
// Only fields present in the table are returned.
func projectFallback(project map[string]any) map[string]any {
	out := make(map[string]any)
	for _, k := range []string{"name", "version", "description", "keywords"} {
		if v, ok := project[k]; ok {
			out[k] = v
		}
	}

	switch lic := project["license"].(type) {
	case string:
		out["license"] = lic
	case map[string]any:
		if text, ok := lic["text"].(string); ok {
			out["license"] = text
		}
	}

	if authors, ok := project["authors"].([]any); ok && len(authors) > 0 {
		if a, ok := authors[0].(map[string]any); ok {
			if person := formatPerson(a); person != "" {
				out["author"] = person
			}
		}
	}

	// Labels are matched case-insensitively; the first label in sorted
	// order wins when several map to the same field.
	if urls, ok := project["urls"].(map[string]any); ok {
		for _, k := range slices.Sorted(maps.Keys(urls)) {
			var target string
			switch strings.ToLower(k) {
			case "homepage":
				target = "homepage"
			case "repository", "source":
				target = "repository"
			case "issues", "bug tracker", "bugs":
				target = "bugs"
			default:
				continue
			}
			if _, seen := out[target]; !seen {
				out[target] = urls[k]
			}
		}
	}
	return out
}

// formatPerson renders a {name, email} table as "Name <email>".
func formatPerson(p map[string]any) string {
	name, _ := p["name"].(string)
	email, _ := p["email"].(string)
	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s <%s>", name, email)
	case email != "":
		return "<" + email + ">"
	}
	return name
}

// encodeValue converts a decoded configuration value to JSON, keeping the
// configuration's key order for nested tables.
func (c *Config) encodeValue(v any, path []string) (json.RawMessage, error) {
	switch t := v.(type) {
	case map[string]any:
		doc := manifest.NewDocument()
		for _, k := range c.orderedKeys(t, path) {
			raw, err := c.encodeValue(t[k], append(path[:len(path):len(path)], k))
			if err != nil {
				return nil, err
			}
			if err := doc.SetRaw(k, raw); err != nil {
				return nil, err
			}
		}
		return doc.MarshalJSON()
	case []map[string]any:
		items := make([]any, len(t))
		for i := range t {
			items[i] = t[i]
		}
		return c.encodeValue(items, path)
	case []any:
		var b strings.Builder
		b.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			raw, err := c.encodeValue(item, path)
			if err != nil {
				return nil, err
			}
			b.Write(raw)
		}
		b.WriteByte(']')
		return json.RawMessage(b.String()), nil
	default:
		data, err := manifest.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", strings.Join(path, "."), err)
		}
		return data, nil
	}
}
