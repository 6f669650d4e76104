package project

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/npmunifier/pkg/errors"
	"github.com/matzehuels/npmunifier/pkg/manifest"
)

func mustParse(t *testing.T, data string) *Config {
	t.Helper()
	cfg, err := ParseTOML([]byte(data))
	if err != nil {
		t.Fatalf("ParseTOML error: %v", err)
	}
	return cfg
}

func readManifest(t *testing.T, path string) *manifest.Document {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := manifest.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestGenerateMapsFields(t *testing.T) {
	cfg := mustParse(t, `[tool.npmunifier]
package_manager = "npm"
name = "demo"
version = "1.2.3"
dev_dependencies = { vite = "^5.0.0" }

[tool.npmunifier.scripts]
test = "vitest"
build = "vite build"
`)
	doc, err := NewTranslator().Generate(cfg)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	want := []string{"name", "version", "devDependencies", "scripts"}
	if got := doc.Keys(); !slices.Equal(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	raw, _ := doc.Raw("scripts")
	if string(raw) != `{"test":"vitest","build":"vite build"}` {
		t.Errorf("scripts = %s, want config order", raw)
	}
	if doc.Has("package_manager") || doc.Has("packageManager") {
		t.Error("options must not leak into the manifest")
	}
}

func TestGenerateOmitsAbsentFields(t *testing.T) {
	cfg := mustParse(t, `[tool.npmunifier]
name = "only-name"
`)
	doc, err := NewTranslator().Generate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Keys(); !slices.Equal(got, []string{"name"}) {
		t.Errorf("Keys() = %v, want [name]", got)
	}
}

func TestGenerateProjectFallback(t *testing.T) {
	cfg := mustParse(t, `[project]
name = "py-name"
version = "0.1.0"
description = "A thing"
license = { text = "MIT" }
authors = [{ name = "Ada", email = "ada@example.com" }, { name = "Bob" }]

[project.urls]
Homepage = "https://example.com"

[tool.npmunifier]
name = "js-name"
`)
	doc, err := NewTranslator().Generate(cfg)
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"name":        "js-name",
		"version":     "0.1.0",
		"description": "A thing",
		"license":     "MIT",
		"author":      "Ada <ada@example.com>",
		"homepage":    "https://example.com",
	}
	for key, want := range tests {
		if got := doc.StringField(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestGeneratePackagePassthrough(t *testing.T) {
	cfg := mustParse(t, `[tool.npmunifier]
name = "demo"

[tool.npmunifier.package]
packageManager = "pnpm@9.0.0"
"lint-staged" = { "*.ts" = "eslint" }
`)
	doc, err := NewTranslator().Generate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if doc.StringField("packageManager") != "pnpm@9.0.0" {
		t.Errorf("packageManager = %q", doc.StringField("packageManager"))
	}
	raw, _ := doc.Raw("lint-staged")
	if string(raw) != `{"*.ts":"eslint"}` {
		t.Errorf("lint-staged = %s", raw)
	}
}

func TestTranslatePersistentMerge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, manifest.Filename)
	if err := os.WriteFile(path, []byte(`{"name":"old","private":true}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := mustParse(t, `[tool.npmunifier]
name = "new"

[tool.npmunifier.scripts]
build = "tsc"
`)
	cfg.Options.NodeProjectDir = dir

	res, err := NewTranslator().Translate(cfg)
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if !res.Written || res.Path != path {
		t.Errorf("Written = %v, Path = %q", res.Written, res.Path)
	}
	if !slices.Equal(res.Changed, []string{"name", "scripts"}) {
		t.Errorf("Changed = %v", res.Changed)
	}

	doc := readManifest(t, path)
	if doc.Name() != "new" {
		t.Errorf("name = %q, want new", doc.Name())
	}
	if v, _ := doc.Get("private"); v != true {
		t.Errorf("private = %v, want preserved", v)
	}
	if doc.Scripts()["build"] != "tsc" {
		t.Errorf("scripts = %v", doc.Scripts())
	}
	if got := doc.Keys(); !slices.Equal(got, []string{"name", "private", "scripts"}) {
		t.Errorf("Keys() = %v", got)
	}
}

func TestTranslatePersistentNoChangeSkipsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, manifest.Filename)
	original := `{"name":"same"}`
	if err := os.WriteFile(path, []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := mustParse(t, "[tool.npmunifier]\nname = \"same\"\n")
	cfg.Options.NodeProjectDir = dir

	res, err := NewTranslator().Translate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Written || len(res.Changed) != 0 {
		t.Errorf("Written = %v, Changed = %v; want untouched", res.Written, res.Changed)
	}
	data, _ := os.ReadFile(path)
	if string(data) != original {
		t.Errorf("file rewritten: %q", data)
	}
}

const operatorsConfig = `[tool.npmunifier]
name = "demo"

[tool.npmunifier.scripts]
build = "tsc && vite build"

[tool.npmunifier.engines]
node = ">=18"
`

func TestTranslatePersistentKeepsOperators(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, manifest.Filename)
	original := `{
  "name": "demo",
  "scripts": {
    "build": "tsc && vite build"
  },
  "engines": {
    "node": ">=18"
  }
}
`
	if err := os.WriteFile(path, []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := mustParse(t, operatorsConfig)
	cfg.Options.NodeProjectDir = dir

	res, err := NewTranslator().Translate(cfg)
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if res.Written || len(res.Changed) != 0 {
		t.Errorf("Written = %v, Changed = %v; want untouched", res.Written, res.Changed)
	}
	data, _ := os.ReadFile(path)
	if string(data) != original {
		t.Errorf("file rewritten:\n%s", data)
	}
}

func TestTranslatePersistentWritesOperatorsVerbatim(t *testing.T) {
	dir := t.TempDir()
	cfg := mustParse(t, operatorsConfig)
	cfg.Options.NodeProjectDir = dir

	res, err := NewTranslator().Translate(cfg)
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"tsc && vite build"`, `">=18"`} {
		if !bytes.Contains(data, []byte(want)) {
			t.Errorf("manifest lacks %s:\n%s", want, data)
		}
	}
	if bytes.Contains(data, []byte(`\u00`)) {
		t.Errorf("manifest contains escaped characters:\n%s", data)
	}

	again, err := NewTranslator().Translate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if again.Written || len(again.Changed) != 0 {
		t.Errorf("second Translate: Written = %v, Changed = %v", again.Written, again.Changed)
	}
}

func TestGenerateDottedKeysKeepFileOrder(t *testing.T) {
	cfg := mustParse(t, `[tool.npmunifier]
name = "demo"
engines.node = ">=18"
engines.npm = ">=9"

[tool.npmunifier.dependencies]
react = "^18.0.0"
`)
	doc, err := NewTranslator().Generate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := doc.Keys(), []string{"name", "engines", "dependencies"}; !slices.Equal(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	raw, _ := doc.Raw("engines")
	if string(raw) != `{"node":">=18","npm":">=9"}` {
		t.Errorf("engines = %s", raw)
	}
}

func TestGenerateProjectURLsDeterministic(t *testing.T) {
	cfg := mustParse(t, `[project]
name = "demo"

[project.urls]
homepage = "https://lower.example.com"
Homepage = "https://upper.example.com"
Source = "https://example.com/source"
Repository = "https://example.com/repo"
`)
	for range 20 {
		doc, err := NewTranslator().Generate(cfg)
		if err != nil {
			t.Fatal(err)
		}
		if got := doc.StringField("homepage"); got != "https://upper.example.com" {
			t.Fatalf("homepage = %q", got)
		}
		if got := doc.StringField("repository"); got != "https://example.com/repo" {
			t.Fatalf("repository = %q", got)
		}
	}
}

func TestTranslatePersistentCreates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "web")
	cfg := mustParse(t, "[tool.npmunifier]\nname = \"fresh\"\n")
	cfg.Options.NodeProjectDir = dir

	res, err := NewTranslator().Translate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if doc := readManifest(t, res.Path); doc.Name() != "fresh" {
		t.Errorf("name = %q", doc.Name())
	}
	if res.Dir != dir {
		t.Errorf("Dir = %q, want %q", res.Dir, dir)
	}
}

func TestTranslatePersistentMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, manifest.Filename)
	if err := os.WriteFile(path, []byte(`{"name":`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := mustParse(t, "[tool.npmunifier]\nname = \"x\"\n")
	cfg.Options.NodeProjectDir = dir

	if _, err := NewTranslator().Translate(cfg); !errors.Is(err, errors.ErrCodeManifestParse) {
		t.Errorf("Translate error = %v, want %s", err, errors.ErrCodeManifestParse)
	}
	data, _ := os.ReadFile(path)
	if string(data) != `{"name":` {
		t.Error("malformed manifest was overwritten")
	}
}

func TestTranslateMemoryCreatesNoFile(t *testing.T) {
	dir := t.TempDir()
	cfg := mustParse(t, `[tool.npmunifier]
output = "memory"
name = "mem"
`)
	cfg.Options.NodeProjectDir = dir

	res, err := NewTranslator().Translate(cfg)
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if res.Written {
		t.Error("Written = true in memory mode")
	}
	if _, err := os.Stat(filepath.Join(dir, manifest.Filename)); !os.IsNotExist(err) {
		t.Errorf("manifest exists after memory translation: %v", err)
	}

	doc, err := res.Store().Load()
	if err != nil {
		t.Fatal(err)
	}
	if doc.Name() != "mem" {
		t.Errorf("stored name = %q", doc.Name())
	}
}

func TestTranslateTemporary(t *testing.T) {
	project := t.TempDir()
	existing := filepath.Join(project, manifest.Filename)
	if err := os.WriteFile(existing, []byte(`{"name":"base","private":true}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := mustParse(t, `[tool.npmunifier]
output = "temporary"
version = "2.0.0"
`)
	cfg.Options.NodeProjectDir = project

	res, err := NewTranslator(WithTempDir(t.TempDir())).Translate(cfg)
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if res.Dir == project {
		t.Fatal("temporary output written into the project directory")
	}

	doc := readManifest(t, res.Path)
	if doc.Name() != "base" || doc.Version() != "2.0.0" {
		t.Errorf("temporary manifest = %s/%s", doc.Name(), doc.Version())
	}
	if readManifest(t, existing).Has("version") {
		t.Error("existing manifest modified in temporary mode")
	}

	if err := res.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(res.Dir); !os.IsNotExist(err) {
		t.Error("temporary directory survives Cleanup")
	}
	if err := res.Cleanup(); err != nil {
		t.Errorf("second Cleanup error: %v", err)
	}
}

func TestExampleConfigs(t *testing.T) {
	tests := []struct {
		path     string
		wantName string
		wantKeys []string
		wantMode OutputMode
	}{
		{
			path:     "../../examples/basic/pyproject.toml",
			wantName: "demo-app",
			wantKeys: []string{"name", "version", "description", "homepage", "license", "author", "private", "type", "scripts", "dependencies", "devDependencies", "browserslist"},
			wantMode: OutputPersistent,
		},
		{
			path:     "../../examples/yaml/project.yaml",
			wantName: "yaml-demo",
			wantKeys: []string{"name", "version", "scripts", "devDependencies"},
			wantMode: OutputTemporary,
		},
	}

	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			cfg, err := LoadConfig(tt.path)
			if err != nil {
				t.Fatalf("LoadConfig error: %v", err)
			}
			if cfg.Options.Output != tt.wantMode {
				t.Errorf("Output = %q, want %q", cfg.Options.Output, tt.wantMode)
			}
			doc, err := NewTranslator().Generate(cfg)
			if err != nil {
				t.Fatalf("Generate error: %v", err)
			}
			if doc.Name() != tt.wantName {
				t.Errorf("name = %q, want %q", doc.Name(), tt.wantName)
			}
			if got := doc.Keys(); !slices.Equal(got, tt.wantKeys) {
				t.Errorf("Keys() = %v, want %v", got, tt.wantKeys)
			}
		})
	}
}

func TestGenerateWarnsOnInvalidName(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)

	cfg := mustParse(t, "[tool.npmunifier]\nname = \"Not Valid\"\n")
	doc, err := NewTranslator(WithTranslatorLogger(logger)).Generate(cfg)
	if err != nil {
		t.Fatalf("invalid name must not fail generation: %v", err)
	}
	if doc.Name() != "Not Valid" {
		t.Errorf("name = %q", doc.Name())
	}
	if !strings.Contains(buf.String(), "package name may be rejected") {
		t.Errorf("expected a warning, got %q", buf.String())
	}
}
