package project

import (
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/npmunifier/pkg/errors"
	"github.com/matzehuels/npmunifier/pkg/manifest"
)

// Translator derives manifest content from a project configuration and
// writes it according to the configured output mode.
type Translator struct {
	logger  *log.Logger
	tempDir string
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithTranslatorLogger sets the logger. Defaults to a discarding logger.
func WithTranslatorLogger(l *log.Logger) TranslatorOption {
	return func(t *Translator) { t.logger = l }
}

// WithTempDir sets the parent directory for temporary output.
// Defaults to [os.TempDir].
func WithTempDir(dir string) TranslatorOption {
	return func(t *Translator) { t.tempDir = dir }
}

// NewTranslator creates a Translator.
func NewTranslator(opts ...TranslatorOption) *Translator {
	t := &Translator{}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = log.New(io.Discard)
	}
	return t
}

// Result describes one translation.
type Result struct {
	Mode     OutputMode
	Path     string             // Manifest path; not created in memory mode
	Dir      string             // Directory commands should run in
	Document *manifest.Document // Final manifest content
	Changed  []string           // Top-level keys that were added or changed
	Written  bool               // Whether a file was written

	store   *manifest.Store
	cleanup func() error
}

// Store returns a manifest store holding the translated document.
// Loading from it never re-reads the file behind the caller's back.
func (r *Result) Store() *manifest.Store { return r.store }

// Cleanup removes temporary output. It is a no-op for other modes and safe
// to call more than once.
func (r *Result) Cleanup() error {
	if r.cleanup == nil {
		return nil
	}
	fn := r.cleanup
	r.cleanup = nil
	return fn()
}

// Generate maps cfg onto a new manifest document. Fields absent from the
// configuration are omitted. Values from the dedicated section take
// precedence over the [project] fallback, and the verbatim package table
// takes precedence over both.
func (t *Translator) Generate(cfg *Config) (*manifest.Document, error) {
	doc := manifest.NewDocument()

	fallback := projectFallback(cfg.project)
	for _, f := range manifestFields {
		v, ok := fallback[f.json]
		if !ok {
			continue
		}
		raw, err := cfg.encodeValue(v, []string{"project", f.json})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "field %s", f.json)
		}
		if err := doc.SetRaw(f.json, raw); err != nil {
			return nil, err
		}
	}

	var pkg map[string]any
	for _, key := range cfg.sectionKeys() {
		v := cfg.section[key]
		path := append(cfg.secPath[:len(cfg.secPath):len(cfg.secPath)], key)
		switch {
		case isOptionKey(key):
			continue
		case key == packageTable:
			m, ok := v.(map[string]any)
			if !ok {
				return nil, errors.New(errors.ErrCodeInvalidConfig, "%s must be a table", key)
			}
			pkg = m
			continue
		}
		f, ok := lookupField(key)
		if !ok {
			t.logger.Debug("ignoring unknown config key", "key", key)
			continue
		}
		raw, err := cfg.encodeValue(v, path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "field %s", key)
		}
		if err := doc.SetRaw(f.json, raw); err != nil {
			return nil, err
		}
	}

	if pkg != nil {
		path := append(cfg.secPath[:len(cfg.secPath):len(cfg.secPath)], packageTable)
		for _, k := range cfg.orderedKeys(pkg, path) {
			raw, err := cfg.encodeValue(pkg[k], append(path, k))
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "package field %s", k)
			}
			if err := doc.SetRaw(k, raw); err != nil {
				return nil, err
			}
		}
	}

	if name := doc.Name(); name != "" {
		if err := errors.ValidateNpmPackageName(name); err != nil {
			t.logger.Warn("package name may be rejected by npm", "name", name, "reason", errors.UserMessage(err))
		}
	}
	return doc, nil
}

// Translate generates the manifest for cfg and stores it per the output mode.
//
// In persistent mode the generated keys are merged into any existing
// manifest, keeping keys the configuration does not manage; the file is not
// rewritten when nothing changed, and a malformed existing manifest is an
// error rather than being overwritten. Temporary mode writes a merged copy
// into a fresh directory removed by [Result.Cleanup]. Memory mode never
// touches the filesystem.
func (t *Translator) Translate(cfg *Config) (*Result, error) {
	generated, err := t.Generate(cfg)
	if err != nil {
		return nil, err
	}

	var res *Result
	switch cfg.Options.Output {
	case OutputMemory:
		res, err = t.translateMemory(cfg, generated)
	case OutputTemporary:
		res, err = t.translateTemporary(cfg, generated)
	case OutputPersistent, "":
		res, err = t.translatePersistent(cfg, generated)
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown output mode %q", cfg.Options.Output)
	}
	if err != nil {
		return nil, err
	}

	t.logger.Info("manifest translated", "mode", res.Mode, "path", res.Path, "changed", len(res.Changed))
	if len(res.Changed) > 0 {
		t.logger.Debug("changed keys", "keys", res.Changed)
	}
	return res, nil
}

func (t *Translator) translateMemory(cfg *Config, doc *manifest.Document) (*Result, error) {
	dir := cfg.ProjectDir()
	store := manifest.NewMemoryStore(dir, doc)
	path, _ := store.Path()
	return &Result{
		Mode:     OutputMemory,
		Path:     path,
		Dir:      dir,
		Document: doc,
		Changed:  doc.Keys(),
		store:    store,
	}, nil
}

func (t *Translator) translateTemporary(cfg *Config, generated *manifest.Document) (*Result, error) {
	doc := generated
	existing, err := t.existing(cfg.ProjectDir())
	if err != nil {
		return nil, err
	}
	var changed []string
	if existing != nil {
		doc = existing.Clone()
		changed = doc.Merge(generated)
	} else {
		changed = generated.Keys()
	}

	dir, err := os.MkdirTemp(t.tempDir, "npmunifier-*")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create temporary directory")
	}
	cleanup := func() error {
		t.logger.Debug("removing temporary manifest", "dir", dir)
		return os.RemoveAll(dir)
	}

	store, err := manifest.NewStore(dir, manifest.WithStoreLogger(t.logger))
	if err != nil {
		_ = cleanup()
		return nil, err
	}
	if err := store.Save(doc); err != nil {
		_ = cleanup()
		return nil, err
	}
	path, _ := store.Path()
	return &Result{
		Mode:     OutputTemporary,
		Path:     path,
		Dir:      dir,
		Document: doc,
		Changed:  changed,
		Written:  true,
		store:    store,
		cleanup:  cleanup,
	}, nil
}

func (t *Translator) translatePersistent(cfg *Config, generated *manifest.Document) (*Result, error) {
	dir := cfg.ProjectDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidWorkingDirectory, err, "create %s", dir)
	}
	store, err := manifest.NewStore(dir, manifest.WithStoreLogger(t.logger))
	if err != nil {
		return nil, err
	}
	path, err := store.Path()
	if err != nil {
		return nil, err
	}

	res := &Result{Mode: OutputPersistent, Path: path, Dir: dir, store: store}

	doc, err := store.Load()
	switch {
	case err == nil:
		res.Changed = doc.Merge(generated)
		res.Document = doc
		if len(res.Changed) == 0 {
			t.logger.Debug("manifest up to date", "path", path)
			return res, nil
		}
	case errors.Is(err, errors.ErrCodeManifestNotFound):
		res.Document = generated
		res.Changed = generated.Keys()
	default:
		return nil, err
	}

	if err := store.Save(res.Document); err != nil {
		return nil, err
	}
	res.Written = true
	return res, nil
}

// existing returns the manifest in dir, or nil when there is none.
func (t *Translator) existing(dir string) (*manifest.Document, error) {
	store, err := manifest.NewStore(dir, manifest.WithStoreLogger(t.logger))
	if err != nil {
		return nil, err
	}
	doc, err := store.Load()
	switch {
	case err == nil:
		return doc, nil
	case errors.Is(err, errors.ErrCodeManifestNotFound), errors.Is(err, errors.ErrCodeNotADirectory):
		return nil, nil
	}
	return nil, err
}
