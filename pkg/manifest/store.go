package manifest

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/npmunifier/pkg/errors"
)

// Filename is the default manifest filename.
const Filename = "package.json"

// ResolvePath returns the manifest path for input using the default filename.
// See [Store.Path].
func ResolvePath(input string) (string, error) {
	return resolvePath(input, Filename)
}

func resolvePath(input, filename string) (string, error) {
	if filepath.Base(input) == filename {
		return input, nil
	}
	info, err := os.Stat(input)
	if err != nil || !info.IsDir() {
		return "", errors.New(errors.ErrCodeNotADirectory, "%s is neither a %s file nor an existing directory", input, filename)
	}
	return filepath.Join(input, filename), nil
}

// Store is a lazy, cached accessor for one manifest document.
//
// The path is resolved once and the file is read and parsed at most once per
// Store. Later file changes are not observed until [Store.Reload] or
// [Store.Invalidate] is called. A Store is meant for single-owner use;
// concurrent access to one manifest path from several stores must be
// serialized by the caller.
type Store struct {
	input    string
	filename string
	logger   *log.Logger

	path string
	doc  *Document
}

// StoreOption configures a Store.
type StoreOption func(*Store) error

// WithFilename uses a manifest filename other than package.json.
func WithFilename(name string) StoreOption {
	return func(s *Store) error {
		if err := errors.ValidateManifestFilename(name); err != nil {
			return err
		}
		s.filename = name
		return nil
	}
}

// WithStoreLogger sets the logger. Defaults to a discarding logger.
func WithStoreLogger(l *log.Logger) StoreOption {
	return func(s *Store) error {
		s.logger = l
		return nil
	}
}

// NewStore creates a store for input, which is either the manifest file path
// or the directory containing it. Nothing is read until first use.
func NewStore(input string, opts ...StoreOption) (*Store, error) {
	s := &Store{input: input, filename: Filename}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	return s, nil
}

// NewMemoryStore creates a store already holding doc for a manifest in dir.
// Load returns doc without reading the filesystem; the path is not checked
// until the store is reloaded or saved.
func NewMemoryStore(dir string, doc *Document) *Store {
	return &Store{
		input:    dir,
		filename: Filename,
		logger:   log.New(io.Discard),
		path:     filepath.Join(dir, Filename),
		doc:      doc,
	}
}

// Path returns the manifest path. If the input's final segment is the
// manifest filename it is returned as-is; otherwise the input must be an
// existing directory and the filename is appended. Fails with NOT_A_DIRECTORY
// when neither holds. The result is cached after the first success.
func (s *Store) Path() (string, error) {
	if s.path != "" {
		return s.path, nil
	}
	p, err := resolvePath(s.input, s.filename)
	if err != nil {
		return "", err
	}
	s.path = p
	return p, nil
}

// Dir returns the directory holding the manifest.
func (s *Store) Dir() (string, error) {
	p, err := s.Path()
	if err != nil {
		return "", err
	}
	return filepath.Dir(p), nil
}

// Loaded reports whether the document is cached.
func (s *Store) Loaded() bool { return s.doc != nil }

// Load returns the manifest, reading and parsing the file on first call only.
// A missing file fails with MANIFEST_NOT_FOUND, malformed content with
// MANIFEST_PARSE_ERROR; neither is cached, so a later call retries.
//
// The returned document is the cached instance. Callers that modify it and
// want the change on disk call [Store.Save].
func (s *Store) Load() (*Document, error) {
	if s.doc != nil {
		return s.doc, nil
	}
	p, err := s.Path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeManifestNotFound, err, "manifest not found: %s", p)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read manifest %s", p)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestParse, err, "parse %s", p)
	}
	s.logger.Debug("manifest loaded", "path", p, "keys", doc.Len())
	s.doc = doc
	return doc, nil
}

// Invalidate drops the cached document; the next Load reads the file again.
func (s *Store) Invalidate() {
	s.doc = nil
}

// Reload discards the cache and reads the file again.
func (s *Store) Reload() (*Document, error) {
	s.Invalidate()
	return s.Load()
}

// Save writes doc to the manifest path and caches it.
// The file is written in place; writes are not atomic.
func (s *Store) Save(doc *Document) error {
	p, err := s.Path()
	if err != nil {
		return err
	}
	data, err := doc.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write manifest %s", p)
	}
	s.logger.Debug("manifest saved", "path", p, "keys", doc.Len())
	s.doc = doc
	return nil
}
