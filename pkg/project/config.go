package project

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/npmunifier/pkg/errors"
	"github.com/matzehuels/npmunifier/pkg/manifest"
)

const (
	// SectionName names the options section: [tool.npmunifier] or [npmunifier].
	SectionName = "npmunifier"

	// DefaultConfigFile is the project configuration read when none is given.
	DefaultConfigFile = "pyproject.toml"

	// packageTable holds arbitrary fields copied verbatim into the manifest.
	packageTable = "package"
)

// OutputMode selects where translated manifests go.
type OutputMode string

const (
	OutputTemporary  OutputMode = "temporary"  // Fresh temp directory, removed by Result.Cleanup
	OutputMemory     OutputMode = "memory"     // Never touches the filesystem
	OutputPersistent OutputMode = "persistent" // Merged into node_project_dir/package.json
)

// ParseOutputMode parses an output mode name. Short aliases are accepted.
func ParseOutputMode(s string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "persistent", "file":
		return OutputPersistent, nil
	case "temporary", "temp", "tmp":
		return OutputTemporary, nil
	case "memory", "in-memory", "in_memory":
		return OutputMemory, nil
	}
	return "", errors.New(errors.ErrCodeInvalidConfig, "unknown output mode %q (want temporary, memory or persistent)", s)
}

// Options are the settings of the dedicated configuration section.
type Options struct {
	NodeProjectDir    string     // Root for manifest resolution (default ".")
	PackageManager    string     // "npm", "pnpm", "yarn", "auto", a custom binary, or "" for none
	PackageManagerBin string     // Executable alias override (e.g., "npm.cmd")
	Commands          []string   // Allow-list override; nil keeps the variant's list
	Output            OutputMode // Default persistent
}

// DefaultOptions returns the built-in option values.
func DefaultOptions() Options {
	return Options{
		NodeProjectDir: ".",
		Output:         OutputPersistent,
	}
}

// optionKeys are the section keys consumed as options, not manifest fields.
var optionKeys = []string{"node_project_dir", "package_manager", "package_manager_bin", "commands", "output"}

// Config is a parsed project configuration. It is read-only once loaded.
type Config struct {
	Path    string   // Source file; empty for configs parsed from bytes
	Options Options  // Resolved options, defaults applied
	Unknown []string // Section keys that are neither options nor manifest fields

	section map[string]any
	project map[string]any
	order   keyOrder
	secPath []string
}

// keyOrder returns the child keys of the table at path, in file order.
type keyOrder func(path []string) []string

// LoadConfig reads a project configuration file. Files ending in .yaml or
// .yml are YAML; everything else is TOML.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeConfigNotFound, err, "config not found: %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read config %s", path)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	default:
		cfg, err = ParseTOML(data)
	}
	if err != nil {
		return nil, err
	}

	cfg.Path = path
	if !filepath.IsAbs(cfg.Options.NodeProjectDir) {
		cfg.Options.NodeProjectDir = filepath.Join(filepath.Dir(path), cfg.Options.NodeProjectDir)
	}
	return cfg, nil
}

// ParseTOML parses TOML configuration content.
func ParseTOML(data []byte) (*Config, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid TOML")
	}
	return newConfig(raw, tomlOrder(md))
}

// ParseYAML parses YAML configuration content of the same shape as TOML.
func ParseYAML(data []byte) (*Config, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid YAML")
	}
	var raw map[string]any
	if err := root.Decode(&raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "YAML config must be a mapping")
	}
	return newConfig(raw, yamlOrder(&root))
}

func newConfig(raw map[string]any, order keyOrder) (*Config, error) {
	cfg := &Config{Options: DefaultOptions(), order: order}

	if tool, ok := raw["tool"].(map[string]any); ok {
		if sec, ok := tool[SectionName]; ok {
			cfg.secPath = []string{"tool", SectionName}
			if cfg.section, ok = sec.(map[string]any); !ok {
				return nil, errors.New(errors.ErrCodeInvalidConfig, "[tool.%s] must be a table", SectionName)
			}
		}
	}
	if cfg.section == nil {
		if sec, ok := raw[SectionName]; ok {
			cfg.secPath = []string{SectionName}
			if cfg.section, ok = sec.(map[string]any); !ok {
				return nil, errors.New(errors.ErrCodeInvalidConfig, "[%s] must be a table", SectionName)
			}
		}
	}
	if p, ok := raw["project"]; ok {
		if cfg.project, ok = p.(map[string]any); !ok {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "[project] must be a table")
		}
	}

	if err := cfg.readOptions(); err != nil {
		return nil, err
	}
	for _, key := range cfg.sectionKeys() {
		if isOptionKey(key) || key == packageTable {
			continue
		}
		if _, ok := lookupField(key); !ok {
			cfg.Unknown = append(cfg.Unknown, key)
		}
	}
	return cfg, nil
}

func (c *Config) readOptions() error {
	for key, v := range c.section {
		if !isOptionKey(key) {
			continue
		}
		switch optionKey(key) {
		case "node_project_dir":
			s, err := stringOption(key, v)
			if err != nil {
				return err
			}
			if s != "" {
				c.Options.NodeProjectDir = s
			}
		case "package_manager":
			s, err := stringOption(key, v)
			if err != nil {
				return err
			}
			c.Options.PackageManager = s
		case "package_manager_bin":
			s, err := stringOption(key, v)
			if err != nil {
				return err
			}
			c.Options.PackageManagerBin = s
		case "commands":
			list, ok := v.([]any)
			if !ok {
				return errors.New(errors.ErrCodeInvalidConfig, "%s must be a list of strings", key)
			}
			c.Options.Commands = make([]string, 0, len(list))
			for _, item := range list {
				s, ok := item.(string)
				if !ok {
					return errors.New(errors.ErrCodeInvalidConfig, "%s must be a list of strings", key)
				}
				c.Options.Commands = append(c.Options.Commands, s)
			}
		case "output":
			s, err := stringOption(key, v)
			if err != nil {
				return err
			}
			mode, err := ParseOutputMode(s)
			if err != nil {
				return err
			}
			c.Options.Output = mode
		}
	}
	return nil
}

// HasSection reports whether the configuration has a dedicated section.
func (c *Config) HasSection() bool { return c.section != nil }

// ProjectDir returns the directory where the manifest lives. A
// node_project_dir naming the manifest file itself yields its directory.
func (c *Config) ProjectDir() string {
	dir := c.Options.NodeProjectDir
	if dir == "" {
		dir = "."
	}
	if filepath.Base(dir) == manifest.Filename {
		return filepath.Dir(dir)
	}
	return dir
}

// sectionKeys returns the section's keys in file order.
func (c *Config) sectionKeys() []string {
	return c.orderedKeys(c.section, c.secPath)
}

// orderedKeys lists the keys of table m at path, file order first and any
// keys the order source missed sorted after them.
func (c *Config) orderedKeys(m map[string]any, path []string) []string {
	var keys []string
	if c.order != nil {
		for _, k := range c.order(path) {
			if _, ok := m[k]; ok && !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	var rest []string
	for k := range m {
		if !slices.Contains(keys, k) {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}

func isOptionKey(key string) bool {
	return slices.Contains(optionKeys, optionKey(key))
}

func optionKey(key string) string {
	return strings.ReplaceAll(key, "-", "_")
}

func stringOption(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.New(errors.ErrCodeInvalidConfig, "%s must be a string, got %T", key, v)
	}
	return s, nil
}

// tomlOrder indexes TOML keys by parent table, in definition order.
func tomlOrder(md toml.MetaData) keyOrder {
	children := make(map[string][]string)
	// Dotted keys (engines.node = ...) define their parent tables implicitly,
	// so every prefix is registered at its first appearance.
	for _, key := range md.Keys() {
		for i := 1; i <= len(key); i++ {
			parent := joinPath(key[:i-1])
			child := key[i-1]
			if !slices.Contains(children[parent], child) {
				children[parent] = append(children[parent], child)
			}
		}
	}
	return func(path []string) []string { return children[joinPath(path)] }
}

// yamlOrder indexes YAML mapping keys by parent path, in document order.
func yamlOrder(root *yaml.Node) keyOrder {
	children := make(map[string][]string)
	var walk func(n *yaml.Node, path []string)
	walk = func(n *yaml.Node, path []string) {
		switch n.Kind {
		case yaml.DocumentNode:
			for _, c := range n.Content {
				walk(c, path)
			}
		case yaml.MappingNode:
			parent := joinPath(path)
			for i := 0; i+1 < len(n.Content); i += 2 {
				key := n.Content[i].Value
				children[parent] = append(children[parent], key)
				walk(n.Content[i+1], append(slices.Clone(path), key))
			}
		case yaml.SequenceNode:
			for _, c := range n.Content {
				walk(c, path)
			}
		}
	}
	walk(root, nil)
	return func(path []string) []string { return children[joinPath(path)] }
}

func joinPath(path []string) string {
	return strings.Join(path, "\x00")
}

// String summarizes the configuration for logs.
func (c *Config) String() string {
	return fmt.Sprintf("config(%s, dir=%s, pm=%q, output=%s)", c.Path, c.ProjectDir(), c.Options.PackageManager, c.Options.Output)
}
