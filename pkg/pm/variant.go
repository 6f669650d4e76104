package pm

import (
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/matzehuels/npmunifier/pkg/errors"
)

// Logical command names shared by the built-in variants.
const (
	CmdBuild     = "build"
	CmdInit      = "init"
	CmdInstall   = "install"
	CmdUninstall = "uninstall"
	CmdUpdate    = "update"
	CmdLink      = "link"
	CmdUnlink    = "unlink"
	CmdRunScript = "run-script"
	CmdStart     = "start"
	CmdStop      = "stop"
	CmdTest      = "test"
	CmdAdd       = "add"
	CmdRemove    = "remove"
	CmdPrune     = "prune"
	CmdUpgrade   = "upgrade"
)

// maxSuggestions bounds the alternatives attached to an unsupported command.
const maxSuggestions = 3

// Variant describes one package-manager tool family: its executable alias,
// the logical commands it accepts and the commands whose CLI token differs
// from the logical name.
//
// A Variant is data. New tools are added by declaring a Variant, not by
// changing dispatch. Values are treated as immutable; the With* methods
// return modified copies.
type Variant struct {
	Name      string            // Variant identifier (e.g., "pnpm")
	Bin       string            // Executable name or path
	Commands  []string          // Ordered allow-list of logical command names
	Overrides map[string]string // Logical name -> CLI token; "" means bare invocation
	Lockfiles []string          // Lock files that identify the variant in a project
}

var (
	npmCommands = []string{
		CmdBuild, CmdInit, CmdInstall, CmdUninstall, CmdUpdate, CmdLink,
		CmdUnlink, CmdRunScript, CmdStart, CmdStop, CmdTest,
	}
	pnpmCommands = []string{
		CmdBuild, CmdInit, CmdAdd, CmdRemove, CmdInstall, CmdUninstall, CmdPrune,
		CmdUpdate, CmdLink, CmdUnlink, CmdRunScript, CmdStart, CmdStop, CmdTest,
	}
	yarnCommands = []string{
		CmdBuild, CmdInit, CmdAdd, CmdRemove, CmdInstall, CmdUpgrade, CmdLink,
		CmdUnlink, CmdRunScript, CmdStart, CmdStop, CmdTest,
	}
)

// NPM returns the npm variant.
func NPM() Variant {
	return Variant{
		Name:      "npm",
		Bin:       "npm",
		Commands:  slices.Clone(npmCommands),
		Lockfiles: []string{"package-lock.json", "npm-shrinkwrap.json"},
	}
}

// PNPM returns the pnpm variant.
func PNPM() Variant {
	return Variant{
		Name:      "pnpm",
		Bin:       "pnpm",
		Commands:  slices.Clone(pnpmCommands),
		Lockfiles: []string{"pnpm-lock.yaml"},
	}
}

// Yarn returns the yarn variant. Its install is the bare "yarn" invocation.
func Yarn() Variant {
	return Variant{
		Name:      "yarn",
		Bin:       "yarn",
		Commands:  slices.Clone(yarnCommands),
		Overrides: map[string]string{CmdInstall: ""},
		Lockfiles: []string{"yarn.lock"},
	}
}

// Builtins returns the built-in variants in detection priority order.
func Builtins() []Variant {
	return []Variant{PNPM(), Yarn(), NPM()}
}

// Lookup returns the built-in variant with the given name.
func Lookup(name string) (Variant, bool) {
	for _, v := range Builtins() {
		if v.Name == strings.ToLower(name) {
			return v, true
		}
	}
	return Variant{}, false
}

// Names returns the names of the built-in variants, sorted.
func Names() []string {
	var names []string
	for _, v := range Builtins() {
		names = append(names, v.Name)
	}
	sort.Strings(names)
	return names
}

// Custom declares a variant for a tool that is not built in. A nil commands
// list falls back to npm's command set. Overrides map logical names to CLI
// tokens; an empty token invokes the executable bare.
func Custom(name, bin string, commands []string, overrides map[string]string) (Variant, error) {
	if name == "" {
		return Variant{}, errors.New(errors.ErrCodeInvalidInput, "variant name cannot be empty")
	}
	if bin == "" {
		bin = name
	}
	v := Variant{Name: name, Bin: bin}
	if commands == nil {
		commands = npmCommands
	}
	v, err := v.WithCommands(commands)
	if err != nil {
		return Variant{}, err
	}
	for logical := range overrides {
		if !v.Supports(logical) {
			return Variant{}, errors.New(errors.ErrCodeInvalidInput, "override for %q which is not in the command list", logical)
		}
	}
	v.Overrides = normalizeKeys(overrides)
	return v, nil
}

// WithBin returns a copy of v using a different executable alias.
func (v Variant) WithBin(bin string) Variant {
	c := v.clone()
	if bin != "" {
		c.Bin = bin
	}
	return c
}

// WithCommands returns a copy of v with a replaced allow-list. Names are
// normalized and de-duplicated; overrides for dropped commands are removed.
func (v Variant) WithCommands(commands []string) (Variant, error) {
	c := v.clone()
	c.Commands = make([]string, 0, len(commands))
	for _, name := range commands {
		name = Normalize(name)
		if err := errors.ValidateCommandName(name); err != nil {
			return Variant{}, err
		}
		if !slices.Contains(c.Commands, name) {
			c.Commands = append(c.Commands, name)
		}
	}
	maps.DeleteFunc(c.Overrides, func(k, _ string) bool {
		return !slices.Contains(c.Commands, k)
	})
	return c, nil
}

// Normalize maps a requested command name onto registry spelling.
// Underscores are equivalent to hyphens ("run_script" -> "run-script").
func Normalize(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// Supports reports whether the logical command is in the allow-list.
func (v Variant) Supports(name string) bool {
	return slices.Contains(v.Commands, Normalize(name))
}

// Token resolves a logical command to its CLI subcommand token.
// An empty token means the executable is invoked without one.
// Unregistered names fail with an *errors.UnsupportedCommandError.
func (v Variant) Token(name string) (string, error) {
	logical := Normalize(name)
	if !slices.Contains(v.Commands, logical) {
		return "", &errors.UnsupportedCommandError{
			Manager:     v.Name,
			Command:     name,
			Suggestions: v.suggest(logical),
		}
	}
	if token, ok := v.Overrides[logical]; ok {
		return token, nil
	}
	return logical, nil
}

// synonyms pairs commands that different tools spell differently.
var synonyms = map[string][]string{
	CmdUpdate:    {CmdUpgrade},
	CmdUpgrade:   {CmdUpdate},
	CmdUninstall: {CmdRemove},
	CmdRemove:    {CmdUninstall},
	CmdAdd:       {CmdInstall},
	"run":        {CmdRunScript},
}

// suggest lists registered commands resembling name: cross-tool synonyms
// first, then fuzzy matches by score.
func (v Variant) suggest(name string) []string {
	var out []string
	for _, s := range synonyms[name] {
		if slices.Contains(v.Commands, s) {
			out = append(out, s)
		}
	}
	for _, m := range fuzzy.Find(name, v.Commands) {
		if !slices.Contains(out, m.Str) {
			out = append(out, m.Str)
		}
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func (v Variant) clone() Variant {
	c := v
	c.Commands = slices.Clone(v.Commands)
	c.Overrides = maps.Clone(v.Overrides)
	c.Lockfiles = slices.Clone(v.Lockfiles)
	return c
}

func normalizeKeys(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, token := range m {
		out[Normalize(k)] = token
	}
	return out
}
