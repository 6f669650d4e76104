package pm

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/npmunifier/pkg/errors"
)

// Auto is the package_manager value that selects a variant from lock files.
const Auto = "auto"

// Detect picks a built-in variant from the lock files present in dir.
// pnpm and yarn lock files take precedence over npm's.
func Detect(dir string) (Variant, bool) {
	for _, v := range Builtins() {
		for _, lock := range v.Lockfiles {
			if info, err := os.Stat(filepath.Join(dir, lock)); err == nil && !info.IsDir() {
				return v, true
			}
		}
	}
	return Variant{}, false
}

// Select resolves a configured package-manager name to a variant.
//
//   - "" fails with NO_PACKAGE_MANAGER
//   - "auto" detects from lock files in dir, failing with UNKNOWN_PACKAGE_MANAGER
//   - "npm", "pnpm", "yarn" select the built-in variants
//   - any other name declares a custom variant with npm's command set,
//     whose executable is the name itself
func Select(name, dir string) (Variant, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return Variant{}, errors.New(errors.ErrCodeNoPackageManager, "no package manager configured")
	case strings.EqualFold(name, Auto):
		v, ok := Detect(dir)
		if !ok {
			return Variant{}, errors.New(errors.ErrCodeUnknownPackageManager, "no lock file found in %s (looked for %s)", dir, strings.Join(lockfiles(), ", "))
		}
		return v, nil
	}
	if v, ok := Lookup(name); ok {
		return v, nil
	}
	return Custom(filepath.Base(name), name, nil, nil)
}

func lockfiles() []string {
	var out []string
	for _, v := range Builtins() {
		out = append(out, v.Lockfiles...)
	}
	return out
}
