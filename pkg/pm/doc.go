// Package pm presents one logical command surface over Node.js package
// managers whose CLIs use different vocabularies.
//
// # Variants
//
// A [Variant] is a small descriptor: executable alias, allow-list of logical
// command names and a token override table. Built-ins are [NPM], [PNPM] and
// [Yarn]; [Custom] declares others. Yarn overrides install with an empty
// token because a bare "yarn" is its install action:
//
//	yarn := pm.Yarn()
//	tok, _ := yarn.Token("install") // ""
//
// # Dispatch
//
// [Manager] resolves a logical name against its variant and forwards to a
// [runner.Runner] using the manifest directory as working directory.
// Underscores in requested names match hyphens in the registry, so
// "run_script" resolves to "run-script". Unregistered names fail with
// [errors.UnsupportedCommandError] and nothing is spawned:
//
//	m, _ := pm.New(pm.PNPM(), store)
//	code, err := m.Run(ctx, "run_script", "build") // pnpm run-script build
//
// # Detection
//
// [Detect] chooses a built-in variant from lock files; [Select] maps a
// configured package_manager value ("npm", "auto", a custom binary) to a
// variant.
//
// [runner.Runner]: github.com/matzehuels/npmunifier/pkg/runner.Runner
// [errors.UnsupportedCommandError]: github.com/matzehuels/npmunifier/pkg/errors.UnsupportedCommandError
package pm
