// Package project reads a project configuration, translates it into a
// Node.js manifest and runs package manager commands for it.
//
// # Configuration
//
// Options and manifest fields live in a dedicated section of a TOML file
// (YAML with the same shape is also accepted):
//
//	[project]
//	name = "demo"
//	version = "0.1.0"
//
//	[tool.npmunifier]
//	node_project_dir = "web"
//	package_manager = "pnpm"
//	output = "persistent"
//
//	[tool.npmunifier.scripts]
//	build = "vite build"
//
//	[tool.npmunifier.dev_dependencies]
//	vite = "^5.0.0"
//
// Recognized fields accept snake_case or the manifest's camelCase. Fields
// missing from the configuration are omitted, never defaulted. The name,
// version, description, keywords, license, first author and URLs of a
// [project] table are used when the section does not set them.
// [tool.npmunifier.package] is copied into the manifest verbatim.
//
// # Output modes
//
//   - persistent merges generated keys into node_project_dir/package.json,
//     keeping keys it does not manage.
//   - temporary writes a merged copy into a fresh directory removed by
//     [Result.Cleanup] or [Project.Close].
//   - memory keeps the manifest in memory and never touches the filesystem.
//
// # Concurrency
//
// A Project, its Translator and its manifest store are single-owner. Opening
// several projects on the same manifest path concurrently is not safe; the
// caller must serialize them.
package project
