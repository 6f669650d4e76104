// Package pkg holds the npmunifier libraries.
//
// The packages build on each other:
//
//	errors    coded errors shared by every package
//	runner    spawns external processes (blocking or detached)
//	pm        npm, pnpm and yarn behind one logical command set
//	manifest  ordered package.json documents and a cached store
//	project   configuration loading, manifest translation, Project
//
// A typical caller only needs package project:
//
//	p, err := project.Open(ctx, "pyproject.toml")
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//	code, err := p.Run(ctx, "install")
package pkg
