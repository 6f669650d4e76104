// Package manifest reads, caches and writes Node.js package manifests
// (package.json).
//
// # Documents
//
// [Document] keeps top-level keys in file order and nested values verbatim,
// so merging generated fields into a hand-authored manifest leaves the rest
// of the file as it was:
//
//	doc, _ := manifest.Parse(data)
//	changed := doc.Merge(generated) // keys whose value changed
//
// # Store
//
// [Store] resolves the manifest path from a file or directory, then loads
// the document lazily and caches it. The cache is explicit: it is never
// refreshed behind the caller's back, only by [Store.Reload] or
// [Store.Invalidate].
//
//	s, _ := manifest.NewStore("./web")
//	doc, err := s.Load()
//	if errors.Is(err, errors.ErrCodeManifestNotFound) {
//	    // synthesize a fresh manifest
//	}
package manifest
