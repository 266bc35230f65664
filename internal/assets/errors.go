package assets

import "errors"

var (
	// ErrBuildFailed indicates esbuild reported errors
	ErrBuildFailed = errors.New("build failed")
	// ErrNotBuilt indicates chunk lookups before the first successful build
	ErrNotBuilt = errors.New("assets not built yet")
	// ErrOutsideRoot indicates an output directory that is not served from root
	ErrOutsideRoot = errors.New("output directory outside root")
	// ErrUnsafeClean indicates an output directory that must never be removed
	ErrUnsafeClean = errors.New("refusing to clean directory")
)
