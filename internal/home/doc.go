// Package home owns the host's on-disk layout under ~/.corehost.
//
// Ownership boundary:
// - home resolution and first-run bootstrap
//
// - folder check-and-fix
//
// - regular-file directory scans and their process-scoped cache
package home
