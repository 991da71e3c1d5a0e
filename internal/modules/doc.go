// Package modules owns the typed adapters for the three machine roles.
//
// Ownership boundary:
// - per-role ABI symbol tables (cpu, gpu, memory)
//
// - atomic resolution of entry points at init
//
// - panic capture at every module call boundary
//
// Lifecycle:
// - Init opens the library, resolves every required symbol, then calls the
//   module's init entry
//
// - a failed Init leaves the adapter closed with no entry points retained
//
// - entry points stay valid until Close
package modules
