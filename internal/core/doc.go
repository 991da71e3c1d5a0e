// Package core owns the host orchestrator.
//
// Ownership boundary:
// - module file resolution from argument groups
//
// - collect-then-report validation of all three module files
//
// - ordered init (memory, gpu, cpu) with accessor forwarding
//
// - the two execution units and their failure aggregation
//
// Phase transitions:
// - uninitialized -> validated -> initialized -> running -> stopped|failed
//
// - validated and initialized may also fall to failed
//
// - terminal phases are entered once; a Core is not reusable after them
package core
