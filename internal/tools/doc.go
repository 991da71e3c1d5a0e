// Package tools provides host command helpers.
//
// Ownership boundary:
// - command execution behind CommandRunner
// - host feature probing (which helper programs are installed)
package tools
