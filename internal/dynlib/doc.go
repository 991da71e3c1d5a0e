// Package dynlib owns the boundary between the host and dynamically loaded
// shared libraries.
//
// Ownership boundary:
// - opening, symbol lookup and release of OS loader handles
//
// - platform library suffix rules
//
// - raw C calls and argument marshaling (argv vectors, byte buffers)
//
// Every unsafe pointer conversion in the host lives in this package. Callers
// hold a Library and invoke the Proc values it resolves.
package dynlib
