// Package dispatcher maps a tool invocation to a backend call.
//
// Dispatch looks up the tool in the catalog, applies argument defaults,
// routes to the backend and converts the result or the failure into an
// Envelope. It never returns an error or panics to the caller.
package dispatcher
