// Package tools declares the tools advertised to the host: their names,
// argument definitions with defaults and constraints, and the JSON schema
// derived from them.
package tools
