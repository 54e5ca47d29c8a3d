// Package mcp exposes the tool catalog to a host agent over the
// Model Context Protocol: tools/list returns the catalog, tools/call
// runs the dispatcher and returns its envelope as a single text item.
package mcp
