// Package llms provides unified support for interacting with Language Models (LLMs) from different providers.
//
// Each subpackage includes a provider-specific implementation of the Model interface.
//
// The `llms.go` file contains the types and interfaces for interacting with different LLMs.
//
// The `options.go` file provides various options and functions to configure the calls.
package llms
