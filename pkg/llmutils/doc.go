// Package llmutils contains helpers shared by the model clients and the tool dispatcher.
package llmutils
