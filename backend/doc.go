// Package backend answers text and image questions with an LLM model.
// Failures are marked with ErrBackend or ErrResource so callers can tell
// a remote failure from an unreadable image.
package backend
