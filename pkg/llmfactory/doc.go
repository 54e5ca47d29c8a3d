// Package llmfactory provides factories and configuration for LLM model instantiation, supporting the OpenAI and Anthropic providers and model selection.
package llmfactory
