// Package encoding provides JSON, YAML and TOML encoders selected by mode.
package encoding
