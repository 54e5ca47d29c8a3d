// Package config provides the server configuration loaded from a YAML or JSON file.
package config
