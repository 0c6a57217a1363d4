// Package config handles configuration loading and validation for the lobby server.
// It reads YAML or TOML files on top of built-in defaults.
package config
