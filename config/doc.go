// Package config provides layered configuration loading for the
// proposal review service: defaults, overridden by an optional YAML
// file, overridden by environment variables.
package config
