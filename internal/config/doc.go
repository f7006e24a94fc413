// Package config loads pipeline configuration from YAML.
//
// ${VAR} references are expanded from the environment before parsing, so
// secrets (database password, provider API key) stay out of the file.
package config
