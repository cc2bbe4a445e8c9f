// Package config loads application configuration from defaults, an
// optional YAML file, and APILIB_* environment variables, with the
// environment taking precedence. LoadConfig validates the result before
// returning it.
package config
