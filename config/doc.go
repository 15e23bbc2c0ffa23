// Package config loads the pipeline configuration.
//
// Values are read from an optional YAML file (with ${VAR} expansion), then overridden by
// TICKERLAKE_* environment variables, e.g. TICKERLAKE_STORAGE_BUCKET_NAME. Unset options take the
// defaults in defaults.go.
package config
