package storage

import (
	"strings"

	"tickerlake/apperror"
)

// Target selects the storage backend of a run.
type Target string

const (
	Local Target = "local"
	Cloud Target = "cloud"
)

// ParseTarget accepts the target names plus the aliases "gcp" and "gcs" for Cloud.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return Local, nil
	case "cloud", "gcp", "gcs":
		return Cloud, nil
	default:
		return "", apperror.Newf(apperror.UnsupportedTarget, "unsupported storage target %q (want local or cloud)", s)
	}
}
