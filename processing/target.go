package processing

import (
	"strings"

	"tickerlake/apperror"
)

// Target selects how stored data is processed.
type Target string

const (
	Local  Target = "local"
	Remote Target = "remote"
)

// ParseTarget accepts the target names plus "databricks" as an alias for Remote.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return Local, nil
	case "remote", "databricks":
		return Remote, nil
	default:
		return "", apperror.Newf(apperror.UnsupportedTarget, "unsupported processing target %q (want local or remote)", s)
	}
}
