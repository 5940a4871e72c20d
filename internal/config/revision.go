package config

import (
	"os"
)

// DefaultRevision is used when no revision template is configured.
const DefaultRevision = "${digest}"

// ResolveRevision expands the revision template recorded with a published
// artifact. Variables named in input, such as "digest" and "version", take
// precedence over environment variables.
func ResolveRevision(revision string, input map[string]string) string {
	if revision == "" {
		revision = DefaultRevision
	}

	return os.Expand(revision, func(name string) string {
		if v, ok := input[name]; ok {
			return v
		}
		return os.Getenv(name)
	})
}
