package resolver

import (
	"fmt"
	"strings"

	"github.com/mangoplex/multipacks/internal/packs"
)

// MissingDependencyError reports a filter no repository could satisfy.
type MissingDependencyError struct {
	Filter     packs.DependencyFilter
	RequiredBy packs.Identifier
}

func (err *MissingDependencyError) Error() string {
	return fmt.Sprintf("missing dependency %q required by %s: no repository holds a matching version", err.Filter, err.RequiredBy)
}

// VersionConflictError reports a filter the already selected version of a
// pack does not satisfy.
type VersionConflictError struct {
	ID         packs.Identifier
	Required   packs.DependencyFilter
	Selected   packs.Version
	RequiredBy packs.Identifier
}

func (err *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: %s requires %s%s, but %s was selected",
		err.ID, err.RequiredBy, err.Required.Comparator, err.Required.Version, err.Selected)
}

// CycleError reports packs that depend on each other.
type CycleError struct {
	Path []packs.Identifier
}

func (err *CycleError) Error() string {
	ids := make([]string, len(err.Path))
	for i, id := range err.Path {
		ids[i] = id.String()
	}
	return "dependency cycle: " + strings.Join(ids, " -> ")
}
