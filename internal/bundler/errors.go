package bundler

import (
	"errors"
	"fmt"

	"github.com/mangoplex/multipacks/internal/modifier"
	"github.com/mangoplex/multipacks/internal/packs"
	"github.com/mangoplex/multipacks/internal/resolver"
)

// AssetConflictError reports two packs writing the same asset while neither
// depends on the other.
type AssetConflictError struct {
	Path  packs.ResourcePath
	Pack  packs.Identifier
	Other packs.Identifier
}

func (err *AssetConflictError) Error() string {
	return fmt.Sprintf("asset %s of %s conflicts with %s: neither pack depends on the other", err.Path, err.Pack, err.Other)
}

// errorType is the metrics label for err.
func errorType(err error) string {
	var (
		missing  *resolver.MissingDependencyError
		conflict *resolver.VersionConflictError
		cycle    *resolver.CycleError
		asset    *AssetConflictError
		dup      *modifier.DuplicateOutputError
		manifest *packs.ManifestError
	)
	switch {
	case errors.As(err, &missing):
		return "missing_dependency"
	case errors.As(err, &conflict):
		return "version_conflict"
	case errors.As(err, &cycle):
		return "dependency_cycle"
	case errors.As(err, &asset):
		return "asset_conflict"
	case errors.As(err, &dup):
		return "duplicate_output"
	case errors.As(err, &manifest):
		return "invalid_manifest"
	default:
		return "other"
	}
}
