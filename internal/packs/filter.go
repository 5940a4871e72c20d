package packs

import (
	"fmt"
	"strings"
)

// Comparator is the relation a DependencyFilter requires between a candidate
// version and the filter's version.
type Comparator int

const (
	Equal Comparator = iota
	GreaterEqual
	Greater
	LessEqual
	Less
)

// Longest tokens first, so ">=" is not read as ">".
var comparatorTokens = []struct {
	token string
	cmp   Comparator
}{
	{">=", GreaterEqual},
	{"<=", LessEqual},
	{">", Greater},
	{"<", Less},
}

func (c Comparator) String() string {
	switch c {
	case GreaterEqual:
		return ">="
	case Greater:
		return ">"
	case LessEqual:
		return "<="
	case Less:
		return "<"
	default:
		return "="
	}
}

// Holds reports whether "have <c> want" is true.
func (c Comparator) Holds(have, want Version) bool {
	x := have.Compare(want)
	switch c {
	case GreaterEqual:
		return x >= 0
	case Greater:
		return x > 0
	case LessEqual:
		return x <= 0
	case Less:
		return x < 0
	default:
		return x == 0
	}
}

// DependencyFilter selects the versions of one pack that satisfy a dependency.
type DependencyFilter struct {
	ID         Identifier
	Comparator Comparator
	Version    Version
}

// Matches reports whether the pack id@version satisfies the filter.
func (f DependencyFilter) Matches(id Identifier, v Version) bool {
	return f.ID == id && f.Comparator.Holds(v, f.Version)
}

func (f DependencyFilter) String() string {
	if f.Comparator == Equal {
		return f.ID.String() + " " + f.Version.String()
	}
	return f.ID.String() + " " + f.Comparator.String() + f.Version.String()
}

// ParseFilter parses "<identifier> <comparator><version>". Whitespace between
// the comparator and the version is allowed; a version without a comparator
// requires that exact version.
func ParseFilter(s string) (DependencyFilter, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return DependencyFilter{}, fmt.Errorf("invalid dependency filter %q: expected \"<id> <comparator><version>\"", s)
	}
	f, err := ParseFilterParts(fields[0], strings.Join(fields[1:], ""))
	if err != nil {
		return DependencyFilter{}, fmt.Errorf("invalid dependency filter %q: %w", s, err)
	}
	return f, nil
}

// ParseFilterParts builds a filter from an identifier and a constraint such
// as ">=1.2.0", the two arguments of the CLI's --filter flag.
func ParseFilterParts(id, constraint string) (DependencyFilter, error) {
	ident, err := ParseIdentifier(id)
	if err != nil {
		return DependencyFilter{}, err
	}

	constraint = strings.TrimSpace(constraint)
	c := Equal
	for _, t := range comparatorTokens {
		if rest, ok := strings.CutPrefix(constraint, t.token); ok {
			c, constraint = t.cmp, strings.TrimSpace(rest)
			break
		}
	}
	if strings.HasPrefix(constraint, "=") {
		return DependencyFilter{}, fmt.Errorf("unsupported comparator in %q", constraint)
	}

	v, err := ParseVersion(constraint)
	if err != nil {
		return DependencyFilter{}, err
	}

	return DependencyFilter{ID: ident, Comparator: c, Version: v}, nil
}
