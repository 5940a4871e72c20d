package packs

import (
	"cmp"
	"fmt"
	"regexp"
	"strings"
)

// DefaultNamespace is used for identifiers written without a namespace.
const DefaultNamespace = "multipacks"

var namePattern = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// Identifier is the canonical identity of a pack: namespace/name.
type Identifier struct {
	Namespace string
	Name      string
}

func NewIdentifier(namespace, name string) Identifier {
	return Identifier{Namespace: namespace, Name: name}
}

// ParseIdentifier parses "namespace/name" or "name".
func ParseIdentifier(s string) (Identifier, error) {
	ns, name, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found {
		ns, name = DefaultNamespace, ns
	}

	if !namePattern.MatchString(ns) {
		return Identifier{}, fmt.Errorf("invalid identifier %q: bad namespace %q", s, ns)
	}
	if !namePattern.MatchString(name) {
		return Identifier{}, fmt.Errorf("invalid identifier %q: bad name %q", s, name)
	}

	return Identifier{Namespace: ns, Name: name}, nil
}

func MustParseIdentifier(s string) Identifier {
	id, err := ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id Identifier) String() string {
	return id.Namespace + "/" + id.Name
}

func (id Identifier) IsZero() bool {
	return id == Identifier{}
}

func (id Identifier) Compare(other Identifier) int {
	if x := cmp.Compare(id.Namespace, other.Namespace); x != 0 {
		return x
	}
	return cmp.Compare(id.Name, other.Name)
}

func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Identifier) UnmarshalText(bs []byte) error {
	parsed, err := ParseIdentifier(string(bs))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
