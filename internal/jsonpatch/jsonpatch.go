// Package jsonpatch applies the subset of RFC 6902 that asset patches may
// use: add, remove and replace.
package jsonpatch

import (
	"encoding/json"
	"fmt"

	jp "github.com/evanphx/json-patch/v5"
)

type PatchError struct {
	msg string
}

func (p *PatchError) Error() string {
	return p.msg
}

type Patch = jp.Patch

var opts = jp.ApplyOptions{
	EnsurePathExistsOnAdd:    true, // will create paths
	AllowMissingPathOnRemove: true,
	SupportNegativeIndices:   true,
}

// Decode parses a patch document and rejects unsupported operations.
func Decode(bs []byte) (Patch, error) {
	p, err := jp.DecodePatch(bs)
	if err != nil {
		return nil, &PatchError{fmt.Sprintf("invalid patch: %v", err)}
	}
	if err := check(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Apply patches doc. The result is indented so that successive patches of the
// same asset diff line by line.
func Apply(p Patch, doc json.RawMessage) (json.RawMessage, error) {
	if err := check(p); err != nil {
		return nil, err
	}
	out, err := p.ApplyIndentWithOptions(doc, "  ", &opts)
	if err != nil {
		return nil, &PatchError{err.Error()}
	}
	return out, nil
}

func check(p Patch) error {
	// We only support add/remove/replace
	for _, op := range p {
		switch op.Kind() {
		case "replace", "remove", "add": // OK
		default:
			return &PatchError{fmt.Sprintf("unsupported patch operation %q, must be one of \"replace\", \"add\", \"remove\"", op.Kind())}
		}
	}
	return nil
}
