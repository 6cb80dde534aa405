// Package library is the path authority for one asset library: conversions
// between library-relative and absolute paths, identifier derivation, and
// output path layout. A Library is immutable and every method is pure.
package library

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ProjectNamespace is the fixed namespace for name-based identifiers.
// Identifiers are derived from library-relative paths, so two libraries with
// the same tree layout produce the same identifiers.
var ProjectNamespace = uuid.MustParse("5b09dfc2-f96a-4c1b-9d0e-7a42c8b3a611")

// Library holds the roots of the source and output trees.
type Library struct {
	Namespace  uuid.UUID
	Root       string
	OutputRoot string
}

// New builds a Library over cleaned absolute roots using ProjectNamespace.
func New(root, outputRoot string) Library {
	return Library{
		Namespace:  ProjectNamespace,
		Root:       filepath.Clean(root),
		OutputRoot: filepath.Clean(outputRoot),
	}
}

// ToRelative converts an absolute path under Root into the canonical
// library-relative form (forward slashes on every OS). It fails when the
// path is not inside the library.
func (l Library) ToRelative(abs string) (string, error) {
	rel, err := filepath.Rel(l.Root, filepath.Clean(abs))
	if err != nil {
		return "", fmt.Errorf("relativizing %s: %w", abs, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the library root %s", abs, l.Root)
	}
	return filepath.ToSlash(rel), nil
}

// ToAbsolute joins a library-relative path onto Root.
func (l Library) ToAbsolute(rel string) string {
	return filepath.Join(l.Root, filepath.FromSlash(rel))
}

// OutputPath returns the compiled artifact path for an identifier:
// <OutputRoot>/<identifier>.bf.
func (l Library) OutputPath(id uuid.UUID) string {
	return filepath.Join(l.OutputRoot, id.String()+".bf")
}

// IdentifierOf derives the stable identifier of a source path: a name-based
// (version 5) UUID over the library-relative path bytes in the project
// namespace. Renaming a file therefore changes the identifier it would get,
// not the one it has.
func (l Library) IdentifierOf(abs string) (uuid.UUID, error) {
	rel, err := l.ToRelative(abs)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.NewSHA1(l.Namespace, []byte(rel)), nil
}
