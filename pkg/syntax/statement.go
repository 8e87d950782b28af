// Package syntax finds static import/export statements in script sources.
//
// The scanner is deliberately shallow: it recognizes the statement forms that
// carry a module specifier and leaves every other construct untouched. It is
// not a JavaScript parser.
package syntax

import (
	"strings"
)

// Kind identifies whether a statement imports or re-exports.
type Kind int

const (
	KindImport Kind = iota
	KindExport
)

// String returns the keyword for the statement kind.
func (k Kind) String() string {
	if k == KindExport {
		return "export"
	}
	return "import"
}

// Special binding names understood by the asset shims.
const (
	NamePromise = "promise"
	NameURL     = "url"
	NameValue   = "value"
)

// Binding is one imported name with its optional local alias.
type Binding struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

// Local returns the name the binding is visible under in the importing file.
func (b Binding) Local() string {
	if b.Alias != "" {
		return b.Alias
	}
	return b.Name
}

func (b Binding) IsPromise() bool { return b.Name == NamePromise }
func (b Binding) IsURL() bool     { return b.Name == NameURL }
func (b Binding) IsValue() bool   { return b.Name == NameValue }

// IsDefaultExport reports whether the binding refers to the asset value
// itself rather than one of the special promise/url/value handles.
func (b Binding) IsDefaultExport() bool {
	return !b.IsPromise() && !b.IsURL() && !b.IsValue()
}

// Shape classifies the binding clause of a statement.
type Shape int

const (
	ShapeBare Shape = iota
	ShapeNamespaceOnly
	ShapeDefaultOnly
	ShapeNamedOnly
	ShapeDefaultNamespace
	ShapeDefaultNamed
	// ShapeMixed is namespace plus named bindings. It is not valid syntax and
	// the scanner never produces it.
	ShapeMixed
)

func (s Shape) String() string {
	switch s {
	case ShapeBare:
		return "bare"
	case ShapeNamespaceOnly:
		return "namespace"
	case ShapeDefaultOnly:
		return "default"
	case ShapeNamedOnly:
		return "named"
	case ShapeDefaultNamespace:
		return "default+namespace"
	case ShapeDefaultNamed:
		return "default+named"
	default:
		return "mixed"
	}
}

// Statement is one import or export statement that carries a module specifier.
//
// Raw is the exact source slice the statement was read from and is never
// modified. Offset is the byte position of Raw in the scanned source.
type Statement struct {
	Raw        string    `json:"raw"`
	Kind       Kind      `json:"kind"`
	Quote      byte      `json:"-"`
	ModulePath string    `json:"modulePath"`
	Marker     string    `json:"marker,omitempty"`
	Default    *Binding  `json:"default,omitempty"`
	Namespace  *Binding  `json:"namespace,omitempty"`
	Named      []Binding `json:"named,omitempty"`
	Offset     int       `json:"offset"`
	Line       int       `json:"line"`

	// specStart and specEnd delimit the specifier text inside Raw, quotes excluded.
	specStart int
	specEnd   int
}

// Shape returns the binding shape of the statement.
func (s *Statement) Shape() Shape {
	hasNamed := len(s.Named) > 0
	switch {
	case s.Default == nil && s.Namespace == nil && !hasNamed:
		return ShapeBare
	case s.Default == nil && s.Namespace != nil && !hasNamed:
		return ShapeNamespaceOnly
	case s.Default != nil && s.Namespace == nil && !hasNamed:
		return ShapeDefaultOnly
	case s.Default == nil && s.Namespace == nil && hasNamed:
		return ShapeNamedOnly
	case s.Default != nil && s.Namespace != nil && !hasNamed:
		return ShapeDefaultNamespace
	case s.Default != nil && s.Namespace == nil && hasNamed:
		return ShapeDefaultNamed
	default:
		return ShapeMixed
	}
}

// HasBindings reports whether the statement binds any name.
func (s *Statement) HasBindings() bool {
	return s.Shape() != ShapeBare
}

// Specifier returns the specifier as written, marker included.
func (s *Statement) Specifier() string {
	if s.Marker != "" {
		return s.Marker + "!" + s.ModulePath
	}
	return s.ModulePath
}

// IsRelative reports whether the module path is relative to the importing file.
func (s *Statement) IsRelative() bool {
	return strings.HasPrefix(s.ModulePath, ".")
}

// End returns the byte offset just past the statement in the scanned source.
func (s *Statement) End() int {
	return s.Offset + len(s.Raw)
}

// WithModulePath returns Raw with the module path replaced. The marker, the
// quote character and everything outside the string literal are preserved.
func (s *Statement) WithModulePath(path string) string {
	if s.Marker != "" {
		return s.WithSpecifier(s.Marker + "!" + path)
	}
	return s.WithSpecifier(path)
}

// WithSpecifier returns Raw with the whole string literal content, marker
// included, replaced by spec.
func (s *Statement) WithSpecifier(spec string) string {
	if s.specEnd <= s.specStart && s.ModulePath != "" {
		// Statements built by hand carry no positions.
		q := string(s.Quote)
		old := q + s.Specifier() + q
		i := strings.LastIndex(s.Raw, old)
		if i < 0 {
			return s.Raw
		}
		return s.Raw[:i] + q + spec + q + s.Raw[i+len(old):]
	}
	return s.Raw[:s.specStart] + spec + s.Raw[s.specEnd:]
}
