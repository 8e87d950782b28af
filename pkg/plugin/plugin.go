// Package plugin turns import statements that target non-script assets
// (stylesheets, markup, JSON, images, audio, binary blobs) into runtime
// shims: injected code, fetch code, or a reference to a generated wrapper
// module.
package plugin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gnana997/esmpack/pkg/syntax"
)

// Action tells the traversal engine what to do with the statement and the
// asset file.
type Action int

const (
	// ActionInject replaces the statement with Code. The asset is not copied.
	ActionInject Action = iota
	// ActionFetch replaces the statement with Code and copies the asset to
	// its output location.
	ActionFetch
	// ActionModule points the statement at a generated wrapper script that
	// exports the asset's raw text. Code is unused.
	ActionModule
)

func (a Action) String() string {
	switch a {
	case ActionInject:
		return "inject"
	case ActionFetch:
		return "fetch"
	case ActionModule:
		return "module"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// ParseAction maps a config value onto an action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(s) {
	case "inject":
		return ActionInject, nil
	case "fetch":
		return ActionFetch, nil
	case "module":
		return ActionModule, nil
	}
	return 0, fmt.Errorf("unknown plugin action %q", s)
}

// Result is the outcome of transforming one asset statement.
type Result struct {
	Action Action
	Code   string
}

// Handler transforms a statement that imports an asset. relPath is the
// asset's output path relative to the importing module's output directory.
type Handler interface {
	Transform(stmt *syntax.Statement, relPath string) (Result, error)
}

var (
	// ErrExportUnsupported is returned for export statements that re-export
	// an asset through a fetch or inject shim.
	ErrExportUnsupported = errors.New("export non js module is not supported yet")
	// ErrInjectUnsupported is returned by asset types that cannot be
	// applied to the document directly.
	ErrInjectUnsupported = errors.New("asset type has no injection")
	// ErrUnsupportedBody is returned for unknown fetch body types.
	ErrUnsupportedBody = errors.New("unsupported fetch type")
)

// BindingError reports an asset import whose bindings cannot be satisfied.
type BindingError struct {
	Statement string
	Reason    string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Statement)
}

// Asset is the built-in handler: it fetches the asset decoded as Body and,
// when Inject is set, can apply it to the document instead.
type Asset struct {
	Name   string
	Body   BodyType
	Inject InjectType
}

// Transform implements Handler.
//
// Bare and namespace-only imports inject; a namespace-only import of an
// asset with no injection gets the namespace object instead, and a bare one
// is prefetched. Imports with a default or named binding fetch. A marker
// on the specifier overrides the body type or selects module/style/link
// handling.
func (a *Asset) Transform(stmt *syntax.Statement, relPath string) (Result, error) {
	body, inject := a.Body, a.Inject
	if stmt.Marker != "" {
		switch stmt.Marker {
		case "module":
			return Result{Action: ActionModule}, nil
		case "style":
			inject = InjectFetchStyle
		case "link":
			inject = InjectLinkStyle
		default:
			b, ok := ParseBodyType(stmt.Marker)
			if !ok {
				return Result{}, fmt.Errorf("%w: marker %q", ErrUnsupportedBody, stmt.Marker)
			}
			body = b
		}
	}

	if stmt.Kind == syntax.KindExport {
		return Result{}, ErrExportUnsupported
	}

	switch stmt.Shape() {
	case syntax.ShapeBare:
		if inject != "" {
			return inj(inject, relPath)
		}
		return fetch(body, relPath, fetchNames{})

	case syntax.ShapeNamespaceOnly:
		if inject != "" {
			return inj(inject, relPath)
		}
		if stmt.Namespace.Alias == "" {
			return Result{}, &BindingError{Statement: stmt.Raw, Reason: "namespace import requires an alias"}
		}
		code, err := namespaceCode(body, relPath, stmt.Namespace.Alias, "")
		if err != nil {
			return Result{}, err
		}
		return Result{Action: ActionFetch, Code: code}, nil

	case syntax.ShapeDefaultNamespace:
		if stmt.Namespace.Alias == "" {
			return Result{}, &BindingError{Statement: stmt.Raw, Reason: "default and namespace import requires a namespace alias"}
		}
		code, err := namespaceCode(body, relPath, stmt.Namespace.Alias, stmt.Default.Local())
		if err != nil {
			return Result{}, err
		}
		return Result{Action: ActionFetch, Code: code}, nil

	default:
		names, err := collectNames(stmt)
		if err != nil {
			return Result{}, err
		}
		return fetch(body, relPath, names)
	}
}

// collectNames assigns the statement's bindings to the value, url and
// promise slots of a fetch shim. The default binding and any non-special
// named binding receive the value; "promise", "url" and "value" keep their
// meaning.
func collectNames(stmt *syntax.Statement) (fetchNames, error) {
	var names fetchNames
	setValue := func(local string) error {
		if names.value != "" {
			return &BindingError{Statement: stmt.Raw, Reason: "asset import binds more than one value"}
		}
		names.value = local
		return nil
	}

	if stmt.Default != nil {
		if err := setValue(stmt.Default.Local()); err != nil {
			return names, err
		}
	}
	for _, b := range stmt.Named {
		switch {
		case b.IsPromise():
			names.promise = b.Local()
		case b.IsURL():
			names.url = b.Local()
		default:
			if err := setValue(b.Local()); err != nil {
				return names, err
			}
		}
	}
	return names, nil
}

func fetch(body BodyType, relPath string, names fetchNames) (Result, error) {
	code, err := fetchCode(body, relPath, names)
	if err != nil {
		return Result{}, err
	}
	return Result{Action: ActionFetch, Code: code}, nil
}

func inj(kind InjectType, relPath string) (Result, error) {
	code, err := injectCode(kind, relPath)
	if err != nil {
		return Result{}, err
	}
	return Result{Action: ActionInject, Code: code}, nil
}

// Module is a handler that always emits a wrapper module. Because the
// statement keeps its bindings, it also supports re-exports.
type Module struct{}

// Transform implements Handler.
func (Module) Transform(*syntax.Statement, string) (Result, error) {
	return Result{Action: ActionModule}, nil
}
