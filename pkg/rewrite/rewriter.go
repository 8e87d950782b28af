package rewrite

import (
	"log/slog"
	"strings"

	"github.com/gnana997/esmpack/pkg/npm"
	"github.com/gnana997/esmpack/pkg/syntax"
)

// Action is the rewriter's verdict for one statement.
type Action int

const (
	Keep Action = iota
	Rewrite
)

func (a Action) String() string {
	if a == Rewrite {
		return "rewrite"
	}
	return "keep"
}

// Decision is the result of classifying a script-to-script statement.
type Decision struct {
	Action Action
	Path   string // new module path when Action is Rewrite
}

// Target describes where a statement's specifier resolved to.
type Target struct {
	// Package is the dependency a bare specifier resolved into; nil for
	// relative specifiers and unresolved bare specifiers.
	Package *npm.Package
	// Suffix is what probing appended to the specifier to reach an existing
	// file: "", the script extension, or "/index" plus the extension.
	Suffix string
	// OutFile is the absolute output path of the resolved file.
	OutFile string
}

// Rewriter classifies statements whose target is a script module.
type Rewriter struct {
	Linker Linker
	logger *slog.Logger
}

// NewRewriter creates a Rewriter using linker for cross-package links.
func NewRewriter(linker Linker, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{Linker: linker, logger: logger}
}

// Decide returns the action for stmt. fromDir is the output directory of
// the importing file.
//
// Relative specifiers that already name a script are kept; other relative
// specifiers get the probed suffix appended. Bare specifiers that resolved
// to a package are replaced with a link to the target's output file.
// Anything else is kept and reported.
func (r *Rewriter) Decide(stmt *syntax.Statement, fromDir string, t Target) Decision {
	if stmt.IsRelative() {
		if t.Suffix == "" {
			return Decision{Action: Keep}
		}
		return Decision{Action: Rewrite, Path: AppendSuffix(stmt.ModulePath, t.Suffix)}
	}

	if t.Package == nil || t.OutFile == "" {
		r.logger.Error("couldn't find package in lookup dir",
			"specifier", stmt.ModulePath,
			"statement", stmt.Raw,
			"line", stmt.Line)
		return Decision{Action: Keep}
	}
	return Decision{Action: Rewrite, Path: r.Linker.Link(fromDir, t.Package, t.OutFile)}
}

// AppendSuffix adds a resolved file suffix to a specifier. A directory specifier
// written with a trailing slash does not double it.
func AppendSuffix(specifier, suffix string) string {
	if strings.HasPrefix(suffix, "/") {
		specifier = strings.TrimSuffix(specifier, "/")
	}
	return specifier + suffix
}
