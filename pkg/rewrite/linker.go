// Package rewrite decides how script-to-script import specifiers are
// rewritten and builds the cross-package links they point to.
package rewrite

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gnana997/esmpack/pkg/npm"
)

// Strategy selects how links into dependency packages are spelled.
type Strategy string

const (
	// StrategyRelative links with a relative path from the importing file.
	StrategyRelative Strategy = "relative"
	// StrategyStatic links with baseUrl/<package>/<path>.
	StrategyStatic Strategy = "static"
	// StrategyFlat links with the bare name <package>.<path> with every
	// slash turned into a dot, for import maps or servers that route flat
	// names. The emitted layout is unchanged.
	StrategyFlat Strategy = "flat"
)

// ErrStaticWithoutBaseURL is returned when the static strategy has no base URL.
var ErrStaticWithoutBaseURL = errors.New("moduleResolution \"static\" requires baseUrl")

// ParseStrategy validates a moduleResolution value. Empty means relative.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(s)); st {
	case "":
		return StrategyRelative, nil
	case StrategyRelative, StrategyStatic, StrategyFlat:
		return st, nil
	default:
		return "", fmt.Errorf("unknown moduleResolution %q (want relative, static or flat)", s)
	}
}

// Linker spells links to files in the output tree.
type Linker struct {
	Strategy Strategy
	BaseURL  string
	OutDir   string
}

// NewLinker validates the strategy settings.
func NewLinker(strategy Strategy, baseURL, outDir string) (Linker, error) {
	if strategy == "" {
		strategy = StrategyRelative
	}
	if strategy == StrategyStatic && baseURL == "" {
		return Linker{}, ErrStaticWithoutBaseURL
	}
	return Linker{Strategy: strategy, BaseURL: strings.TrimSuffix(baseURL, "/"), OutDir: outDir}, nil
}

// Link returns the specifier that reaches target, an absolute path inside
// pkg's output root, from the output directory fromDir.
func (l Linker) Link(fromDir string, pkg *npm.Package, target string) string {
	switch l.Strategy {
	case StrategyStatic:
		return l.BaseURL + "/" + l.packagePath(pkg, target)
	case StrategyFlat:
		return strings.ReplaceAll(l.packagePath(pkg, target), "/", ".")
	default:
		return npm.RelativeLink(fromDir, target)
	}
}

// packagePath returns "<package>/<path in package>" for target.
func (l Linker) packagePath(pkg *npm.Package, target string) string {
	inPkg, err := filepath.Rel(pkg.OutRoot, target)
	if err != nil || strings.HasPrefix(inPkg, "..") {
		inPkg = filepath.Base(target)
	}
	return pkg.Name() + "/" + filepath.ToSlash(inPkg)
}
