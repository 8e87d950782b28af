package workspace

import (
	"fmt"
	"path/filepath"

	"github.com/gnana997/esmpack/pkg/npm"
	"github.com/gnana997/esmpack/pkg/rewrite"
	"github.com/gnana997/esmpack/pkg/transform"
)

// Resolution describes where a specifier leads.
type Resolution struct {
	Specifier string `json:"specifier"`
	Package   string `json:"package,omitempty"`
	SubPath   string `json:"subPath,omitempty"`
	Manifest  string `json:"manifest,omitempty"`
	Input     string `json:"input,omitempty"`
	Output    string `json:"output,omitempty"`
	// Link is the specifier an import in from would be rewritten to.
	Link  string `json:"link,omitempty"`
	Found bool   `json:"found"`
}

// Resolve resolves specifier as if imported from the workspace file from.
// An empty from means a file at the workspace root.
func (w *Workspace) Resolve(specifier, from string) (Resolution, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ready(); err != nil {
		return Resolution{}, err
	}

	res := Resolution{Specifier: specifier}
	if from == "" {
		from = filepath.Join(w.cwd, "index.js")
	}
	from = w.abs(from)
	fromOut := filepath.Dir(w.outPath(from))

	var in, out string
	var pkg *npm.Package
	if len(specifier) > 0 && specifier[0] == '.' {
		rel := filepath.FromSlash(specifier)
		in = filepath.Join(filepath.Dir(from), rel)
		out = filepath.Join(fromOut, rel)
	} else {
		tr, ok := w.resolver.Track(specifier, w.lookupDir)
		if !ok {
			return res, nil
		}
		p, err := w.resolver.Provide(w.packages, tr, w.outDir)
		if err != nil {
			return res, fmt.Errorf("failed to load package %s: %w", tr.Name, err)
		}
		pkg = p
		res.Package, res.SubPath, res.Manifest = p.Name(), tr.SubPath, tr.ManifestPath
		if tr.SubPath != "" {
			in, out = p.ResolveSrc(tr.SubPath), p.ResolveOut(tr.SubPath)
		} else {
			in, out = p.SrcEntry(), p.OutEntry()
		}
	}

	suffix, ok := transform.Probe(in, w.cfg.Extension)
	if !ok {
		res.Input = in
		return res, nil
	}
	res.Found = true
	res.Input = in + filepath.FromSlash(suffix)
	res.Output = out + filepath.FromSlash(suffix)
	if pkg != nil {
		res.Link = w.linker.Link(fromOut, pkg, res.Output)
	} else {
		res.Link = rewrite.AppendSuffix(specifier, suffix)
	}
	return res, nil
}
