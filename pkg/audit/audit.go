// Package audit inspects scripts with tree-sitter and reports the module
// constructs the ESM rewrite cannot handle: require calls, CommonJS export
// assignments and dynamic imports. It also cross-checks the static
// statements the tree-sitter grammar sees against the ones the scanner in
// package syntax finds.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gnana997/esmpack/pkg/parser"
	"github.com/gnana997/esmpack/pkg/parser/queries"
	"github.com/gnana997/esmpack/pkg/syntax"
	"github.com/gnana997/esmpack/pkg/util"
)

// Reference is a module specifier found at a position.
type Reference struct {
	Specifier string `json:"specifier"`
	Line      uint32 `json:"line"`
	Column    uint32 `json:"column"`
}

// Report is the audit result for one file.
type Report struct {
	File    string `json:"file"`
	Dialect string `json:"dialect"`

	Static   []Reference `json:"static,omitempty"`
	Requires []Reference `json:"requires,omitempty"`
	Dynamic  []Reference `json:"dynamic,omitempty"`

	// Exports lists names assigned through exports.x or module.exports.x.
	Exports []string `json:"exports,omitempty"`
	// ModuleExports is set when module.exports itself is assigned.
	ModuleExports bool `json:"moduleExports,omitempty"`

	// Scanned counts the statements package syntax found.
	Scanned int `json:"scanned"`
	// Missed lists specifiers of static statements the scanner did not
	// find, Extra those it found that the grammar does not see.
	Missed []string `json:"missed,omitempty"`
	Extra  []string `json:"extra,omitempty"`

	SyntaxErrors bool `json:"syntaxErrors,omitempty"`
}

// CommonJS reports whether the file uses require or CommonJS exports.
func (r *Report) CommonJS() bool {
	return len(r.Requires) > 0 || len(r.Exports) > 0 || r.ModuleExports
}

// Consistent reports whether the scanner and the grammar agree on the
// file's static statements.
func (r *Report) Consistent() bool {
	return len(r.Missed) == 0 && len(r.Extra) == 0
}

// Options configures an Auditor.
type Options struct {
	// Workers bounds concurrent audits and the parser pools; 0 sizes both
	// by CPU count.
	Workers int
	// Extension is an extra script extension audited as JavaScript.
	Extension string
}

// Auditor parses and queries scripts. Safe for concurrent use.
type Auditor struct {
	opts    Options
	parsers *parser.ParserManager
	queries *queries.QueryManager
	logger  *slog.Logger
}

// New returns an Auditor. Close it to release the parsers.
func New(opts Options, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	opts.Workers = util.PoolSize(opts.Workers)
	return &Auditor{
		opts:    opts,
		parsers: parser.NewParserManager(opts.Workers, logger),
		queries: queries.NewQueryManager(logger),
		logger:  logger,
	}
}

// Supports reports whether path has an extension the auditor can parse.
func (a *Auditor) Supports(path string) bool {
	return a.dialect(path).Language != parser.LanguageUnknown
}

func (a *Auditor) dialect(path string) parser.Dialect {
	d := parser.DetectDialect(path)
	if d.Language == parser.LanguageUnknown && a.opts.Extension != "" && strings.EqualFold(filepath.Ext(path), a.opts.Extension) {
		d = parser.Dialect{Language: parser.LanguageJavaScript}
	}
	return d
}

// File reads and audits path.
func (a *Auditor) File(path string) (*Report, error) {
	src, err := util.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return a.Source(path, src)
}

// Source audits src as the contents of path.
func (a *Auditor) Source(path string, src []byte) (*Report, error) {
	d := a.dialect(path)
	if d.Language == parser.LanguageUnknown {
		return nil, fmt.Errorf("unsupported file extension: %s", path)
	}

	tree, err := a.parsers.Parse(src, d)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	q, err := a.queries.Query(d, queries.KindModules)
	if err != nil {
		return nil, err
	}
	matches, err := a.queries.Run(tree, q, src)
	if err != nil {
		return nil, err
	}

	r := &Report{
		File:         path,
		Dialect:      d.String(),
		SyntaxErrors: tree.RootNode().HasError(),
	}
	for _, m := range matches {
		r.add(m)
	}

	stmts, _ := syntax.Scan(string(src))
	r.Scanned = len(stmts)
	scanned := make([]string, len(stmts))
	for i := range stmts {
		scanned[i] = stmts[i].Specifier()
	}
	seen := make([]string, len(r.Static))
	for i, ref := range r.Static {
		seen[i] = ref.Specifier
	}
	r.Missed = difference(seen, scanned)
	r.Extra = difference(scanned, seen)
	return r, nil
}

func (r *Report) add(m queries.Match) {
	for _, c := range m.Captures {
		ref := Reference{Specifier: c.Text, Line: c.Location.StartLine, Column: c.Location.StartColumn}
		switch c.Name {
		case "static.source":
			r.Static = append(r.Static, ref)
		case "require.source":
			r.Requires = append(r.Requires, ref)
		case "dynamic.source":
			r.Dynamic = append(r.Dynamic, ref)
		case "cjs.name":
			r.Exports = append(r.Exports, c.Text)
		case "cjs.default":
			r.ModuleExports = true
		}
	}
}

// difference returns the elements of a not matched one-for-one in b,
// sorted.
func difference(a, b []string) []string {
	counts := make(map[string]int, len(b))
	for _, s := range b {
		counts[s]++
	}
	var out []string
	for _, s := range a {
		if counts[s] > 0 {
			counts[s]--
			continue
		}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Files audits paths concurrently. Reports come back in the order of
// paths; a file that fails is logged and left out.
func (a *Auditor) Files(ctx context.Context, paths []string) ([]*Report, error) {
	pool := newWorkerPool(a.opts.Workers, a, a.logger)
	pool.Start()
	defer pool.Stop()

	go func() {
		defer pool.FinishSubmitting()
		for i, path := range paths {
			if err := pool.Submit(ctx, job{path: path, id: i}); err != nil {
				return
			}
		}
	}()

	byID := make([]*Report, len(paths))
	for received := 0; received < len(paths); received++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-pool.Results():
			byID[res.id] = res.report
		case fe := <-pool.Errors():
			a.logger.Warn("audit failed", "file", fe.path, "error", fe.err)
		}
	}

	reports := make([]*Report, 0, len(paths))
	for _, r := range byID {
		if r != nil {
			reports = append(reports, r)
		}
	}
	return reports, nil
}

// Close releases parsers and compiled queries.
func (a *Auditor) Close() error {
	_ = a.queries.Close()
	return a.parsers.Close()
}

// Summary aggregates reports.
type Summary struct {
	Files        int `json:"files"`
	CommonJS     int `json:"commonjs"`
	Dynamic      int `json:"dynamic"`
	Inconsistent int `json:"inconsistent"`
	SyntaxErrors int `json:"syntaxErrors"`
}

// Summarize counts files per finding.
func Summarize(reports []*Report) Summary {
	s := Summary{Files: len(reports)}
	for _, r := range reports {
		if r.CommonJS() {
			s.CommonJS++
		}
		if len(r.Dynamic) > 0 {
			s.Dynamic++
		}
		if !r.Consistent() {
			s.Inconsistent++
		}
		if r.SyntaxErrors {
			s.SyntaxErrors++
		}
	}
	return s
}
