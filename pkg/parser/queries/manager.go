// Package queries compiles and runs tree-sitter queries over parsed
// scripts. Compiled queries are cached per dialect.
package queries

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/esmpack/pkg/parser"
)

// Kind names a query.
type Kind int

const (
	// KindModules finds static imports and exports, require calls, dynamic
	// imports and CommonJS export assignments.
	KindModules Kind = iota
)

func (k Kind) String() string {
	if k == KindModules {
		return "modules"
	}
	return "unknown"
}

type cacheKey struct {
	dialect parser.Dialect
	kind    Kind
}

// QueryManager compiles queries lazily. Safe for concurrent use.
type QueryManager struct {
	cache  map[cacheKey]*ts.Query
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewQueryManager returns an empty manager.
func NewQueryManager(logger *slog.Logger) *QueryManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryManager{
		cache:  make(map[cacheKey]*ts.Query),
		logger: logger,
	}
}

// Query returns the compiled query of kind for dialect d.
func (qm *QueryManager) Query(d parser.Dialect, kind Kind) (*ts.Query, error) {
	key := cacheKey{dialect: d, kind: kind}

	qm.mu.RLock()
	q, ok := qm.cache[key]
	qm.mu.RUnlock()
	if ok {
		return q, nil
	}

	qm.mu.Lock()
	defer qm.mu.Unlock()
	if q, ok = qm.cache[key]; ok {
		return q, nil
	}

	text, err := source(kind)
	if err != nil {
		return nil, err
	}
	grammar, err := parser.Grammar(d)
	if err != nil {
		return nil, err
	}
	q, qerr := ts.NewQuery(ts.NewLanguage(grammar), text)
	if qerr != nil {
		return nil, fmt.Errorf("failed to compile %s query for %s: %s", kind, d, qerr.Message)
	}
	qm.cache[key] = q
	qm.logger.Debug("compiled query", "dialect", d.String(), "kind", kind.String())
	return q, nil
}

func source(kind Kind) (string, error) {
	switch kind {
	case KindModules:
		return moduleQuery, nil
	}
	return "", fmt.Errorf("unknown query kind: %d", kind)
}

// Run executes q over tree and returns its matches in document order.
// Captures whose names start with "_" only feed predicates and are
// dropped.
func (qm *QueryManager) Run(tree *ts.Tree, q *ts.Query, src []byte) ([]Match, error) {
	if tree == nil {
		return nil, fmt.Errorf("tree is nil")
	}
	if q == nil {
		return nil, fmt.Errorf("query is nil")
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	names := q.CaptureNames()
	var matches []Match
	iter := cursor.Matches(q, tree.RootNode(), src)
	for m := iter.Next(); m != nil; m = iter.Next() {
		match := Match{Pattern: uint32(m.PatternIndex)}
		for _, c := range m.Captures {
			var name string
			if int(c.Index) < len(names) {
				name = names[c.Index]
			}
			if strings.HasPrefix(name, "_") {
				continue
			}
			category, field, _ := strings.Cut(name, ".")
			match.Captures = append(match.Captures, Capture{
				Name:     name,
				Category: category,
				Field:    field,
				Text:     c.Node.Utf8Text(src),
				Location: locate(&c.Node),
			})
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Close frees every compiled query.
func (qm *QueryManager) Close() error {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	for key, q := range qm.cache {
		q.Close()
		delete(qm.cache, key)
	}
	return nil
}

// Match is one pattern match.
type Match struct {
	Pattern  uint32
	Captures []Capture
}

// Get returns the first capture named name.
func (m Match) Get(name string) (Capture, bool) {
	for _, c := range m.Captures {
		if c.Name == name {
			return c, true
		}
	}
	return Capture{}, false
}

// Capture is one captured node. "static.source" has category "static"
// and field "source".
type Capture struct {
	Name     string
	Category string
	Field    string
	Text     string
	Location Location
}

// Location is a node's span; lines and columns are 1-based, bytes 0-based.
type Location struct {
	StartLine   uint32 `json:"startLine"`
	StartColumn uint32 `json:"startColumn"`
	EndLine     uint32 `json:"endLine"`
	EndColumn   uint32 `json:"endColumn"`
	StartByte   uint32 `json:"startByte"`
	EndByte     uint32 `json:"endByte"`
}

func locate(n *ts.Node) Location {
	start, end := n.StartPosition(), n.EndPosition()
	return Location{
		StartLine:   uint32(start.Row + 1),
		StartColumn: uint32(start.Column + 1),
		EndLine:     uint32(end.Row + 1),
		EndColumn:   uint32(end.Column + 1),
		StartByte:   uint32(n.StartByte()),
		EndByte:     uint32(n.EndByte()),
	}
}
