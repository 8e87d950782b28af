// Package parser wraps the tree-sitter JavaScript and TypeScript grammars
// behind per-dialect parser pools safe for concurrent use.
package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/gnana997/esmpack/pkg/util"
)

// ParserManager owns one parser pool per dialect. Pools are created on
// first use. Callers own the trees they get back and must Close them.
type ParserManager struct {
	pools    map[Dialect]*pool
	poolSize int
	mu       sync.RWMutex
	logger   *slog.Logger

	parses int
}

// Stats reports parser usage.
type Stats struct {
	ParsersCreated int `json:"parsersCreated"`
	ParsesCalled   int `json:"parsesCalled"`
}

// NewParserManager returns a manager whose pools hold up to poolSize
// parsers each; 0 sizes them by CPU count.
func NewParserManager(poolSize int, logger *slog.Logger) *ParserManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParserManager{
		pools:    make(map[Dialect]*pool),
		poolSize: util.PoolSize(poolSize),
		logger:   logger,
	}
}

// Parse parses source with the dialect's grammar. Trees with syntax errors
// are returned too; callers check RootNode().HasError().
func (pm *ParserManager) Parse(source []byte, d Dialect) (*ts.Tree, error) {
	if d.Language == LanguageUnknown {
		return nil, fmt.Errorf("cannot parse unknown language")
	}
	p, err := pm.pool(d)
	if err != nil {
		return nil, err
	}

	parser, err := p.acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s parser: %w", d, err)
	}
	tree := parser.Parse(source, nil)
	p.release(parser)

	pm.mu.Lock()
	pm.parses++
	pm.mu.Unlock()

	if tree == nil {
		return nil, fmt.Errorf("%s parser returned no tree", d)
	}
	return tree, nil
}

// ParseFile parses source with the dialect detected from path.
func (pm *ParserManager) ParseFile(source []byte, path string) (*ts.Tree, error) {
	d := DetectDialect(path)
	if d.Language == LanguageUnknown {
		return nil, fmt.Errorf("unsupported file extension: %s", path)
	}
	return pm.Parse(source, d)
}

// Grammar returns the raw tree-sitter language of a dialect, as needed to
// compile queries against it.
func Grammar(d Dialect) (unsafe.Pointer, error) {
	switch d.Language {
	case LanguageJavaScript:
		return ts_javascript.Language(), nil
	case LanguageTypeScript:
		if d.TSX {
			return ts_typescript.LanguageTSX(), nil
		}
		return ts_typescript.LanguageTypescript(), nil
	}
	return nil, fmt.Errorf("unsupported language: %s", d.Language)
}

func (pm *ParserManager) pool(d Dialect) (*pool, error) {
	pm.mu.RLock()
	p, ok := pm.pools[d]
	pm.mu.RUnlock()
	if ok {
		return p, nil
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if p, ok = pm.pools[d]; ok {
		return p, nil
	}
	grammar, err := Grammar(d)
	if err != nil {
		return nil, err
	}
	p = newPool(d, grammar, pm.poolSize, pm.logger)
	pm.pools[d] = p
	return p, nil
}

// Stats returns usage counters.
func (pm *ParserManager) Stats() Stats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	s := Stats{ParsesCalled: pm.parses}
	for _, p := range pm.pools {
		s.ParsersCreated += p.count()
	}
	return s
}

// Close releases every pooled parser. The manager must not be used
// afterwards.
func (pm *ParserManager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	closed := 0
	for d, p := range pm.pools {
		closed += p.close()
		delete(pm.pools, d)
	}
	pm.logger.Debug("parser manager closed", "parsers_closed", closed, "parses", pm.parses)
	return nil
}
