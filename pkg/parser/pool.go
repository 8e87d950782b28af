package parser

import (
	"errors"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// pool hands out parsers for one dialect. Parsers are created on demand
// up to size; once all exist, acquire blocks until one is released.
type pool struct {
	dialect Dialect
	grammar unsafe.Pointer
	size    int
	idle    chan *ts.Parser
	logger  *slog.Logger

	mu      sync.Mutex
	created int
}

func newPool(d Dialect, grammar unsafe.Pointer, size int, logger *slog.Logger) *pool {
	return &pool{
		dialect: d,
		grammar: grammar,
		size:    size,
		idle:    make(chan *ts.Parser, size),
		logger:  logger,
	}
}

func (p *pool) acquire() (*ts.Parser, error) {
	select {
	case parser := <-p.idle:
		return parser, nil
	default:
	}

	p.mu.Lock()
	if p.created >= p.size {
		p.mu.Unlock()
		return <-p.idle, nil
	}
	parser := ts.NewParser()
	if parser == nil {
		p.mu.Unlock()
		return nil, errors.New("failed to create parser")
	}
	if err := parser.SetLanguage(ts.NewLanguage(p.grammar)); err != nil {
		parser.Close()
		p.mu.Unlock()
		return nil, err
	}
	p.created++
	n := p.created
	p.mu.Unlock()

	p.logger.Debug("parser created", "dialect", p.dialect.String(), "pool_size", n)
	return parser, nil
}

func (p *pool) release(parser *ts.Parser) {
	select {
	case p.idle <- parser:
	default:
		parser.Close()
	}
}

func (p *pool) close() int {
	close(p.idle)
	n := 0
	for parser := range p.idle {
		parser.Close()
		n++
	}
	return n
}

func (p *pool) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}
