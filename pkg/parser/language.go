package parser

import (
	"path/filepath"
	"strings"
)

// Language is a grammar the parser can load.
type Language int

const (
	LanguageUnknown Language = iota
	LanguageJavaScript
	LanguageTypeScript
)

func (l Language) String() string {
	switch l {
	case LanguageJavaScript:
		return "javascript"
	case LanguageTypeScript:
		return "typescript"
	default:
		return "unknown"
	}
}

// Dialect is a language plus the JSX flag that selects the TSX grammar.
// The JavaScript grammar parses JSX on its own.
type Dialect struct {
	Language Language
	TSX      bool
}

func (d Dialect) String() string {
	if d.TSX {
		return "tsx"
	}
	return d.Language.String()
}

// DetectDialect maps a file extension onto a dialect. Module scripts with
// a custom extension are handled by the caller.
func DetectDialect(path string) Dialect {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".mjs", ".cjs":
		return Dialect{Language: LanguageJavaScript}
	case ".ts", ".mts", ".cts":
		return Dialect{Language: LanguageTypeScript}
	case ".tsx":
		return Dialect{Language: LanguageTypeScript, TSX: true}
	}
	return Dialect{}
}

// ParseLanguage converts a name such as "js" or "typescript".
func ParseLanguage(name string) Language {
	switch strings.ToLower(name) {
	case "javascript", "js":
		return LanguageJavaScript
	case "typescript", "ts":
		return LanguageTypeScript
	}
	return LanguageUnknown
}
