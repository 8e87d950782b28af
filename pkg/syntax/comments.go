package syntax

import "regexp"

// commentPattern matches line comments that start a line or follow whitespace,
// and block comments. Requiring whitespace before "//" keeps "http://" in
// string literals intact.
var commentPattern = regexp.MustCompile(`(?m)(?:(?:^|\s)//[^\n]*)|(?s:/\*.*?\*/)`)

// StripComments blanks out comments in src. Every byte of a comment becomes a
// space except newlines, so offsets and line numbers of the result match src.
//
// Comment-like text inside a string literal that is preceded by whitespace is
// blanked as well.
func StripComments(src string) string {
	return commentPattern.ReplaceAllStringFunc(src, blank)
}

func blank(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c != '\n' {
			b[i] = ' '
		}
	}
	return string(b)
}
