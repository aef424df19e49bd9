// Package jsonc turns a package.json or tsconfig.json byte stream into
// something encoding/json can decode. package.json is strict JSON, so
// Strip only ever needs to drop a leading BOM; tsconfig.json (and
// jsconfig.json) additionally permits `//`/`/* */` comments and trailing
// commas, which Strip blanks out in place when allowComments is set.
package jsonc

// Strip prepares src for encoding/json.Unmarshal: a leading UTF-8 byte
// order mark is always removed, and when allowComments is true, comments
// and trailing commas are rewritten to spaces. The result is always the
// same length as the (BOM-stripped) input and keeps every line break at
// its original offset, so a downstream parser's error positions still
// point at the source the caller actually wrote.
func Strip(src []byte, allowComments bool) []byte {
	src = stripBOM(src)
	if !allowComments {
		return src
	}
	return stripComments(src)
}

func stripBOM(src []byte) []byte {
	const bom = "\xef\xbb\xbf"
	if len(src) >= 3 && string(src[:3]) == bom {
		return src[3:]
	}
	return src
}

const (
	scanNormal = iota
	scanString
	scanLineComment
	scanBlockComment
)

// stripComments walks src one byte at a time, tracking whether it is
// inside a string literal, a line comment, or a block comment, and blanks
// whichever of those it isn't plain JSON. A comma immediately before a
// closing `}`/`]` is blanked too, since JSON forbids trailing commas that
// JSONC-flavored configs commonly include.
func stripComments(src []byte) []byte {
	out := make([]byte, 0, len(src))
	state := scanNormal
	for i := 0; i < len(src); i++ {
		c := src[i]

		switch state {
		case scanString:
			out = append(out, c)
			if c == '"' && !quoteIsEscaped(src, i) {
				state = scanNormal
			}
			continue
		case scanLineComment:
			switch c {
			case '\n':
				out = append(out, '\n')
				state = scanNormal
			case '\t', '\r':
				out = append(out, c)
			default:
				out = append(out, ' ')
			}
			continue
		case scanBlockComment:
			if c == '*' && i+1 < len(src) && src[i+1] == '/' {
				out = append(out, ' ', ' ')
				i++
				state = scanNormal
			} else if c == '\n' || c == '\t' || c == '\r' {
				out = append(out, c)
			} else {
				out = append(out, ' ')
			}
			continue
		}

		if c == '/' && i+1 < len(src) {
			switch src[i+1] {
			case '/':
				out = append(out, ' ', ' ')
				i++
				state = scanLineComment
				continue
			case '*':
				out = append(out, ' ', ' ')
				i++
				state = scanBlockComment
				continue
			}
		}

		out = append(out, c)
		switch c {
		case '"':
			state = scanString
		case '}', ']':
			blankTrailingComma(out)
		}
	}
	return out
}

// quoteIsEscaped reports whether the `"` at src[i] is preceded by an odd
// run of backslashes, meaning it terminates an escape sequence rather
// than the string itself.
func quoteIsEscaped(src []byte, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && src[j] == '\\'; j-- {
		n++
	}
	return n%2 != 0
}

// blankTrailingComma turns the last non-whitespace byte already written to
// dst into a space if it is a comma, which is what a trailing comma right
// before the closing bracket just appended looks like.
func blankTrailingComma(dst []byte) {
	for j := len(dst) - 2; j >= 0; j-- {
		if dst[j] <= ' ' {
			continue
		}
		if dst[j] == ',' {
			dst[j] = ' '
		}
		break
	}
}
