// Package rendering assembles the LaTeX resume from generated content and
// personal configuration, and drives the external compiler.
package rendering

import "strings"

// EscapeLaTeX escapes special LaTeX characters in text
// Special characters: \ { } $ & % # ^ _ ~
func EscapeLaTeX(text string) string {
	if text == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(text) * 2)

	for _, r := range text {
		switch r {
		case '\\':
			result.WriteString(`\textbackslash{}`)
		case '{':
			result.WriteString(`\{`)
		case '}':
			result.WriteString(`\}`)
		case '$':
			result.WriteString(`\$`)
		case '&':
			result.WriteString(`\&`)
		case '%':
			result.WriteString(`\%`)
		case '#':
			result.WriteString(`\#`)
		case '^':
			result.WriteString(`\textasciicircum{}`)
		case '_':
			result.WriteString(`\_`)
		case '~':
			result.WriteString(`\textasciitilde{}`)
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

// EscapeStyled escapes like EscapeLaTeX and additionally renders **bold**
// spans as \textbf and `code` spans as \texttt. Span contents are escaped
// too; a marker without a closing partner stays literal text.
func EscapeStyled(text string) string {
	if text == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(text) * 2)

	runes := []rune(text)
	plain := make([]rune, 0, len(runes))
	flush := func() {
		if len(plain) > 0 {
			result.WriteString(EscapeLaTeX(string(plain)))
			plain = plain[:0]
		}
	}

	for i := 0; i < len(runes); {
		switch {
		case runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '*':
			if end := indexFrom(runes, i+2, '*', '*'); end >= 0 {
				flush()
				result.WriteString(`\textbf{`)
				result.WriteString(EscapeStyled(string(runes[i+2 : end])))
				result.WriteString(`}`)
				i = end + 2
				continue
			}
			plain = append(plain, '*', '*')
			i += 2
		case runes[i] == '`':
			if end := indexFrom(runes, i+1, '`'); end >= 0 {
				flush()
				result.WriteString(`\texttt{`)
				result.WriteString(EscapeStyled(string(runes[i+1 : end])))
				result.WriteString(`}`)
				i = end + 1
				continue
			}
			plain = append(plain, '`')
			i++
		default:
			plain = append(plain, runes[i])
			i++
		}
	}
	flush()

	return result.String()
}

// indexFrom returns the index where marker begins in runes at or after
// start, or -1.
func indexFrom(runes []rune, start int, marker ...rune) int {
	for i := start; i+len(marker) <= len(runes); i++ {
		match := true
		for j, m := range marker {
			if runes[i+j] != m {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
