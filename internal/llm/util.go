package llm

import "strings"

// CleanJSONBlock extracts the JSON payload from a model response, stripping
// markdown code fences, conversational preamble, and trailing prose. Models
// produce all three even when instructed not to.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		body := strings.TrimPrefix(text, "```")
		if idx := strings.Index(body, "\n"); idx >= 0 {
			first := strings.TrimSpace(body[:idx])
			// A short bare first line is a language identifier, not payload.
			if first == "" || (len(first) < 20 && !strings.ContainsAny(first, " {[")) {
				body = body[idx+1:]
			}
		}
		if idx := strings.LastIndex(body, "```"); idx >= 0 {
			body = body[:idx]
		}
		text = strings.TrimSpace(body)
	}

	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")
	start, extract := objStart, extractJSONObject
	if objStart == -1 || (arrStart != -1 && arrStart < objStart) {
		start, extract = arrStart, extractJSONArray
	}
	if start == -1 {
		return text
	}
	if payload := extract(text[start:]); payload != "" {
		return payload
	}
	return text
}

// extractJSONObject returns the balanced JSON object at the start of s, or
// empty when s does not begin with one.
func extractJSONObject(s string) string {
	return extractBalanced(s, '{', '}')
}

// extractJSONArray returns the balanced JSON array at the start of s, or
// empty when s does not begin with one.
func extractJSONArray(s string) string {
	return extractBalanced(s, '[', ']')
}

// extractBalanced scans for the matching close delimiter, ignoring
// delimiters inside JSON strings and escaped quotes.
func extractBalanced(s string, open, close byte) string {
	if len(s) == 0 || s[0] != open {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
