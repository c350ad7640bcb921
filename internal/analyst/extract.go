package analyst

import "strings"

const fence = "```"

// ExtractCode returns the body of the first fenced code block in content,
// preferring a block tagged as Python. Content without fences is returned as
// is. Line endings become "\n", blank lines and trailing whitespace around the
// block are dropped, and the result ends with exactly one newline. Interior
// lines are kept byte for byte so string literals survive. Blank input yields
// "".
func ExtractCode(content string) string {
	body, ok := fencedBlock(content, func(tag string) bool {
		switch strings.ToLower(tag) {
		case "python", "python3", "py":
			return true
		}
		return false
	})
	if !ok {
		body, ok = fencedBlock(content, func(string) bool { return true })
	}
	if !ok {
		body = content
	}
	return normalize(body)
}

// fencedBlock scans content for fenced blocks and returns the body of the first
// one whose info string is accepted. An unterminated final block runs to the
// end of content.
func fencedBlock(content string, accept func(tag string) bool) (string, bool) {
	for off := 0; ; {
		i := strings.Index(content[off:], fence)
		if i < 0 {
			return "", false
		}
		start := off + i + len(fence)
		nl := strings.IndexByte(content[start:], '\n')
		if nl < 0 {
			return "", false
		}
		tag := strings.TrimSpace(content[start : start+nl])
		bodyStart := start + nl + 1
		end := strings.Index(content[bodyStart:], fence)
		if accept(tag) {
			if end < 0 {
				return content[bodyStart:], true
			}
			return content[bodyStart : bodyStart+end], true
		}
		if end < 0 {
			return "", false
		}
		off = bodyStart + end + len(fence)
	}
}

func normalize(code string) string {
	code = strings.TrimRight(strings.ReplaceAll(code, "\r\n", "\n"), " \t\r\n")
	for {
		line, rest, more := strings.Cut(code, "\n")
		if !more || strings.TrimSpace(line) != "" {
			break
		}
		code = rest
	}
	if strings.TrimSpace(code) == "" {
		return ""
	}
	return code + "\n"
}
