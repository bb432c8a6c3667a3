package lexer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// safeFusedKeys are well-known manifest keys that are never a prefix of
// another standard key, so splitting "kindService" into "kind: Service" is
// unambiguous.
var safeFusedKeys = []string{
	"apiVersion", "kind", "metadata", "spec", "status",
	"selector", "template", "resources", "containers",
	"volumes", "labels", "annotations", "data", "ports",
	"env", "image",
}

var blockHeaderRe = regexp.MustCompile(`^[|>][+\-]?\d?$`)

var plainKeyRe = regexp.MustCompile(`^[A-Za-z0-9_.\-/]+$`)

// decode strips a UTF-8 BOM, normalizes CRLF and replaces invalid byte
// sequences with U+FFFD. Encoding damage is recorded as a non-fixable
// repair so it surfaces as an error diagnostic instead of disappearing.
func (l *Lexer) decode(src []byte) []sourceLine {
	text := strings.TrimPrefix(string(src), "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	raw := strings.Split(text, "\n")
	lines := make([]sourceLine, 0, len(raw))
	for i, s := range raw {
		clean := s
		if l.opts.EncodingGuard && !utf8.ValidString(s) {
			clean = strings.ToValidUTF8(s, "�")
			l.record(RepairRecord{
				Heuristic:  HeuristicEncoding,
				Line:       i + 1,
				Column:     1,
				Before:     s,
				After:      clean,
				Confidence: 1.0,
				Fixable:    false,
			})
		}
		lines = append(lines, sourceLine{num: i + 1, raw: s, text: clean})
	}
	return lines
}

// detectIndentWidth returns the dominant indentation step of the file,
// defaulting to 2 when nothing consistent is found.
func detectIndentWidth(lines []sourceLine) int {
	counts := make(map[int]int)
	prev := 0
	for _, line := range lines {
		content := strings.TrimLeft(line.text, " ")
		if content == "" || strings.HasPrefix(content, "#") {
			continue
		}
		indent := len(line.text) - len(content)
		if delta := indent - prev; delta > 0 {
			counts[delta]++
		}
		prev = indent
	}
	best, bestCount := 2, 0
	for delta, n := range counts {
		if n > bestCount || (n == bestCount && delta < best) {
			best, bestCount = delta, n
		}
	}
	return best
}

func expandTabs(s string, width int) (string, bool) {
	if !strings.Contains(s, "\t") {
		return s, false
	}
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", width)), true
}

// splitInlineComment finds the real '#' comment start, honoring hashes
// inside quotes ('key: "value#notcomment"') and requiring a whitespace
// boundary ('url: http://host#anchor' has no comment).
func splitInlineComment(content string) (code, comment string) {
	inDouble, inSingle, escaped := false, false, false
	for i, ch := range content {
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			escaped = true
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '#':
			if !inDouble && !inSingle && (i == 0 || content[i-1] == ' ') {
				return content[:i], content[i:]
			}
		}
	}
	return content, ""
}

// applyStuckDash splits a list marker glued to the following key:
// "-image: nginx" becomes "- image: nginx".
func (l *Lexer) applyStuckDash(code string, lineNum, indent int) string {
	if !l.opts.StuckDash {
		return code
	}
	if len(code) < 2 || code[0] != '-' {
		return code
	}
	next := rune(code[1])
	if !unicode.IsLetter(next) && !unicode.IsDigit(next) && next != '"' && next != '\'' {
		return code
	}
	fixed := "- " + code[1:]
	l.record(RepairRecord{
		Heuristic:  HeuristicStuckDash,
		Line:       lineNum,
		Column:     indent + 1,
		Before:     code,
		After:      fixed,
		Confidence: 0.95,
		Fixable:    true,
	})
	return fixed
}

// applyFusedKeyword splits a well-known key glued to its value:
// "kindService" becomes "kind: Service". Only fires when the suffix starts
// a new word (uppercase or digit, or a version suffix for apiVersion).
func (l *Lexer) applyFusedKeyword(code string, lineNum, indent int) string {
	if !l.opts.FusedKeyword || strings.Contains(code, ":") {
		return code
	}
	trimmed := strings.TrimSpace(code)
	for _, key := range safeFusedKeys {
		if !strings.HasPrefix(trimmed, key) || len(trimmed) <= len(key) {
			continue
		}
		suffix := trimmed[len(key):]
		first := rune(suffix[0])
		versionish := key == "apiVersion" && (first == 'v' || first == 'V')
		if !unicode.IsUpper(first) && !unicode.IsDigit(first) && !versionish {
			continue
		}
		fixed := key + ": " + suffix
		l.record(RepairRecord{
			Heuristic:  HeuristicFusedKeyword,
			Line:       lineNum,
			Column:     indent + 1,
			Before:     trimmed,
			After:      fixed,
			Confidence: 0.8,
			Fixable:    true,
		})
		return fixed
	}
	return code
}

// applyMissingColon adds a colon to a bare parent key when the next content
// line is indented deeper: "spec" followed by "  ports:" gains its colon.
func (l *Lexer) applyMissingColon(code string, lineNum, indent int) string {
	if !l.opts.MissingColon || strings.Contains(code, ":") || strings.HasPrefix(code, "-") {
		return code
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" || !plainKeyRe.MatchString(trimmed) {
		return code
	}
	for _, next := range l.lines[l.pos:] {
		content := strings.TrimLeft(next.text, " \t")
		if content == "" || strings.HasPrefix(content, "#") {
			continue
		}
		nextIndent := len(next.text) - len(content)
		if nextIndent > indent {
			fixed := code + ":"
			l.record(RepairRecord{
				Heuristic:  HeuristicMissingColon,
				Line:       lineNum,
				Column:     indent + len(code) + 1,
				Before:     code,
				After:      fixed,
				Confidence: 0.75,
				Fixable:    true,
			})
			return fixed
		}
		break
	}
	return code
}

// applyColonSpacing inserts the missing space in "key:value". Guarded so
// plain scalars containing colons (URLs) are left alone.
func (l *Lexer) applyColonSpacing(code string, lineNum, indent int) string {
	body := code
	prefix := ""
	for strings.HasPrefix(body, "- ") {
		prefix += "- "
		body = body[2:]
	}
	idx := strings.Index(body, ":")
	if idx <= 0 || idx == len(body)-1 {
		return code
	}
	if body[idx+1] == ' ' {
		return code
	}
	key, value := body[:idx], body[idx+1:]
	if !plainKeyRe.MatchString(key) || strings.HasPrefix(value, "/") {
		return code
	}
	fixed := prefix + key + ": " + value
	l.record(RepairRecord{
		Heuristic:  HeuristicColonSpace,
		Line:       lineNum,
		Column:     indent + len(prefix) + idx + 1,
		Before:     code,
		After:      fixed,
		Confidence: 0.9,
		Fixable:    true,
	})
	return fixed
}

// applyQuoteRepair closes an unterminated quoted value at end of line. The
// fix only fires when no other quote of the same type appears inside, so
// genuinely ambiguous values are left untouched.
func (l *Lexer) applyQuoteRepair(code string, lineNum, indent int) string {
	if !l.opts.QuoteRepair {
		return code
	}
	idx := topLevelColon(code)
	if idx < 0 {
		return code
	}
	value := strings.TrimSpace(code[idx+1:])
	if len(value) < 2 {
		return code
	}
	quote := value[0]
	if quote != '"' && quote != '\'' {
		return code
	}
	if value[len(value)-1] == quote {
		return code
	}
	if strings.Count(value[1:], string(quote)) != 0 {
		logger.Debug("skipping ambiguous quote at line %d: %q", lineNum, value)
		return code
	}
	fixed := code + string(quote)
	l.record(RepairRecord{
		Heuristic:  HeuristicQuoteRepair,
		Line:       lineNum,
		Column:     indent + len(code) + 1,
		Before:     code,
		After:      fixed,
		Confidence: 0.85,
		Fixable:    true,
	})
	return fixed
}

// topLevelColon returns the index of the first mapping colon (followed by a
// space or end of line, outside quotes), or -1.
func topLevelColon(s string) int {
	inDouble, inSingle := false, false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case ':':
			if !inDouble && !inSingle && (i == len(s)-1 || s[i+1] == ' ') {
				return i
			}
		}
	}
	return -1
}

// splitKeyValue decomposes "key: value" into its parts. Quoted keys
// ('"svc.beta/port": 80') are unwrapped. ok is false for plain scalars.
func splitKeyValue(s string) (key, value string, ok bool) {
	if s == "" {
		return "", "", false
	}
	if s[0] == '&' || s[0] == '*' || s[0] == '!' {
		return "", "", false
	}
	if s[0] == '"' || s[0] == '\'' {
		quote := s[0]
		end := strings.IndexByte(s[1:], quote)
		if end >= 0 {
			rest := strings.TrimLeft(s[end+2:], " ")
			if strings.HasPrefix(rest, ":") {
				return s[1 : end+1], strings.TrimSpace(rest[1:]), true
			}
		}
		return "", "", false
	}
	idx := topLevelColon(s)
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+1:]), true
}

func isBlockHeader(value string) bool {
	return blockHeaderRe.MatchString(value)
}
