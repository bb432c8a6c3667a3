package lexer

import (
	"strings"

	"github.com/yamlr/yamlr/internal/logging"
)

var logger = logging.GetLogger("lexer")

// Lexer scans raw manifest bytes into tokens. It is lazy (tokens are
// produced line by line as Next is called) and restartable via Reset.
type Lexer struct {
	opts  Options
	lines []sourceLine

	pos     int
	queue   []Token
	indents []int
	inBlock bool
	// blockIndent is the minimum content indent inside the current block
	// scalar; any shallower content line terminates the block.
	blockIndent int
	tabWidth int
	// encRepairs are recorded once at decode time and survive Reset.
	encRepairs []RepairRecord
	repairs    []RepairRecord
	done       bool
}

type sourceLine struct {
	num  int
	raw  string
	text string
}

// New creates a lexer over src. Non-UTF8 bytes are replaced up front and
// recorded as non-fixable encoding repairs so they never silently vanish.
func New(src []byte, opts Options) *Lexer {
	l := &Lexer{opts: opts, indents: []int{0}}
	l.lines = l.decode(src)
	l.encRepairs = l.repairs
	l.repairs = nil
	l.tabWidth = opts.TabWidth
	if l.tabWidth <= 0 {
		l.tabWidth = detectIndentWidth(l.lines)
	}
	return l
}

// Reset rewinds the lexer to the start of the input. Repair records from
// previous passes are discarded.
func (l *Lexer) Reset() {
	l.pos = 0
	l.queue = nil
	l.indents = []int{0}
	l.inBlock = false
	l.blockIndent = 0
	l.repairs = nil
	l.done = false
}

// Repairs returns all heuristic substitutions recorded so far, encoding
// repairs first.
func (l *Lexer) Repairs() []RepairRecord {
	if len(l.encRepairs) == 0 {
		return l.repairs
	}
	out := make([]RepairRecord, 0, len(l.encRepairs)+len(l.repairs))
	out = append(out, l.encRepairs...)
	return append(out, l.repairs...)
}

// ScanAll drains the token stream. Convenience for the document builder.
func (l *Lexer) ScanAll() []Token {
	var tokens []Token
	for {
		tok, ok := l.Next()
		if !ok {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

// Next returns the next token. The second return value is false once the
// stream is exhausted.
func (l *Lexer) Next() (Token, bool) {
	for len(l.queue) == 0 {
		if l.pos >= len(l.lines) {
			if !l.done {
				l.done = true
				l.emitDedentsTo(0, 0)
			}
			if len(l.queue) == 0 {
				return Token{}, false
			}
			break
		}
		line := l.lines[l.pos]
		l.pos++
		l.lexLine(line)
	}
	tok := l.queue[0]
	l.queue = l.queue[1:]
	return tok, true
}

func (l *Lexer) push(tok Token) {
	l.queue = append(l.queue, tok)
}

func (l *Lexer) record(r RepairRecord) {
	l.repairs = append(l.repairs, r)
	logger.Debug("heuristic %s at line %d: %q -> %q", r.Heuristic, r.Line, r.Before, r.After)
}

// lexLine runs the full per-line pipeline: block scalar state, heuristics
// in fixed priority order, indent tracking, then semantic extraction.
func (l *Lexer) lexLine(line sourceLine) {
	text, hadTabs := expandTabs(line.text, l.tabWidth)
	if hadTabs {
		l.record(RepairRecord{
			Heuristic:  HeuristicTabExpand,
			Line:       line.num,
			Column:     1,
			Before:     line.text,
			After:      text,
			Confidence: 1.0,
			Fixable:    true,
		})
	}
	text = strings.TrimRight(text, " \t")
	content := strings.TrimLeft(text, " ")
	indent := len(text) - len(content)

	// Block scalar content passes through untouched.
	if l.inBlock {
		if content == "" {
			l.push(Token{Kind: KindValue, Line: line.num, Column: 1, Indent: indent, Text: line.raw, Value: "", BlockPart: true})
			return
		}
		if indent >= l.blockIndent && !strings.HasPrefix(content, "---") {
			l.push(Token{Kind: KindValue, Line: line.num, Column: indent + 1, Indent: indent, Text: line.raw, Value: text, BlockPart: true})
			return
		}
		l.inBlock = false
	}

	if content == "" {
		return
	}

	if strings.HasPrefix(content, "---") {
		l.emitDedentsTo(0, line.num)
		l.push(Token{Kind: KindDocStart, Line: line.num, Column: 1, Text: line.raw, Value: "---"})
		rest := strings.TrimSpace(strings.TrimPrefix(content, "---"))
		if rest != "" && !strings.HasPrefix(rest, "#") {
			// inline root scalar after the marker, rare but legal
			l.push(Token{Kind: KindValue, Line: line.num, Column: indent + 4, Indent: 0, Text: rest, Value: rest})
		}
		return
	}
	if content == "..." {
		return
	}

	if strings.HasPrefix(content, "#") {
		l.push(Token{
			Kind:   KindComment,
			Line:   line.num,
			Column: indent + 1,
			Indent: indent,
			Text:   line.raw,
			Value:  strings.TrimSpace(strings.TrimLeft(content, "# ")),
		})
		return
	}

	code, comment := splitInlineComment(content)
	code = strings.TrimRight(code, " ")

	// Heuristics on the code part, fixed priority order.
	code = l.applyStuckDash(code, line.num, indent)
	code = l.applyFusedKeyword(code, line.num, indent)
	code = l.applyMissingColon(code, line.num, indent)
	code = l.applyColonSpacing(code, line.num, indent)
	code = l.applyQuoteRepair(code, line.num, indent)

	l.trackIndent(indent, line.num)

	l.emitSemantic(code, line, indent)

	if comment != "" {
		l.push(Token{
			Kind:   KindComment,
			Line:   line.num,
			Column: indent + len(code) + 2,
			Indent: indent,
			Text:   line.raw,
			Value:  strings.TrimSpace(strings.TrimLeft(comment, "# ")),
		})
	}
}

// trackIndent reconciles the line's indent against the open indent stack,
// emitting Indent/Dedent tokens. A dedent that matches no open level snaps
// to the nearest enclosing one (indent inference heuristic).
func (l *Lexer) trackIndent(indent, lineNum int) {
	top := l.indents[len(l.indents)-1]
	if indent > top {
		l.indents = append(l.indents, indent)
		l.push(Token{Kind: KindIndent, Line: lineNum, Column: 1, Indent: indent})
		return
	}
	if indent == top {
		return
	}
	l.emitDedentsTo(indent, lineNum)
	top = l.indents[len(l.indents)-1]
	if top != indent {
		// No open level matches: snap to the nearest enclosing one.
		if l.opts.IndentInference {
			l.record(RepairRecord{
				Heuristic:  HeuristicIndent,
				Line:       lineNum,
				Column:     1,
				Before:     strings.Repeat(" ", indent),
				After:      strings.Repeat(" ", top),
				Confidence: 0.7,
				Fixable:    true,
			})
		} else {
			l.push(Token{
				Kind:   KindError,
				Line:   lineNum,
				Column: 1,
				Indent: indent,
				Text:   strings.Repeat(" ", indent),
				Guess:  &Guess{Kind: KindDedent, Text: strings.Repeat(" ", top), Confidence: 0.7},
			})
		}
	}
}

func (l *Lexer) emitDedentsTo(indent, lineNum int) {
	for len(l.indents) > 1 && l.indents[len(l.indents)-1] > indent {
		l.indents = l.indents[:len(l.indents)-1]
		l.push(Token{Kind: KindDedent, Line: lineNum, Column: 1, Indent: l.indents[len(l.indents)-1]})
	}
}

// emitSemantic decomposes the repaired code part into marker/key/value
// tokens. Provenance columns point at the original line.
func (l *Lexer) emitSemantic(code string, line sourceLine, indent int) {
	col := indent + 1
	rest := code

	for strings.HasPrefix(rest, "- ") || rest == "-" {
		l.push(Token{Kind: KindListMarker, Line: line.num, Column: col, Indent: indent, Text: line.raw, Value: "-"})
		if rest == "-" {
			return
		}
		rest = strings.TrimLeft(rest[2:], " ")
		col += 2
	}
	if rest == "" {
		return
	}

	// Anchors, aliases and tags fold into the scalar text; the builder
	// keeps them verbatim.
	key, value, ok := splitKeyValue(rest)
	if !ok {
		if looksUnclassifiable(rest) {
			l.push(Token{
				Kind:   KindError,
				Line:   line.num,
				Column: col,
				Indent: indent,
				Text:   line.raw,
				Value:  rest,
				Guess:  guessFor(rest),
			})
			return
		}
		l.push(Token{Kind: KindValue, Line: line.num, Column: col, Indent: indent, Text: line.raw, Value: rest})
		return
	}

	if key == "" {
		l.push(Token{
			Kind:   KindError,
			Line:   line.num,
			Column: col,
			Indent: indent,
			Text:   line.raw,
			Value:  rest,
			Guess:  guessFor(rest),
		})
		return
	}

	l.push(Token{Kind: KindKey, Line: line.num, Column: col, Indent: indent, Text: line.raw, Value: key})
	if value == "" {
		return
	}
	if isBlockHeader(value) {
		l.inBlock = true
		l.blockIndent = indent + 1
		l.push(Token{Kind: KindValue, Line: line.num, Column: col + len(key) + 2, Indent: indent, Text: line.raw, Value: value, BlockHeader: true})
		return
	}
	l.push(Token{Kind: KindValue, Line: line.num, Column: col + len(key) + 2, Indent: indent, Text: line.raw, Value: value})
}

// guessFor produces the lexer's best structural interpretation of content
// it could not classify, or nil when there is none.
func guessFor(rest string) *Guess {
	trimmed := strings.TrimSpace(rest)
	if strings.HasPrefix(trimmed, ":") {
		v := strings.TrimSpace(trimmed[1:])
		if v != "" {
			return &Guess{Kind: KindValue, Text: v, Confidence: 0.4}
		}
		return nil
	}
	return nil
}

func looksUnclassifiable(rest string) bool {
	trimmed := strings.TrimSpace(rest)
	return strings.HasPrefix(trimmed, ":")
}
