package document

import (
	"strings"

	"github.com/yamlr/yamlr/internal/lexer"
	"github.com/yamlr/yamlr/internal/logging"
)

var logger = logging.GetLogger("document")

const (
	heuristicGuess       = "parser/structure-guess"
	heuristicForcedArray = "parser/forced-array"
)

// ignoreDirective is the comment body that opts a document or line out of
// diagnostics. Matching is case-insensitive.
const ignoreDirective = "yamlr:ignore"

// forcedArrayFields are manifest fields the API schema defines as lists.
// Authors often write a single entry as a bare mapping; the builder wraps
// it so downstream stages see the canonical shape.
var forcedArrayFields = map[string]bool{
	"containers":       true,
	"initContainers":   true,
	"ports":            true,
	"env":              true,
	"envFrom":          true,
	"volumes":          true,
	"volumeMounts":     true,
	"imagePullSecrets": true,
	"tolerations":      true,
	"rules":            true,
	"paths":            true,
}

// Parse lexes src and assembles it into documents. The returned repairs
// cover both token-level heuristics and structural recovery done here; a
// non-nil error is always a *ParseError and means the text could not be
// recovered into a tree.
func Parse(path string, src []byte, opts lexer.Options) ([]*Document, []lexer.RepairRecord, error) {
	lx := lexer.New(src, opts)
	tokens := lx.ScanAll()

	b := &builder{path: path, tokens: tokens}
	docs, err := b.run()
	repairs := append(lx.Repairs(), b.repairs...)
	if err != nil {
		return nil, repairs, err
	}
	return docs, repairs, nil
}

type builder struct {
	path    string
	tokens  []lexer.Token
	pos     int
	repairs []lexer.RepairRecord
	err     *ParseError

	doc           *Document
	sawContent    bool
	lastLine      int
	pendingIgnore bool

	// pending buffers own-line comments until the next node claims them;
	// lastNode receives inline comments for the most recent content line.
	pending  []string
	lastNode *Node
}

func (b *builder) run() ([]*Document, error) {
	var docs []*Document
	index := 0

	for b.pos < len(b.tokens) {
		start := b.pos
		leading := false
		if b.peekKind() == lexer.KindDocStart {
			b.pos++
			leading = true
		}
		doc := b.parseDocument(index, leading)
		if b.err != nil {
			return nil, b.err
		}
		if !doc.Empty() || doc.Ignored {
			docs = append(docs, doc)
			index++
		}
		if b.pos == start {
			// stray structural token at the top level, skip it
			b.pos++
		}
	}
	return docs, nil
}

func (b *builder) parseDocument(index int, leading bool) *Document {
	b.doc = &Document{
		Path:          b.path,
		Index:         index,
		IgnoredLines:  map[int]bool{},
		LeadingMarker: leading,
	}
	b.sawContent = false
	b.pendingIgnore = false
	b.lastNode = nil

	b.collectComments()
	if b.pos < len(b.tokens) && b.peekKind() != lexer.KindDocStart {
		b.doc.Root = b.parseContainer()
	}
	// trailing comments before the next marker stay with this document;
	// when it turned out empty they carry over to the next one
	b.collectComments()
	if b.doc.Root != nil {
		b.doc.FootComments = b.takePending()
	}

	if b.doc.Root != nil {
		b.normalizeArrays(b.doc.Root)
	}
	return b.doc
}

// peekKind returns the kind of the next token, resolving recoverable error
// tokens in place. Exhaustion and unrecoverable errors both return
// KindError with b.err set only for the latter.
func (b *builder) peekKind() lexer.Kind {
	for b.pos < len(b.tokens) {
		tok := b.tokens[b.pos]
		if tok.Kind != lexer.KindError {
			return tok.Kind
		}
		if tok.Guess == nil {
			b.err = &ParseError{Path: b.path, Line: tok.Line, Column: tok.Column, Text: tok.Text}
			return lexer.KindError
		}
		b.repairs = append(b.repairs, lexer.RepairRecord{
			Heuristic:  heuristicGuess,
			Line:       tok.Line,
			Column:     tok.Column,
			Before:     tok.Value,
			After:      tok.Guess.Text,
			Confidence: tok.Guess.Confidence,
			Fixable:    true,
		})
		logger.Debug("adopted structural guess at %s:%d: %q -> %s %q",
			b.path, tok.Line, tok.Value, tok.Guess.Kind, tok.Guess.Text)
		b.tokens[b.pos] = lexer.Token{
			Kind:   tok.Guess.Kind,
			Line:   tok.Line,
			Column: tok.Column,
			Indent: tok.Indent,
			Text:   tok.Text,
			Value:  tok.Guess.Text,
		}
	}
	return lexer.KindError
}

func (b *builder) peek() lexer.Token {
	b.peekKind()
	if b.pos >= len(b.tokens) {
		return lexer.Token{Kind: lexer.KindError}
	}
	return b.tokens[b.pos]
}

func (b *builder) next() lexer.Token {
	tok := b.peek()
	if b.err == nil && b.pos < len(b.tokens) {
		b.pos++
	}
	return tok
}

func (b *builder) markContent(line int) {
	b.sawContent = true
	b.lastLine = line
	if b.pendingIgnore {
		b.doc.IgnoredLines[line] = true
		b.pendingIgnore = false
	}
}

// takeInlineComments consumes comments sitting on the given line and
// returns the first one so the caller can attach it to the line's node.
// Ignore directives still mark the line.
func (b *builder) takeInlineComments(line int) string {
	var text string
	for b.pos < len(b.tokens) && b.tokens[b.pos].Kind == lexer.KindComment && b.tokens[b.pos].Line == line {
		tok := b.tokens[b.pos]
		b.pos++
		if strings.EqualFold(strings.TrimSpace(tok.Value), ignoreDirective) {
			b.doc.IgnoredLines[line] = true
		}
		if text == "" {
			text = tok.Value
		}
	}
	return text
}

// collectComments consumes comment tokens, applying ignore directives and
// keeping the texts: inline comments go to the node of the current line,
// own-line comments wait in pending for the next node.
func (b *builder) collectComments() {
	for b.pos < len(b.tokens) && b.peekKind() == lexer.KindComment {
		tok := b.tokens[b.pos]
		b.pos++
		inline := b.sawContent && tok.Line == b.lastLine
		if strings.EqualFold(strings.TrimSpace(tok.Value), ignoreDirective) {
			switch {
			case inline:
				// covers its own line
				b.doc.IgnoredLines[tok.Line] = true
			case !b.sawContent:
				b.doc.Ignored = true
			default:
				b.pendingIgnore = true
			}
		}
		if inline {
			if b.lastNode != nil && b.lastNode.LineComment == "" {
				b.lastNode.LineComment = tok.Value
			}
			continue
		}
		b.pending = append(b.pending, tok.Value)
	}
}

func (b *builder) takePending() []string {
	p := b.pending
	b.pending = nil
	return p
}

// parseContainer parses one nesting level until a dedent, document marker
// or end of stream.
func (b *builder) parseContainer() *Node {
	b.collectComments()
	switch b.peekKind() {
	case lexer.KindListMarker:
		return b.parseSequence()
	case lexer.KindKey:
		return b.parseMapping()
	case lexer.KindValue:
		tok := b.next()
		b.markContent(tok.Line)
		var node *Node
		if tok.BlockHeader {
			node = b.parseBlockScalar(tok)
		} else {
			node = scalarFromToken(tok)
		}
		b.lastNode = node
		return node
	default:
		return nil
	}
}

func (b *builder) parseMapping() *Node {
	first := b.peek()
	m := NewMapping()
	m.Line, m.Column = first.Line, first.Column

	for b.err == nil {
		b.collectComments()
		switch b.peekKind() {
		case lexer.KindKey:
			b.parseEntry(m)
		default:
			return m
		}
	}
	return m
}

// parseEntry consumes one "key: ..." entry including an indented child
// container or a same-indent child sequence.
func (b *builder) parseEntry(m *Node) {
	keyTok := b.next()
	b.markContent(keyTok.Line)
	head := b.takePending()
	inline := b.takeInlineComments(keyTok.Line)
	key := keyTok.Value

	// comment lines between the key and its indented child
	b.collectComments()

	var child *Node
	switch b.peekKind() {
	case lexer.KindValue:
		valTok := b.next()
		if valTok.BlockHeader {
			child = b.parseBlockScalar(valTok)
		} else {
			child = scalarFromToken(valTok)
		}
	case lexer.KindIndent:
		b.pos++
		child = b.parseContainer()
		b.expectDedent()
	case lexer.KindListMarker:
		// "ports:" followed by "- ..." at the same indent
		child = b.parseSequence()
	default:
		child = &Node{Kind: KindScalar, Line: keyTok.Line, Column: keyTok.Column + len(key) + 2}
	}

	if child == nil {
		child = &Node{Kind: KindScalar, Line: keyTok.Line}
	}
	child.HeadComment = head
	if inline == "" {
		// a value-line comment is tokenized after the value
		inline = b.takeInlineComments(keyTok.Line)
	}
	if inline != "" && child.LineComment == "" {
		child.LineComment = inline
	}
	b.lastNode = child

	if m.Has(key) {
		b.doc.Duplicates = append(b.doc.Duplicates, Duplicate{Key: key, Line: keyTok.Line, Column: keyTok.Column})
		return
	}
	m.Set(key, child)
}

func (b *builder) parseSequence() *Node {
	first := b.peek()
	s := NewSequence()
	s.Line, s.Column = first.Line, first.Column

	for b.err == nil {
		b.collectComments()
		if b.peekKind() != lexer.KindListMarker {
			return s
		}
		marker := b.next()
		head := b.takePending()
		b.markContent(marker.Line)
		item := b.parseItem(marker)
		if len(head) > 0 {
			item.HeadComment = append(head, item.HeadComment...)
		}
		s.Append(item)
	}
	return s
}

// parseItem parses one sequence element after its marker: an inline
// mapping with optional continuation lines, a nested container on the
// following lines, or a scalar.
func (b *builder) parseItem(marker lexer.Token) *Node {
	inline := b.takeInlineComments(marker.Line)
	b.collectComments()
	node := b.parseItemContent(marker)
	if inline != "" && node.LineComment == "" {
		node.LineComment = inline
	}
	return node
}

func (b *builder) parseItemContent(marker lexer.Token) *Node {
	contentIndent := marker.Column + 1

	switch b.peekKind() {
	case lexer.KindListMarker:
		// nested marker on the same line
		inner := b.next()
		nested := NewSequence()
		nested.Line, nested.Column = inner.Line, inner.Column
		nested.Append(b.parseItem(inner))
		return nested

	case lexer.KindKey:
		return b.parseItemMapping(contentIndent)

	case lexer.KindValue:
		tok := b.next()
		var node *Node
		if tok.BlockHeader {
			node = b.parseBlockScalar(tok)
		} else {
			node = scalarFromToken(tok)
		}
		b.lastNode = node
		return node

	case lexer.KindIndent:
		b.pos++
		child := b.parseContainer()
		b.expectDedent()
		if child == nil {
			child = &Node{Kind: KindScalar, Line: marker.Line}
		}
		return child

	default:
		return &Node{Kind: KindScalar, Line: marker.Line}
	}
}

// parseItemMapping assembles a list item written as a mapping. The first
// entries sit on the marker line; continuation lines arrive behind a
// single indent token whose depth decides whether they are siblings of
// the inline keys or the child of the last one.
func (b *builder) parseItemMapping(contentIndent int) *Node {
	first := b.peek()
	m := NewMapping()
	m.Line, m.Column = first.Line, first.Column

	var lastKey string
	lastNull := false

	keyTok := b.next()
	b.markContent(keyTok.Line)
	inline := b.takeInlineComments(keyTok.Line)
	lastKey = keyTok.Value

	var val *Node
	switch b.peekKind() {
	case lexer.KindValue:
		valTok := b.next()
		if valTok.BlockHeader {
			val = b.parseBlockScalar(valTok)
		} else {
			val = scalarFromToken(valTok)
		}
	default:
		val = &Node{Kind: KindScalar, Line: keyTok.Line}
		lastNull = true
	}
	if inline == "" {
		inline = b.takeInlineComments(keyTok.Line)
	}
	val.LineComment = inline
	m.Set(lastKey, val)
	b.lastNode = val

	for b.err == nil {
		b.collectComments()
		switch b.peekKind() {
		case lexer.KindIndent:
			indentTok := b.peek()
			b.pos++
			if lastNull && indentTok.Indent > contentIndent {
				// deeper than the item's own keys: child of the last key
				child := b.parseContainer()
				b.expectDedent()
				if child != nil {
					m.Set(lastKey, child)
				}
				lastNull = false
				continue
			}
			cont := b.parseContainer()
			b.expectDedent()
			b.mergeContinuation(m, cont)
			lastNull = false
		case lexer.KindListMarker:
			if lastNull {
				// "ports:" inside an item, sequence at the item's indent
				m.Set(lastKey, b.parseSequence())
				lastNull = false
				continue
			}
			return m
		default:
			return m
		}
	}
	return m
}

func (b *builder) mergeContinuation(m, cont *Node) {
	if cont == nil {
		return
	}
	if cont.Kind != KindMapping {
		logger.Debug("discarding stray %s continuation at %s:%d", cont.Kind, b.path, cont.Line)
		return
	}
	for _, k := range cont.Keys() {
		if m.Has(k) {
			b.doc.Duplicates = append(b.doc.Duplicates, Duplicate{Key: k, Line: cont.Get(k).Line})
			continue
		}
		m.Set(k, cont.Get(k))
	}
}

// parseBlockScalar collects the raw content lines of a literal or folded
// block and strips their common indentation.
func (b *builder) parseBlockScalar(header lexer.Token) *Node {
	style := StyleLiteral
	if strings.HasPrefix(header.Value, ">") {
		style = StyleFolded
	}

	var lines []string
	minIndent := -1
	for b.pos < len(b.tokens) && b.tokens[b.pos].BlockPart {
		tok := b.tokens[b.pos]
		b.pos++
		lines = append(lines, tok.Value)
		if strings.TrimSpace(tok.Value) == "" {
			continue
		}
		indent := len(tok.Value) - len(strings.TrimLeft(tok.Value, " "))
		if minIndent < 0 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent < 0 {
		minIndent = 0
	}
	for i, line := range lines {
		if len(line) >= minIndent {
			lines[i] = line[minIndent:]
		} else {
			lines[i] = strings.TrimLeft(line, " ")
		}
	}
	// trailing blank lines are chomping artifacts
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return &Node{
		Kind:   KindScalar,
		Line:   header.Line,
		Column: header.Column,
		Value:  strings.Join(lines, "\n"),
		Style:  style,
	}
}

func (b *builder) expectDedent() {
	if b.pos < len(b.tokens) && b.peekKind() == lexer.KindDedent {
		b.pos++
	}
}

// normalizeArrays wraps well-known list fields written as a single bare
// entry into one-element sequences.
func (b *builder) normalizeArrays(n *Node) {
	switch n.Kind {
	case KindMapping:
		for _, k := range n.Keys() {
			child := n.Get(k)
			if forcedArrayFields[k] && child != nil && child.Kind == KindMapping {
				seq := NewSequence()
				seq.Line, seq.Column = child.Line, child.Column
				seq.Append(child)
				n.Set(k, seq)
				b.repairs = append(b.repairs, lexer.RepairRecord{
					Heuristic:  heuristicForcedArray,
					Line:       child.Line,
					Column:     child.Column,
					Before:     k + ": <mapping>",
					After:      k + ": [<mapping>]",
					Confidence: 0.9,
					Fixable:    true,
				})
				child = seq
			}
			b.normalizeArrays(child)
		}
	case KindSequence:
		for _, item := range n.Items() {
			b.normalizeArrays(item)
		}
	}
}

func scalarFromToken(tok lexer.Token) *Node {
	value := tok.Value
	style := StylePlain
	if len(value) >= 2 {
		switch {
		case value[0] == '"' && value[len(value)-1] == '"':
			style = StyleDoubleQuoted
			value = unescapeDouble(value[1 : len(value)-1])
		case value[0] == '\'' && value[len(value)-1] == '\'':
			style = StyleSingleQuoted
			value = strings.ReplaceAll(value[1:len(value)-1], "''", "'")
		}
	}
	return &Node{Kind: KindScalar, Line: tok.Line, Column: tok.Column, Value: value, Style: style}
}

func unescapeDouble(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var out strings.Builder
	escaped := false
	for _, ch := range s {
		if escaped {
			switch ch {
			case 'n':
				out.WriteByte('\n')
			case 't':
				out.WriteByte('\t')
			default:
				out.WriteRune(ch)
			}
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		out.WriteRune(ch)
	}
	return out.String()
}
