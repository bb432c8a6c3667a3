// Package lexer turns raw manifest bytes into a best-effort stream of
// structural tokens. It never fails on malformed input: each heuristic
// downgrades an ambiguous construct to a repaired token plus a RepairRecord,
// or to an Error token carrying a confidence-scored guess, so that repair
// decisions stay visible and reversible downstream.
package lexer

// Kind identifies the structural role of a token.
type Kind int

const (
	// KindIndent opens a nesting level.
	KindIndent Kind = iota
	// KindDedent closes a nesting level.
	KindDedent
	// KindDocStart marks a "---" document boundary.
	KindDocStart
	// KindListMarker is a sequence dash.
	KindListMarker
	// KindKey is a mapping key.
	KindKey
	// KindValue is a scalar value (inline or block-scalar content).
	KindValue
	// KindComment is a full-line or trailing comment, '#' stripped.
	KindComment
	// KindError is content the lexer could not classify. It carries the raw
	// text and, when possible, a confidence-scored guess.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindIndent:
		return "Indent"
	case KindDedent:
		return "Dedent"
	case KindDocStart:
		return "DocStart"
	case KindListMarker:
		return "ListMarker"
	case KindKey:
		return "Key"
	case KindValue:
		return "Value"
	case KindComment:
		return "Comment"
	case KindError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Guess is the lexer's best structural interpretation of an Error token.
type Guess struct {
	Kind       Kind
	Text       string
	Confidence float64 // 0..1
}

// Token is one structural element with source provenance.
type Token struct {
	Kind   Kind
	Line   int    // 1-based source line
	Column int    // 1-based source column of the content
	Indent int    // leading whitespace width after tab expansion
	Text   string // original source text
	Value  string // repaired/normalized text
	// BlockPart marks raw content lines inside a '|' or '>' block scalar.
	BlockPart bool
	// BlockHeader marks a Value token that is a block scalar header
	// ("|", ">-", "|2", ...) rather than an inline scalar.
	BlockHeader bool
	Guess       *Guess
}

// RepairRecord documents one heuristic substitution. Fixable records become
// warning diagnostics with an attached fix; non-fixable ones (encoding
// damage) become error diagnostics.
type RepairRecord struct {
	Heuristic  string // e.g. "lexer/stuck-dash"
	Line       int
	Column     int
	Before     string
	After      string
	Confidence float64
	Fixable    bool
}

// Heuristic rule ids, in fixed priority order of application.
const (
	HeuristicStuckDash    = "lexer/stuck-dash"
	HeuristicFusedKeyword = "lexer/fused-keyword"
	HeuristicMissingColon = "lexer/missing-colon"
	HeuristicIndent       = "lexer/indent-inference"
	HeuristicQuoteRepair  = "lexer/quote-repair"
	HeuristicEncoding     = "lexer/encoding-guard"
	HeuristicColonSpace   = "lexer/colon-spacing"
	HeuristicTabExpand    = "lexer/tab-expansion"
)

// Options toggles individual heuristics. All are enabled by default; the
// application order is fixed regardless of which are on, keeping output
// deterministic for identical input.
type Options struct {
	StuckDash       bool
	FusedKeyword    bool
	MissingColon    bool
	IndentInference bool
	QuoteRepair     bool
	EncodingGuard   bool
	// TabWidth is the expansion width for tabs. Zero means detect the
	// file's dominant indent width, falling back to 2.
	TabWidth int
}

// DefaultOptions enables every heuristic with tab width detection.
func DefaultOptions() Options {
	return Options{
		StuckDash:       true,
		FusedKeyword:    true,
		MissingColon:    true,
		IndentInference: true,
		QuoteRepair:     true,
		EncodingGuard:   true,
	}
}
