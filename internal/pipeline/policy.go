package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Mode decides whether computed fixes are written back.
type Mode string

const (
	// ModeDryRun reports fixes without applying them.
	ModeDryRun Mode = "dry-run"
	// ModeAuto applies every approved-by-threshold fix without asking.
	ModeAuto Mode = "auto"
	// ModeInteractive asks before mutating. A single target gets a
	// per-file prompt; a multi-file batch requires the typed
	// confirmation token once up front.
	ModeInteractive Mode = "interactive"
)

// BatchToken is the confirmation a multi-file interactive heal requires.
const BatchToken = "heal-all"

// Policy couples a mode with the prompter interactive mode needs.
type Policy struct {
	Mode     Mode
	Prompter *Prompter
}

// Validate rejects unusable policy combinations. Interactive mode
// needs a terminal on both ends of the prompt, which also rules out
// piped stdin.
func (p Policy) Validate() error {
	switch p.Mode {
	case ModeDryRun, ModeAuto:
		return nil
	case ModeInteractive:
		if p.Prompter == nil {
			return fmt.Errorf("interactive mode requires a prompter")
		}
		return nil
	default:
		return fmt.Errorf("unknown mode %q", p.Mode)
	}
}

// StdinIsTerminal reports whether both stdin and stdout are attached
// to a terminal, the precondition for interactive prompts.
func StdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Prompter reads confirmations from an input stream.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter wraps the given streams. Tests pass buffers; the CLI
// passes stdin and stderr.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// ConfirmFile asks whether to heal one file. Default is no.
func (p *Prompter) ConfirmFile(path string, fixes int) (bool, error) {
	fmt.Fprintf(p.out, "apply %d fixes to %s? [y/N] ", fixes, path)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// ConfirmBatch gates a multi-file heal behind the typed token. Anything
// else, including an empty line, declines.
func (p *Prompter) ConfirmBatch(files int) (bool, error) {
	fmt.Fprintf(p.out, "about to heal %d files in place, type %q to continue: ", files, BatchToken)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	return strings.TrimSpace(line) == BatchToken, nil
}
