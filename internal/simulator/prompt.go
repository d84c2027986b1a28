package simulator

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Decision is the operator's (or policy's) response when a slot exhausts
// its retries.
type Decision int

const (
	DecisionRetry Decision = iota
	DecisionSkip
	DecisionContinue
	DecisionQuit
)

// PromptHandler decides what happens to a slot that has exhausted
// max_retries (spec §4.6).
type PromptHandler interface {
	Decide(slot ActionSlot) Decision
}

// AutoPolicy never blocks: it always continues past a failed slot, the
// default behavior unless the operator asked for interactive prompts
// (CLI flag --no-auto-continue).
type AutoPolicy struct{}

func (AutoPolicy) Decide(ActionSlot) Decision { return DecisionContinue }

// StdioPrompt asks the operator on the terminal, used when the CLI is
// invoked with --no-auto-continue.
type StdioPrompt struct {
	in  *bufio.Reader
	out io.Writer
}

// NewStdioPrompt constructs a terminal prompt reading from in and writing
// the prompt text to out.
func NewStdioPrompt(in io.Reader, out io.Writer) *StdioPrompt {
	return &StdioPrompt{in: bufio.NewReader(in), out: out}
}

func (p *StdioPrompt) Decide(slot ActionSlot) Decision {
	for {
		fmt.Fprintf(p.out, "slot %d (account %s) failed after %d attempts: %s\n[r]etry / [s]kip / [c]ontinue / [q]uit? ",
			slot.Sequence, slot.Account, slot.Attempts, slot.LastError)

		line, err := p.in.ReadString('\n')
		if err != nil {
			return DecisionQuit
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "r", "retry":
			return DecisionRetry
		case "s", "skip":
			return DecisionSkip
		case "c", "continue":
			return DecisionContinue
		case "q", "quit":
			return DecisionQuit
		default:
			fmt.Fprintln(p.out, "unrecognized response, try again")
		}
	}
}
