package approval

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

type Result struct {
	Approved   bool
	UserAction string
}

type Prompt struct {
	Action  string
	Details []string
}

// Prompter asks an operator to confirm a process-level action.
type Prompter struct {
	In          io.Reader
	Out         io.Writer
	Interactive func() bool
}

// Default prompts on the controlling terminal.
func Default() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stderr, Interactive: IsInteractive}
}

func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsTerminalOutput reports whether stdout is a terminal.
func IsTerminalOutput() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func (p *Prompter) Ask(prompt Prompt) Result {
	if p.Interactive != nil && !p.Interactive() {
		return Result{
			Approved:   false,
			UserAction: "auto_deny_non_interactive",
		}
	}

	fmt.Fprintln(p.Out, "")
	fmt.Fprintf(p.Out, "CONFIRM: %s\n", prompt.Action)
	for _, d := range prompt.Details {
		fmt.Fprintf(p.Out, "  • %s\n", d)
	}
	fmt.Fprintln(p.Out, "")

	reader := bufio.NewReader(p.In)

	for {
		fmt.Fprint(p.Out, "Proceed? [y/n]: ")
		input, err := reader.ReadString('\n')
		if err != nil && strings.TrimSpace(input) == "" {
			return Result{
				Approved:   false,
				UserAction: "error_reading_input",
			}
		}

		input = strings.TrimSpace(strings.ToLower(input))

		switch input {
		case "y", "yes":
			return Result{
				Approved:   true,
				UserAction: "approve",
			}
		case "n", "no", "":
			return Result{
				Approved:   false,
				UserAction: "deny",
			}
		default:
			fmt.Fprintln(p.Out, "Invalid input. Please enter 'y' to proceed or 'n' to cancel.")
		}
	}
}
