package credential

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// Prompter collects credential values from the user. PromptSecret must not
// echo the typed value.
type Prompter interface {
	Prompt(label string) (string, error)
	PromptSecret(label string) (string, error)
}

// TermPrompter prompts on the controlling terminal, hiding secret input.
type TermPrompter struct{}

// NewTermPrompter creates a terminal-backed prompter.
func NewTermPrompter() *TermPrompter {
	return &TermPrompter{}
}

// Prompt implements Prompter.Prompt.
func (p *TermPrompter) Prompt(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)

	reader := bufio.NewReader(os.Stdin)

	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

// PromptSecret implements Prompter.PromptSecret.
func (p *TermPrompter) PromptSecret(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)

	value, err := term.ReadPassword(int(syscall.Stdin))

	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("reading secret input: %w", err)
	}

	return strings.TrimSpace(string(value)), nil
}
