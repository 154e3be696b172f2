// Package setup implements the interactive onboarding wizard that creates a
// hotel tenant, its owner membership and its PMS configuration.
package setup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNoInput is returned when the input ends before a required answer.
var ErrNoInput = errors.New("setup: no input")

// Prompter provides terminal prompts backed by an io.Reader/Writer pair. In
// production these are os.Stdin and os.Stdout; tests inject buffers.
type Prompter struct {
	scanner *bufio.Scanner
	w       io.Writer
}

// NewPrompter creates a Prompter wired to the given reader and writer.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(r), w: w}
}

// String prompts for a text value. Enter alone returns defaultVal. An empty
// defaultVal makes the field required: the prompt repeats until a value is
// given, and ErrNoInput is returned if the input ends first.
func (p *Prompter) String(label, defaultVal string) (string, error) {
	for {
		if defaultVal != "" {
			_, _ = fmt.Fprintf(p.w, "  %s [%s]: ", label, defaultVal)
		} else {
			_, _ = fmt.Fprintf(p.w, "  %s: ", label)
		}

		if !p.scanner.Scan() {
			if defaultVal != "" {
				return defaultVal, nil
			}
			return "", ErrNoInput
		}

		val := strings.TrimSpace(p.scanner.Text())
		if val != "" {
			return val, nil
		}
		if defaultVal != "" {
			return defaultVal, nil
		}
		_, _ = fmt.Fprintf(p.w, "  (required, please enter a value)\n")
	}
}

// Optional prompts for a value that may be left blank.
func (p *Prompter) Optional(label string) string {
	_, _ = fmt.Fprintf(p.w, "  %s (optional): ", label)
	if !p.scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(p.scanner.Text())
}

// Secret prompts for a sensitive value such as an API key. The value is not
// masked.
func (p *Prompter) Secret(label string) (string, error) {
	return p.String(label+" (input is visible)", "")
}

// Confirm asks a yes/no question. defaultYes decides what Enter alone means.
func (p *Prompter) Confirm(label string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}

	_, _ = fmt.Fprintf(p.w, "  %s %s: ", label, hint)

	if !p.scanner.Scan() {
		return defaultYes
	}

	answer := strings.TrimSpace(strings.ToLower(p.scanner.Text()))
	if answer == "" {
		return defaultYes
	}
	return answer == "y" || answer == "yes"
}

// Select presents a numbered list and returns the zero-based index of the
// chosen option.
func (p *Prompter) Select(label string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, errors.New("setup: no options to select from")
	}

	_, _ = fmt.Fprintf(p.w, "  %s:\n", label)
	for i, opt := range options {
		_, _ = fmt.Fprintf(p.w, "    %d) %s\n", i+1, opt)
	}

	for {
		_, _ = fmt.Fprintf(p.w, "  Choice [1-%d]: ", len(options))

		if !p.scanner.Scan() {
			return -1, ErrNoInput
		}

		n, err := strconv.Atoi(strings.TrimSpace(p.scanner.Text()))
		if err != nil || n < 1 || n > len(options) {
			_, _ = fmt.Fprintf(p.w, "  (enter a number between 1 and %d)\n", len(options))
			continue
		}
		return n - 1, nil
	}
}
