package provision

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// PreparePhrase must be typed literally before a card is repartitioned.
	PreparePhrase = "yippie ki-yay"
	// YesPhrase confirms every other destructive operation.
	YesPhrase = "yes"
)

// ErrAborted is returned when the operator declines a confirmation or
// leaves a selection empty. It is not a failure.
var ErrAborted = errors.New("user abort")

// ErrInvalidChoice is returned for a menu answer that is not a listed index.
var ErrInvalidChoice = errors.New("invalid choice")

// Decision is the outcome of interpreting one operator answer.
type Decision int

const (
	Invalid Decision = iota
	Proceed
	Abort
)

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case Abort:
		return "abort"
	default:
		return "invalid"
	}
}

// ConfirmPhrase proceeds only when input is exactly phrase.
func ConfirmPhrase(input, phrase string) Decision {
	if input == phrase {
		return Proceed
	}
	return Abort
}

// ParseChoice maps a 1-based menu answer to a 0-based index among n
// items. An empty answer aborts; anything else out of range is invalid.
func ParseChoice(input string, n int) (int, Decision) {
	input = strings.TrimSpace(input)
	if input == "" {
		return -1, Abort
	}
	i, err := strconv.Atoi(input)
	if err != nil || i < 1 || i > n {
		return -1, Invalid
	}
	return i - 1, Proceed
}

// Prompter is the interactive surface the workflow talks to.
type Prompter interface {
	Println(a ...any)
	Printf(format string, a ...any)
	Ask(prompt string) (string, error)
}

// Confirm asks prompt and returns ErrAborted unless the answer is phrase.
func Confirm(p Prompter, prompt, phrase string) error {
	ans, err := p.Ask(prompt)
	if err != nil {
		return err
	}
	if ConfirmPhrase(ans, phrase) != Proceed {
		return ErrAborted
	}
	return nil
}

// Choose prints items as a numbered list and returns the selected index.
func Choose(p Prompter, prompt string, items []string) (int, error) {
	for i, item := range items {
		p.Printf("  %d) %s\n", i+1, item)
	}
	ans, err := p.Ask(prompt)
	if err != nil {
		return -1, err
	}
	idx, d := ParseChoice(ans, len(items))
	switch d {
	case Abort:
		return -1, ErrAborted
	case Invalid:
		return -1, fmt.Errorf("%w: %q", ErrInvalidChoice, ans)
	}
	return idx, nil
}
