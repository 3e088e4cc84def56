package selection

import (
	"errors"

	"github.com/manifoldco/promptui"
)

// Prompter abstracts the terminal questions the controller asks. Tests
// substitute a scripted implementation.
type Prompter interface {
	// Select shows a menu and returns the index of the chosen item.
	Select(label string, items []string) (int, error)
	// Input reads a line of text. A non-nil validate rejects bad answers
	// and the user is asked again.
	Input(label string, validate func(string) error) (string, error)
	// Confirm asks a yes/no question. A "no" answer is false, nil.
	Confirm(label string) (bool, error)
}

// ConsolePrompter asks on the controlling terminal via promptui.
type ConsolePrompter struct{}

func (ConsolePrompter) Select(label string, items []string) (int, error) {
	prompt := promptui.Select{
		Label: label,
		Items: items,
		Size:  len(items),
	}
	i, _, err := prompt.Run()
	if err != nil {
		return 0, mapPromptErr(err)
	}
	return i, nil
}

func (ConsolePrompter) Input(label string, validate func(string) error) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Validate: validate,
	}
	s, err := prompt.Run()
	if err != nil {
		return "", mapPromptErr(err)
	}
	return s, nil
}

func (ConsolePrompter) Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		// promptui reports a "no" answer to a confirm prompt as ErrAbort.
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, mapPromptErr(err)
	}
	return true, nil
}

func mapPromptErr(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return ErrAborted
	}
	return err
}
