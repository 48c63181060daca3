// Package prompt provides interactive terminal prompts for CLI commands.
package prompt

import (
	"errors"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// IsAborted returns true if the error indicates the user aborted.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// InputWithValidation prompts for text input checked by validate.
func InputWithValidation(label string, validate func(string) error) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Validate: validate,
	}

	result, err := prompt.Run()
	return strings.TrimSpace(result), wrapError(err)
}

// UserName prompts for a non-blank user name.
func UserName() (string, error) {
	return InputWithValidation("User name", func(input string) error {
		if strings.TrimSpace(input) == "" {
			return errors.New("user name cannot be empty")
		}
		return nil
	})
}
