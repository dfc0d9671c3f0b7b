package cli

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// promptSecret prompts for a line of hidden input on the terminal.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	secret, err := term.ReadPassword(syscall.Stdin)
	fmt.Fprintln(os.Stderr) // newline after hidden input

	if err != nil {
		return "", sweeperr.Wrap(err, "reading hidden input")
	}
	return string(secret), nil
}

// keyInput returns the key material: the positional argument when
// given, a hidden prompt otherwise.
func keyInput(args []string) (string, error) {
	if len(args) == 1 && args[0] != "" {
		return args[0], nil
	}
	key, err := promptSecret("Enter mnemonic or extended key: ")
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", sweeperr.WithSuggestion(sweeperr.ErrUnrecognizedKeyFormat,
			"pass the key as an argument or enter it at the prompt")
	}
	return key, nil
}
