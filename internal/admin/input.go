package admin

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/bucketvault/internal/common"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errKeysDiffer = errors.New("keys do not match")

// GetSecret prints prompt to w and reads a line from the terminal without echo.
// The returned slice should be wiped by the caller.
func GetSecret(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetNewSecret asks for a secret twice and fails when the two entries differ
// or the secret is empty.
func GetNewSecret(w io.Writer, prompt, repeatPrompt string) (string, error) {
	first, err := GetSecret(w, prompt)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(first)

	second, err := GetSecret(w, repeatPrompt)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(second)

	if len(first) == 0 {
		return "", errors.New("key must not be empty")
	}
	if string(first) != string(second) {
		return "", errKeysDiffer
	}
	return string(first), nil
}
