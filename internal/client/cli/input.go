package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword reads from the terminal without echo. Tests swap it out so
// they never need a real tty.
var readPassword = term.ReadPassword

// GetSimpleText asks for one line of input. The prompt goes to w on its own
// line, followed by "> " as the cursor marker. Whatever the user typed is
// returned with surrounding whitespace trimmed; a line ended by EOF instead
// of a newline still counts.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprintf(w, "%s\n> ", prompt); err != nil {
		return "", err
	}

	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetPassword reads a password from the terminal with echo disabled and
// prints the newline the suppressed echo swallowed. Callers own the returned
// bytes and should wipe them once used.
func GetPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Enter password: "); err != nil {
		return nil, err
	}

	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// GetConfirm asks a yes/no question defaulting to no. Only "y" or "yes" in
// any casing counts as consent; errors and everything else mean no.
func GetConfirm(reader *bufio.Reader, prompt string, w io.Writer) bool {
	answer, err := GetSimpleText(reader, prompt+" (y/N)", w)
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}
