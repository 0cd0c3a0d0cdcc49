package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// readPassword is a seam over term.ReadPassword so tests never touch the terminal.
var readPassword = term.ReadPassword

// promptPassphrase prints prompt to w and reads a passphrase from the
// terminal without echo.
func promptPassphrase(w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pw), nil
}

// promptNewPassphrase asks for a passphrase twice and fails when the entries differ.
func promptNewPassphrase(w io.Writer) (string, error) {
	first, err := promptPassphrase(w, "New passphrase: ")
	if err != nil {
		return "", err
	}
	second, err := promptPassphrase(w, "Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passphrases do not match")
	}
	return first, nil
}

// openInput opens path for reading; "-" means stdin.
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}
