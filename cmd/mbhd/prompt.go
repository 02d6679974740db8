package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

var stdin = bufio.NewReader(os.Stdin)

// readSecret prompts on stderr and reads one line without echo. When stdin
// is not a terminal the line is read as is, so secrets can be piped in.
func readSecret(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		line, err := stdin.ReadBytes('\n')
		if err != nil && len(line) == 0 {
			return nil, fmt.Errorf("reading %s: %w", strings.TrimSuffix(prompt, ": "), err)
		}
		return bytes.TrimRight(line, "\r\n"), nil
	}
	defer fmt.Fprintln(os.Stderr)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", strings.TrimSuffix(prompt, ": "), err)
	}
	return raw, nil
}

// readPassword reads a non-empty password.
func readPassword(prompt string) ([]byte, error) {
	p, err := readSecret(prompt)
	if err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return nil, errors.New("password cannot be empty")
	}
	return p, nil
}

// readNewPassword reads a password twice and checks both entries match.
func readNewPassword(prompt string) ([]byte, error) {
	p, err := readPassword(prompt)
	if err != nil {
		return nil, err
	}
	again, err := readSecret("Repeat " + strings.ToLower(prompt[:1]) + prompt[1:])
	if err != nil {
		clear(p)
		return nil, err
	}
	defer clear(again)
	if !bytes.Equal(p, again) {
		clear(p)
		return nil, errors.New("entries do not match")
	}
	return p, nil
}

// readPhrase reads a recovery phrase and splits it into words.
func readPhrase() ([]string, error) {
	raw, err := readSecret("Recovery phrase: ")
	if err != nil {
		return nil, err
	}
	defer clear(raw)
	words := strings.Fields(string(raw))
	if len(words) == 0 {
		return nil, errors.New("recovery phrase cannot be empty")
	}
	return words, nil
}
