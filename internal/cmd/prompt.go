package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// PromptSelect displays numbered options and returns the selected index
// Returns -1 if cancelled (user enters "0" or empty)
func PromptSelect(message string, options []string) int {
	if len(options) == 0 {
		return -1
	}

	fmt.Println()
	fmt.Println(message)
	for i, opt := range options {
		fmt.Printf("  [%d] %s\n", i+1, opt)
	}
	fmt.Printf("  [0] Skip\n")
	fmt.Println()
	fmt.Print("? Select: ")

	input, err := readLine()
	if err != nil {
		return -1
	}
	if input == "" || input == "0" {
		return -1
	}

	choice, err := strconv.Atoi(input)
	if err != nil || choice < 1 || choice > len(options) {
		return -1
	}

	return choice - 1
}

// PromptString asks for a value, returning def when the answer is empty.
func PromptString(message, def string) string {
	if def != "" {
		fmt.Printf("? %s [%s]: ", message, def)
	} else {
		fmt.Printf("? %s: ", message)
	}
	input, err := readLine()
	if err != nil || input == "" {
		return def
	}
	return input
}

// Confirm asks a yes/no question. --yes answers yes; a non-interactive
// session without --yes answers no.
func Confirm(message string) bool {
	if IsYesMode() {
		return true
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	fmt.Printf("? %s [y/N]: ", message)
	input, err := readLine()
	if err != nil {
		return false
	}
	switch strings.ToLower(input) {
	case "y", "yes":
		return true
	}
	return false
}

// PromptPassword reads a password without echo.
func PromptPassword(message string) (string, error) {
	fmt.Fprint(os.Stderr, message)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// IsInteractive returns true if stdin is a terminal and --yes flag is not set
func IsInteractive() bool {
	if IsYesMode() {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

var stdinReader = bufio.NewReader(os.Stdin)

func readLine() (string, error) {
	input, err := stdinReader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
