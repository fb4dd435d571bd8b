package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// readInput returns the text to transform: the arguments joined by spaces,
// or all of stdin when there are none. Stdin is decoded to UTF-8, honouring
// a UTF-16 byte order mark if present.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	b, err := io.ReadAll(transform.NewReader(cmd.InOrStdin(), dec))
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(b), nil
}

// parseChar reads a single character given literally or as a Go escape
// such as \n, \x1b or \u2603.
func parseChar(s string) (rune, error) {
	if strings.HasPrefix(s, `\`) && len(s) > 1 {
		r, _, tail, err := strconv.UnquoteChar(s, 0)
		if err != nil || tail != "" {
			return 0, fmt.Errorf("invalid character escape %q", s)
		}
		return r, nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("expected a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// parseForce splits a CHAR=REPLACEMENT flag value. CHAR may itself be '='.
func parseForce(s string) (rune, string, error) {
	if s == "" {
		return 0, "", fmt.Errorf("empty force rule")
	}
	i := strings.Index(s[1:], "=")
	if i < 0 {
		return 0, "", fmt.Errorf("force rule %q must have the form CHAR=REPLACEMENT", s)
	}
	r, err := parseChar(s[:i+1])
	if err != nil {
		return 0, "", err
	}
	return r, s[i+2:], nil
}
