package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

// Placeholders of the form <args:N> and <env:NAME> may appear inside any
// string value of a run profile. They are substituted from the positional
// command line arguments and the process environment before the profile is
// decoded. A reference that cannot be satisfied is a configuration error.
const (
	tokenArgs = iota
	tokenEnv
	tokenBroken
	tokenText
)

var placeholderLexer *lexmachine.Lexer

func init() {
	placeholderLexer = lexmachine.NewLexer()
	placeholderLexer.Add([]byte(`<args:[0-9]+>`), placeholderToken(tokenArgs))
	placeholderLexer.Add([]byte(`<env:[a-zA-Z_][a-zA-Z0-9_]*>`), placeholderToken(tokenEnv))
	placeholderLexer.Add([]byte(`<args[^>]*>`), placeholderToken(tokenBroken))
	placeholderLexer.Add([]byte(`<env[^>]*>`), placeholderToken(tokenBroken))
	placeholderLexer.Add([]byte(`[^<]+`), placeholderToken(tokenText))
	placeholderLexer.Add([]byte(`<`), placeholderToken(tokenText))
}

func placeholderToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

// ResolvePlaceholders substitutes every <args:N> and <env:NAME> reference in
// s. args holds the positional arguments forwarded from the command line.
func ResolvePlaceholders(s string, args []string) (string, error) {
	if !strings.Contains(s, "<") {
		return s, nil
	}

	scanner, err := placeholderLexer.Scanner([]byte(s))
	if err != nil {
		return "", errors.Wrapf(err, "Failed to create placeholder scanner")
	}

	var out strings.Builder
	for itok, err, eos := scanner.Next(); !eos; itok, err, eos = scanner.Next() {
		if err != nil {
			return "", errors.Wrapf(err, "Failed to scan %q", s)
		}
		tok := itok.(*lexmachine.Token)

		switch tok.Type {
		case tokenArgs:
			lexeme := string(tok.Lexeme)
			index, _ := strconv.Atoi(lexeme[len("<args:") : len(lexeme)-1])
			if index >= len(args) {
				return "", errors.Errorf(
					"Missing positional argument %d referenced by %q (%d provided)",
					index, s, len(args))
			}
			out.WriteString(args[index])
		case tokenEnv:
			lexeme := string(tok.Lexeme)
			name := lexeme[len("<env:") : len(lexeme)-1]
			value, ok := os.LookupEnv(name)
			if !ok {
				return "", errors.Errorf("Environment variable %q referenced by %q is not set", name, s)
			}
			out.WriteString(value)
		case tokenBroken:
			return "", errors.Errorf("Malformed placeholder %q in %q", string(tok.Lexeme), s)
		case tokenText:
			out.Write(tok.Lexeme)
		}
	}
	return out.String(), nil
}
