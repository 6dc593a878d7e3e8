// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-repokey.
//
// go-repokey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package password

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jeremyhahn/go-repokey/pkg/ratelimit"
	"golang.org/x/term"
)

// EnvPassword is the environment variable consulted for the repository password.
const EnvPassword = "REPOKEY_PASSWORD"

// ErrNoTerminal is returned when a prompt is needed but stdin is not a terminal.
var ErrNoTerminal = errors.New("password: interactive prompt requires a terminal")

// Prompter asks the user for a secret.
type Prompter interface {
	ReadPassword(prompt string) ([]byte, error)
}

// TerminalPrompter reads from a terminal with echo disabled.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

// NewTerminalPrompter prompts on stderr and reads from stdin.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

// ReadPassword prints prompt and reads one line without echo.
func (p *TerminalPrompter) ReadPassword(prompt string) ([]byte, error) {
	fd := int(p.In.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNoTerminal
	}

	fmt.Fprint(p.Out, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(p.Out)
	if err != nil {
		return nil, fmt.Errorf("password: failed to read: %w", err)
	}
	return pw, nil
}

// Source resolves a password from, in order: a file, an environment
// variable and an interactive prompt.
type Source struct {
	// File is read when set; only the first line is used.
	File string

	// Env names the environment variable to consult (default EnvPassword).
	Env string

	// Prompter is used when neither File nor Env supplies a password.
	// Nil disables prompting.
	Prompter Prompter

	// Attempts bounds the number of prompts in ReadWith.
	Attempts int

	// Delay is the minimum time between prompts in ReadWith.
	Delay time.Duration
}

// Read returns the repository password.
func (s *Source) Read(prompt string) (*ClearPassword, error) {
	if s.File != "" {
		return readFile(s.File)
	}

	env := s.Env
	if env == "" {
		env = EnvPassword
	}
	if v, ok := os.LookupEnv(env); ok {
		return NewClearPassword([]byte(v))
	}

	if s.Prompter == nil {
		return nil, fmt.Errorf("%w: set %s or use a password file", ErrNoTerminal, env)
	}
	pw, err := s.Prompter.ReadPassword(prompt)
	if err != nil {
		return nil, err
	}
	defer zero(pw)
	return NewClearPassword(pw)
}

// ReadNew returns a new password. An interactive prompt asks twice and
// fails with ErrMismatch when the entries differ.
func (s *Source) ReadNew(prompt string) (*ClearPassword, error) {
	interactive := s.interactive()
	pw, err := s.Read(prompt)
	if err != nil || !interactive {
		return pw, err
	}

	confirm, err := s.Read("Confirm " + prompt)
	if err != nil {
		pw.Clear()
		return nil, err
	}
	defer confirm.Clear()

	same, err := Equal(pw, confirm)
	if err != nil {
		pw.Clear()
		return nil, err
	}
	if !same {
		pw.Clear()
		return nil, ErrMismatch
	}
	return pw, nil
}

// ReadWith calls try with the password until it succeeds, try returns an
// error for which retry is false, or the attempts are used up. Only
// interactive passwords are retried.
func (s *Source) ReadWith(ctx context.Context, prompt string, retry func(error) bool, try func(pw []byte) error) error {
	n := 1
	if s.interactive() && s.Attempts > 1 {
		n = s.Attempts
	}
	attempts := ratelimit.NewAttempts(n, s.Delay)

	var lastErr error
	for {
		if err := attempts.Next(ctx); err != nil {
			if errors.Is(err, ratelimit.ErrAttemptsExhausted) && lastErr != nil {
				return lastErr
			}
			return err
		}

		pw, err := s.Read(prompt)
		if err != nil {
			return err
		}
		b := pw.Bytes()
		lastErr = try(b)
		zero(b)
		pw.Clear()

		if lastErr == nil || !retry(lastErr) {
			return lastErr
		}
	}
}

func (s *Source) interactive() bool {
	if s.File != "" {
		return false
	}
	env := s.Env
	if env == "" {
		env = EnvPassword
	}
	if _, ok := os.LookupEnv(env); ok {
		return false
	}
	return s.Prompter != nil
}

func readFile(path string) (*ClearPassword, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("password: failed to read %s: %w", path, err)
	}
	defer zero(data)

	sc := bufio.NewScanner(bytes.NewReader(data))
	if !sc.Scan() {
		return nil, ErrEmptyPassword
	}
	return NewClearPassword(bytes.TrimRight(sc.Bytes(), "\r"))
}
