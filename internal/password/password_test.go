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
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEnv = "REPOKEY_TEST_PASSWORD"

type stubPrompter struct {
	answers []string
	prompts []string
}

func (p *stubPrompter) ReadPassword(prompt string) ([]byte, error) {
	p.prompts = append(p.prompts, prompt)
	if len(p.answers) == 0 {
		return nil, errors.New("no more answers")
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return []byte(answer), nil
}

func TestClearPassword(t *testing.T) {
	_, err := NewClearPassword(nil)
	assert.ErrorIs(t, err, ErrEmptyPassword)

	input := []byte("secret")
	pw, err := NewClearPassword(input)
	require.NoError(t, err)

	input[0] = 'X'
	s, err := pw.String()
	require.NoError(t, err)
	assert.Equal(t, "secret", s)

	b := pw.Bytes()
	b[0] = 'Y'
	assert.Equal(t, []byte("secret"), pw.Bytes())

	pw.Clear()
	assert.Nil(t, pw.Bytes())
	_, err = pw.String()
	assert.ErrorIs(t, err, ErrPasswordZeroed)
	pw.Clear()
}

func TestEqual(t *testing.T) {
	a, _ := NewClearPassword([]byte("one"))
	b, _ := NewClearPassword([]byte("one"))
	c, _ := NewClearPassword([]byte("two"))

	same, err := Equal(a, b)
	require.NoError(t, err)
	assert.True(t, same)

	same, err = Equal(a, c)
	require.NoError(t, err)
	assert.False(t, same)

	c.Clear()
	_, err = Equal(a, c)
	assert.ErrorIs(t, err, ErrPasswordZeroed)
}

func TestSource_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(path, []byte("from-file\r\nignored\n"), 0600))
	t.Setenv(testEnv, "from-env")

	src := &Source{File: path, Env: testEnv, Prompter: &stubPrompter{}}
	pw, err := src.Read("Password: ")
	require.NoError(t, err)
	s, _ := pw.String()
	assert.Equal(t, "from-file", s)
}

func TestSource_FileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := (&Source{File: filepath.Join(dir, "missing")}).Read("")
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0600))
	_, err = (&Source{File: empty}).Read("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestSource_Env(t *testing.T) {
	t.Setenv(testEnv, "from-env")
	prompter := &stubPrompter{answers: []string{"typed"}}

	pw, err := (&Source{Env: testEnv, Prompter: prompter}).Read("Password: ")
	require.NoError(t, err)
	s, _ := pw.String()
	assert.Equal(t, "from-env", s)
	assert.Empty(t, prompter.prompts)
}

func TestSource_Prompt(t *testing.T) {
	prompter := &stubPrompter{answers: []string{"typed"}}

	pw, err := (&Source{Env: testEnv, Prompter: prompter}).Read("Password: ")
	require.NoError(t, err)
	s, _ := pw.String()
	assert.Equal(t, "typed", s)
	assert.Equal(t, []string{"Password: "}, prompter.prompts)
}

func TestSource_NoPrompter(t *testing.T) {
	_, err := (&Source{Env: testEnv}).Read("Password: ")
	assert.ErrorIs(t, err, ErrNoTerminal)
}

func TestSource_ReadNew(t *testing.T) {
	prompter := &stubPrompter{answers: []string{"new", "new"}}
	pw, err := (&Source{Env: testEnv, Prompter: prompter}).ReadNew("new password: ")
	require.NoError(t, err)
	s, _ := pw.String()
	assert.Equal(t, "new", s)
	assert.Equal(t, []string{"new password: ", "Confirm new password: "}, prompter.prompts)

	prompter = &stubPrompter{answers: []string{"new", "typo"}}
	_, err = (&Source{Env: testEnv, Prompter: prompter}).ReadNew("new password: ")
	assert.ErrorIs(t, err, ErrMismatch)

	// Non-interactive sources are not confirmed.
	t.Setenv(testEnv, "scripted")
	pw, err = (&Source{Env: testEnv, Prompter: &stubPrompter{}}).ReadNew("new password: ")
	require.NoError(t, err)
	s, _ = pw.String()
	assert.Equal(t, "scripted", s)
}

var errWrong = errors.New("wrong password")

func isWrong(err error) bool { return errors.Is(err, errWrong) }

func TestSource_ReadWithRetries(t *testing.T) {
	prompter := &stubPrompter{answers: []string{"a", "b", "c"}}
	src := &Source{Env: testEnv, Prompter: prompter, Attempts: 3}

	var tried []string
	err := src.ReadWith(context.Background(), "Password: ", isWrong, func(pw []byte) error {
		tried = append(tried, string(pw))
		if string(pw) == "b" {
			return nil
		}
		return errWrong
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tried)
}

func TestSource_ReadWithExhausted(t *testing.T) {
	prompter := &stubPrompter{answers: []string{"a", "b", "c", "d"}}
	src := &Source{Env: testEnv, Prompter: prompter, Attempts: 3}

	calls := 0
	err := src.ReadWith(context.Background(), "Password: ", isWrong, func([]byte) error {
		calls++
		return errWrong
	})
	assert.ErrorIs(t, err, errWrong)
	assert.Equal(t, 3, calls)
}

func TestSource_ReadWithNoRetry(t *testing.T) {
	other := errors.New("backend down")
	prompter := &stubPrompter{answers: []string{"a", "b"}}
	src := &Source{Env: testEnv, Prompter: prompter, Attempts: 3}

	calls := 0
	err := src.ReadWith(context.Background(), "Password: ", isWrong, func([]byte) error {
		calls++
		return other
	})
	assert.ErrorIs(t, err, other)
	assert.Equal(t, 1, calls)
}

func TestSource_ReadWithNonInteractive(t *testing.T) {
	t.Setenv(testEnv, "scripted")
	src := &Source{Env: testEnv, Attempts: 5}

	calls := 0
	err := src.ReadWith(context.Background(), "", isWrong, func([]byte) error {
		calls++
		return errWrong
	})
	assert.ErrorIs(t, err, errWrong)
	assert.Equal(t, 1, calls)
}
