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

package cli

import (
	"context"

	"github.com/jeremyhahn/go-repokey/internal/config"
	"github.com/jeremyhahn/go-repokey/internal/password"
	"github.com/jeremyhahn/go-repokey/pkg/keyfile"
	"github.com/jeremyhahn/go-repokey/pkg/repository"
	"github.com/jeremyhahn/go-repokey/pkg/storage"
	"github.com/jeremyhahn/go-repokey/pkg/storage/file"
	restclient "github.com/jeremyhahn/go-repokey/pkg/storage/rest"
)

// EnvNewPassword supplies the password for a new key record.
const EnvNewPassword = "REPOKEY_NEW_PASSWORD"

// openBackend returns the repository storage for the configured location.
// The caller closes it through Namespace.Backend().
func (a *app) openBackend() (*storage.Namespace, error) {
	repo := a.settings.Repository
	if repo.Location == "" {
		return nil, config.ErrNoRepository
	}

	if repo.IsREST() {
		tlsConfig, err := repo.ClientTLSConfig()
		if err != nil {
			return nil, err
		}
		be, err := restclient.New(&restclient.Config{
			URL:       repo.URL(),
			Timeout:   repo.Timeout,
			TLSConfig: tlsConfig,
		})
		if err != nil {
			return nil, err
		}
		a.logger.Debug("using REST repository", "url", repo.URL())
		return storage.NewNamespace(be), nil
	}

	be, err := file.New(repo.Location)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("using local repository", "path", be.Root())
	return storage.NewNamespace(be), nil
}

// passwordSource returns the source of the current repository password.
func (a *app) passwordSource() *password.Source {
	return &password.Source{
		File:     a.settings.Repository.PasswordFile,
		Env:      password.EnvPassword,
		Prompter: a.prompter,
		Attempts: a.settings.Key.PromptAttempts,
		Delay:    a.settings.Key.PromptDelay,
	}
}

// newPasswordSource returns the source of a password for a new key record.
func (a *app) newPasswordSource(file string) *password.Source {
	return &password.Source{
		File:     file,
		Env:      EnvNewPassword,
		Prompter: a.prompter,
	}
}

// readNewPassword reads and confirms a password for a new key record.
func (a *app) readNewPassword(file, prompt string) ([]byte, func(), error) {
	pw, err := a.newPasswordSource(file).ReadNew(prompt)
	if err != nil {
		return nil, nil, err
	}
	b := pw.Bytes()
	cleanup := func() {
		for i := range b {
			b[i] = 0
		}
		pw.Clear()
	}
	return b, cleanup, nil
}

// repositoryOptions returns the options shared by Init and Open.
func (a *app) repositoryOptions() []repository.Option {
	return []repository.Option{
		repository.WithManager(a.keyManager()),
		repository.WithLogger(a.logger),
		repository.WithHost(a.settings.Key.Hostname, a.settings.Key.Username),
		repository.WithKeyHint(a.settings.Repository.KeyHint),
	}
}

// openRepository unlocks the repository, prompting again after a wrong
// interactive password.
func (a *app) openRepository(ctx context.Context, be *storage.Namespace) (*repository.Repository, error) {
	var repo *repository.Repository
	err := a.passwordSource().ReadWith(ctx, "enter password for repository: ", keyfile.IsWrongPassword,
		func(pw []byte) error {
			r, err := repository.Open(be, pw, a.repositoryOptions()...)
			if err != nil {
				if keyfile.IsWrongPassword(err) {
					a.logger.Warn("wrong password or no key found")
				}
				return err
			}
			repo = r
			return nil
		})
	if err != nil {
		return nil, err
	}
	a.verbosef("opened repository %s with key %s", repo.Config().ID, repo.KeyID().Str())
	return repo, nil
}

// withRepository opens the backend and repository, runs fn and closes the
// backend.
func (a *app) withRepository(ctx context.Context, fn func(*repository.Repository) error) error {
	be, err := a.openBackend()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := be.Backend().Close(); cerr != nil {
			a.logger.Debug("failed to close backend", "error", cerr)
		}
	}()

	repo, err := a.openRepository(ctx, be)
	if err != nil {
		return err
	}
	return fn(repo)
}

func (a *app) repositoryInfo(repo *repository.Repository) RepositoryInfo {
	cfg := repo.Config()
	return RepositoryInfo{
		ID:       cfg.ID,
		KeyID:    repo.KeyID().String(),
		Location: a.settings.Repository.Location,
		Version:  cfg.Version,
	}
}
