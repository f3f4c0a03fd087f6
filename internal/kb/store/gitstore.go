// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/nexus-agents/dev-nexus/internal/kb"
	"github.com/pkg/errors"
)

// GitStore persists the document as a file in a remote git repository.
// Every operation works against a fresh in-memory clone; nothing is kept
// between calls. The version token is the remote head hash, so a write
// whose base no longer matches is rejected by the remote as a
// non-fast-forward push and reported as ErrConflict.
type GitStore struct {
	url       string // remote URL, e.g. https://github.com/owner/name.git
	path      string // file path within the repository
	token     string // bearer for the remote, empty for unauthenticated
	committer object.Signature
}

var _ DocumentStore = (*GitStore)(nil)

// GitStoreOptions configures a GitStore.
type GitStoreOptions struct {
	URL   string
	Path  string
	Token string
	// Committer identity recorded on writes. Defaults to the service name.
	CommitterName  string
	CommitterEmail string
}

func NewGitStore(opts GitStoreOptions) *GitStore {
	name, email := opts.CommitterName, opts.CommitterEmail
	if name == "" {
		name = "dev-nexus"
	}
	if email == "" {
		email = "dev-nexus@localhost"
	}
	return &GitStore{
		url:       opts.URL,
		path:      opts.Path,
		token:     opts.Token,
		committer: object.Signature{Name: name, Email: email},
	}
}

func (g *GitStore) auth() transport.AuthMethod {
	if g.token == "" {
		return nil
	}
	// Token auth over HTTPS; the username is ignored by token-accepting
	// remotes but must be non-empty.
	return &githttp.BasicAuth{Username: "x-access-token", Password: g.token}
}

func (g *GitStore) clone(ctx context.Context) (*git.Repository, error) {
	repo, err := git.CloneContext(ctx, memory.NewStorage(), memfs.New(), &git.CloneOptions{
		URL:          g.url,
		Auth:         g.auth(),
		SingleBranch: true,
	})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func (g *GitStore) Load(ctx context.Context) (*kb.Document, Version, error) {
	repo, err := g.clone(ctx)
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", errors.Wrap(ErrUnavailable, err.Error())
	}
	head, err := repo.Head()
	if err != nil {
		return nil, "", errors.Wrap(ErrUnavailable, err.Error())
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, "", errors.Wrap(err, "opening worktree")
	}
	data, err := util.ReadFile(wt.Filesystem, g.path)
	if os.IsNotExist(err) {
		return nil, Version(head.Hash().String()), ErrNotFound
	}
	if err != nil {
		return nil, "", errors.Wrap(err, "reading document file")
	}
	doc, err := kb.Decode(data, time.Now().UTC())
	if err != nil {
		return nil, "", err
	}
	return doc, Version(head.Hash().String()), nil
}

func (g *GitStore) Save(ctx context.Context, doc *kb.Document, base Version, commitMessage string) (Version, error) {
	data, err := kb.Encode(doc)
	if err != nil {
		return "", err
	}
	repo, err := g.clone(ctx)
	var fresh bool
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		repo, err = g.initEmpty()
		fresh = true
	}
	if err != nil {
		return "", errors.Wrap(ErrUnavailable, err.Error())
	}
	if !fresh && base != "" {
		head, err := repo.Head()
		if err != nil {
			return "", errors.Wrap(ErrUnavailable, err.Error())
		}
		if Version(head.Hash().String()) != base {
			return "", ErrConflict
		}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", errors.Wrap(err, "opening worktree")
	}
	if err := util.WriteFile(wt.Filesystem, g.path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "writing document file")
	}
	if _, err := wt.Add(g.path); err != nil {
		return "", errors.Wrap(err, "staging document file")
	}
	sig := g.committer
	sig.When = time.Now()
	commit, err := wt.Commit(commitMessage, &git.CommitOptions{Author: &sig})
	if err != nil {
		return "", errors.Wrap(err, "committing document")
	}
	err = repo.PushContext(ctx, &git.PushOptions{Auth: g.auth()})
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
		return Version(commit.String()), nil
	case strings.Contains(err.Error(), "non-fast-forward"):
		return "", ErrConflict
	default:
		return "", errors.Wrap(ErrUnavailable, err.Error())
	}
}

// initEmpty prepares a repository for the first write against an empty
// remote.
func (g *GitStore) initEmpty() (*git.Repository, error) {
	repo, err := git.InitWithOptions(memory.NewStorage(), memfs.New(), git.InitOptions{
		DefaultBranch: plumbing.Master,
	})
	if err != nil {
		return nil, errors.Wrap(err, "initializing repository")
	}
	if _, err := repo.CreateRemote(&config.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{g.url},
	}); err != nil {
		return nil, errors.Wrap(err, "configuring remote")
	}
	return repo, nil
}
