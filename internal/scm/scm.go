// Package scm abstracts operations on various tools like git.
// Currently, only git is supported.
//
// Adapted from https://github.com/thought-machine/please/tree/master/src/scm
// Copyright Thought Machine, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0
package scm

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/sailbuild/sail/internal/syspath"
)

// ErrFallback is returned by NewFallback when no .git directory was found
// and the caller is getting a stub implementation instead.
var ErrFallback = errors.New("cannot find a .git folder. Falling back to manual file hashing (which may be slower). If you are running this build in a pruned directory, you can ignore this message. Otherwise, please initialize a git repository in the root of your monorepo")

// SCM abstracts the source control queries Sail needs: change detection for
// incremental hashing, and tracked-file enumeration for the policy engine's
// file walk.
type SCM interface {
	// ChangedFiles returns paths, relative to relativeTo, that differ between
	// fromCommit and the working tree (including untracked files). An empty
	// fromCommit compares only the working tree against the index.
	ChangedFiles(fromCommit string, relativeTo string) ([]string, error)
	// TrackedFiles lists every git-tracked file under relativeTo, relative to
	// relativeTo. Used by the policy engine to walk only files git knows about.
	TrackedFiles(relativeTo string) ([]string, error)
}

// New returns a new SCM instance for this repo root, or nil if repoRoot isn't
// a git repository.
func New(repoRoot syspath.AbsoluteSystemPath) SCM {
	if _, err := os.Stat(filepath.Join(repoRoot.ToString(), ".git")); err == nil {
		return &git{repoRoot: repoRoot}
	}
	return nil
}

// NewFallback returns a new SCM instance for this repo root. If there is no
// known implementation it returns a stub along with ErrFallback so callers
// can warn and degrade gracefully.
func NewFallback(repoRoot syspath.AbsoluteSystemPath) (SCM, error) {
	if found := New(repoRoot); found != nil {
		return found, nil
	}

	return &stub{}, ErrFallback
}

// FromInRepo finds the repository root by walking up from cwd looking for a
// .git directory, then returns an SCM (or fallback stub) rooted there.
func FromInRepo(cwd syspath.AbsoluteSystemPath) (SCM, error) {
	dotGitDir, err := cwd.Findup(".git")
	if err != nil {
		return nil, err
	}
	return NewFallback(dotGitDir.Dir())
}
