// Adapted from https://github.com/thought-machine/please/tree/master/src/scm
// Copyright Thought Machine, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0
package scm

// stub is used when no supported SCM is detected. It reports no changed
// files and no tracked files, since there's no history to ask.
type stub struct{}

func (s *stub) ChangedFiles(fromCommit string, relativeTo string) ([]string, error) {
	return nil, nil
}

func (s *stub) TrackedFiles(relativeTo string) ([]string, error) {
	return nil, nil
}
