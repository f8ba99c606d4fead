// Package policy implements Repopo: a regex-matched, parallel-across-files
// policy engine that walks a repository's tracked files and runs a
// registered set of checks (and, in fix mode, resolvers) against the
// subset each policy's Match pattern accepts (spec.md §4.7).
package policy

import (
	"fmt"
	"regexp"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/sailbuild/sail/internal/syspath"
)

// Result is the outcome of running a single (file, policy) pair. The
// concrete type distinguishes pass/fail/fixed; Result values are never
// compared by interface equality, only by type switch.
type Result interface{ isResult() }

// Success means the file satisfies the policy.
type Success struct{}

func (Success) isResult() {}

// Failure means the file violates the policy. AutoFixable tells the engine
// whether it's worth invoking the policy's Resolver when running in fix
// mode.
type Failure struct {
	Message     string
	AutoFixable bool
}

func (Failure) isResult() {}

// FixResult is returned by a Resolver: whether it actually changed
// anything, for reporting purposes.
type FixResult struct {
	Fixed   bool
	Message string
}

func (FixResult) isResult() {}

// FixFailed means a resolver ran but the handler still reported Failure on
// recheck - the fix didn't stick.
type FixFailed struct {
	Message string
}

func (FixFailed) isResult() {}

// Policy is a named, registered check: a match pattern restricting which
// repo-relative paths it applies to, an optional set of gitignore-style
// exclusions layered on top of that match, and the handler (and optional
// resolver) that implement it.
type Policy struct {
	Name         string
	Describe     string
	Match        *regexp.Regexp
	ExcludeFiles []string
	Handler      Handler
	Resolver     Handler
}

// Instance is one configured occurrence of a Policy in a registry - the
// same Policy implementation can be registered more than once with
// different Config (e.g. one "require-license-header" policy instance per
// license text).
type Instance struct {
	Policy Policy
	Config map[string]interface{}
}

// excludeMatcher lazily compiles an Instance's ExcludeFiles patterns; a
// Policy with no exclusions always matches nothing.
func (in Instance) excludeMatcher() *gitignore.GitIgnore {
	if len(in.Policy.ExcludeFiles) == 0 {
		return nil
	}
	return gitignore.CompileIgnoreLines(in.Policy.ExcludeFiles...)
}

// appliesTo reports whether this Instance's policy governs file (repo
// relative, forward-slash separated).
func (in Instance) appliesTo(file string) bool {
	if in.Policy.Match == nil || !in.Policy.Match.MatchString(file) {
		return false
	}
	if m := in.excludeMatcher(); m != nil && m.MatchesPath(file) {
		return false
	}
	return true
}

// HandlerArgs is what a Handler or Resolver receives for one (file,
// policy) pair.
type HandlerArgs struct {
	File    string
	Root    syspath.AbsoluteSystemPath
	Resolve bool
	Config  map[string]interface{}
}

func (a HandlerArgs) absPath() syspath.AbsoluteSystemPath {
	return a.Root.UntypedJoin(a.File)
}

// AbsPath resolves this handler invocation's file against Root.
func (a HandlerArgs) AbsPath() syspath.AbsoluteSystemPath { return a.absPath() }

// errUnknownHandlerShape is returned when a Handler value is neither
// flavor the engine knows how to drive.
func errUnknownHandlerShape(h Handler) error {
	return fmt.Errorf("policy: handler is neither Direct nor Cooperative (got %T)", h)
}
