package policy

import (
	"bytes"
	"context"
	"os"
	"regexp"
)

// NoTrailingWhitespace flags (and, in fix mode, strips) trailing
// whitespace on every line of every tracked text file. It is registered
// as a Cooperative handler/resolver pair so the engine exercises both
// dispatch flavors out of the box.
var NoTrailingWhitespace = Policy{
	Name:         "no-trailing-whitespace",
	Describe:     "lines must not end in trailing whitespace",
	Match:        regexp.MustCompile(`.*`),
	ExcludeFiles: []string{"**/*.png", "**/*.jpg", "**/*.gif", "**/*.lock", "**/dist/**"},
	Handler:      CooperativeHandlerFunc(checkTrailingWhitespace),
	Resolver:     CooperativeHandlerFunc(fixTrailingWhitespace),
}

var trailingWhitespaceRe = regexp.MustCompile(`[ \t]+\n`)

func checkTrailingWhitespace(ctx context.Context, args HandlerArgs) (Result, error) {
	defer func() { _ = ctx.Err() }() // deterministic cleanup point even if the caller cancels mid-read

	raw, err := os.ReadFile(args.AbsPath().ToString())
	if err != nil {
		return nil, err
	}
	if isBinary(raw) {
		return Success{}, nil
	}
	if trailingWhitespaceRe.Match(raw) {
		return Failure{Message: "trailing whitespace found", AutoFixable: true}, nil
	}
	return Success{}, nil
}

func fixTrailingWhitespace(ctx context.Context, args HandlerArgs) (Result, error) {
	path := args.AbsPath()
	raw, err := os.ReadFile(path.ToString())
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	cleaned := trailingWhitespaceRe.ReplaceAll(raw, []byte("\n"))
	if bytes.Equal(cleaned, raw) {
		return FixResult{Fixed: false}, nil
	}
	info, err := os.Stat(path.ToString())
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path.ToString(), cleaned, info.Mode()); err != nil {
		return nil, err
	}
	return FixResult{Fixed: true, Message: "stripped trailing whitespace"}, nil
}

func isBinary(raw []byte) bool {
	if len(raw) > 8000 {
		raw = raw[:8000]
	}
	return bytes.ContainsRune(raw, 0)
}

// RequireLicenseHeader fails any matched file whose contents don't contain
// Header anywhere in the file. It has no resolver - inserting a correct license
// header automatically is judged too risky to auto-apply, so this policy
// is check-only (AutoFixable stays false).
type RequireLicenseHeader struct {
	Header string
}

// Policy builds the Policy value for this check, scoped to match with the
// given exclusions.
func (r RequireLicenseHeader) Policy(match *regexp.Regexp, excludeFiles []string) Policy {
	return Policy{
		Name:         "require-license-header",
		Describe:     "file must start with the configured license header",
		Match:        match,
		ExcludeFiles: excludeFiles,
		Handler:      DirectHandlerFunc(r.check),
	}
}

func (r RequireLicenseHeader) check(_ context.Context, args HandlerArgs) (Result, error) {
	raw, err := os.ReadFile(args.AbsPath().ToString())
	if err != nil {
		return nil, err
	}
	if !bytes.Contains(raw, []byte(r.Header)) {
		return Failure{Message: "missing required license header", AutoFixable: false}, nil
	}
	return Success{}, nil
}
