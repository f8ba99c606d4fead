package policy

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sailbuild/sail/internal/syspath"
)

type staticFileLister struct{ files []string }

func (s staticFileLister) ListFiles(syspath.AbsoluteSystemPath) ([]string, error) {
	return s.files, nil
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	assert.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRunReportsSuccessAndFailure(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "clean.txt", "no trailing space\n")
	writeTestFile(t, dir, "dirty.txt", "trailing space   \n")

	root := syspath.AbsoluteSystemPathFromUpstream(dir)
	engine := New(root, staticFileLister{files: []string{"clean.txt", "dirty.txt"}},
		[]Instance{{Policy: NoTrailingWhitespace}}, nil)

	report, err := engine.Run(context.Background(), false)
	assert.NoError(t, err)
	assert.Equal(t, report.FilesChecked, 2)

	var failures int
	for _, fr := range report.Reports {
		if _, ok := fr.Result.(Failure); ok {
			failures++
			assert.Equal(t, fr.File, "dirty.txt")
		}
	}
	assert.Equal(t, failures, 1)
}

func TestRunFixResolvesAutoFixableFailure(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "dirty.txt", "trailing space   \n")

	root := syspath.AbsoluteSystemPathFromUpstream(dir)
	engine := New(root, staticFileLister{files: []string{"dirty.txt"}},
		[]Instance{{Policy: NoTrailingWhitespace}}, nil)
	engine.Confirm = AlwaysConfirm

	report, err := engine.Run(context.Background(), true)
	assert.NoError(t, err)
	assert.Equal(t, len(report.Reports), 1)

	fixResult, ok := report.Reports[0].Result.(FixResult)
	if !ok {
		t.Fatalf("expected a FixResult, got %#v", report.Reports[0].Result)
	}
	if !fixResult.Fixed {
		t.Fatal("expected the resolver to report a fix")
	}

	raw, err := os.ReadFile(filepath.Join(dir, "dirty.txt"))
	assert.NoError(t, err)
	assert.Equal(t, string(raw), "trailing space\n")
}

func TestExcludeFilesSkipsMatchedPath(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "dist/bundle.js", "trailing space   \n")

	root := syspath.AbsoluteSystemPathFromUpstream(dir)
	engine := New(root, staticFileLister{files: []string{"dist/bundle.js"}},
		[]Instance{{Policy: NoTrailingWhitespace}}, nil)

	report, err := engine.Run(context.Background(), false)
	assert.NoError(t, err)
	assert.Equal(t, report.FilesChecked, 0)
	assert.Equal(t, report.FilesExcluded, 1)
}

func TestRequireLicenseHeaderIsCheckOnly(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.go", "package main\n")

	root := syspath.AbsoluteSystemPathFromUpstream(dir)
	policy := RequireLicenseHeader{Header: "Copyright Example Corp"}.Policy(regexp.MustCompile(`\.go$`), nil)

	engine := New(root, staticFileLister{files: []string{"main.go"}}, []Instance{{Policy: policy}}, nil)
	report, err := engine.Run(context.Background(), true)
	assert.NoError(t, err)

	failure, ok := report.Reports[0].Result.(Failure)
	if !ok {
		t.Fatalf("expected Failure, got %#v", report.Reports[0].Result)
	}
	if failure.AutoFixable {
		t.Fatal("license-header policy should not claim to be auto-fixable")
	}
}
