package hash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sailbuild/sail/internal/manifest"
	"github.com/sailbuild/sail/internal/syspath"
)

func TestCanonicalHashStableAcrossFieldOrder(t *testing.T) {
	a := CacheKeyInputs{TaskID: "web#build", GlobalHash: "g", InputHashes: []string{"b", "a"}}
	b := CacheKeyInputs{InputHashes: []string{"a", "b"}, GlobalHash: "g", TaskID: "web#build"}

	hashA, err := CanonicalHash(a)
	if err != nil {
		t.Fatalf("CanonicalHash: %v", err)
	}
	hashB, err := CanonicalHash(b)
	if err != nil {
		t.Fatalf("CanonicalHash: %v", err)
	}
	if hashA != hashB {
		t.Errorf("hash differs only by field order and input-hash order: %q vs %q", hashA, hashB)
	}
}

func TestCacheKeyBuilderDeterministic(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "packages", "web")
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, "index.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rootPath := syspath.AbsoluteSystemPathFromUpstream(root)
	fhc := NewFileHashCache()
	builder := NewCacheKeyBuilder(fhc, rootPath, "global-hash-value")

	in := TaskHashInputs{
		TaskID:         "web#build",
		PackagePath:    syspath.AnchoredSystemPath(filepath.Join("packages", "web")),
		Command:        "node index.js",
		TaskDefinition: manifest.TaskDefinition{Outputs: []string{"dist/**"}},
	}

	first, _, err := builder.Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, _, err := builder.Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if first != second {
		t.Errorf("cache key changed across identical builds: %q vs %q", first, second)
	}

	in.Command = "node other.js"
	third, _, err := builder.Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if third == first {
		t.Error("cache key unchanged after command changed")
	}
}

func TestResolveHashedEnvStrictOnlyDeclared(t *testing.T) {
	full := map[string]string{"A": "1", "B": "2"}
	hashed := resolveHashedEnv([]string{"A"}, full, "strict")
	if len(hashed) != 1 || !strings.HasPrefix(hashed[0], "A=") {
		t.Errorf("strict mode should only hash declared vars, got %v", hashed)
	}
	if hashed[0] == "A=1" {
		t.Errorf("strict mode should hash the value, not carry it in the clear: %v", hashed)
	}
}

func TestResolveHashedEnvLooseHashesEverything(t *testing.T) {
	full := map[string]string{"A": "1", "B": "2"}
	hashed := resolveHashedEnv(nil, full, "loose")
	if len(hashed) != 2 {
		t.Errorf("loose mode should hash the full environment, got %v", hashed)
	}
}

func TestResolveHashedEnvWildcardPattern(t *testing.T) {
	full := map[string]string{"NEXT_PUBLIC_URL": "https://example.com", "SECRET": "shh"}
	hashed := resolveHashedEnv([]string{"NEXT_PUBLIC_*"}, full, "infer")
	if len(hashed) != 1 || !strings.HasPrefix(hashed[0], "NEXT_PUBLIC_URL=") {
		t.Errorf("wildcard pattern should resolve matching names only, got %v", hashed)
	}
}
