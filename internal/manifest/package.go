// Package manifest describes a single package's on-disk manifest (sail.json's
// sibling file, conventionally package.json) and the workspace-level build
// configuration that governs how its tasks are scheduled and cached.
package manifest

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/sailbuild/sail/internal/syspath"
)

// Package is a single workspace package's parsed manifest, together with the
// bookkeeping Sail attaches to it during discovery. Identity is Name; it is
// immutable after discovery completes.
type Package struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Scripts              map[string]string `json:"scripts"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	ReleaseGroup         string            `json:"releaseGroup,omitempty"`
	Private              bool              `json:"private"`

	// RawJSON is the exact JSON object on disk, including fields this struct
	// doesn't know about. Struct fields take priority over raw fields when
	// marshalling back out (see MarshalPackage).
	RawJSON map[string]interface{} `json:"-"`

	// PackageManifestPath is the repo-relative path to this package's manifest file.
	PackageManifestPath syspath.AnchoredSystemPath `json:"-"`
	// Dir is the repo-relative path to the package's directory.
	Dir syspath.AnchoredSystemPath `json:"-"`

	// WorkspaceDeps is the set of sibling package names this package
	// depends on, resolved during discovery from Dependencies +
	// DevDependencies + OptionalDependencies against the workspace catalog.
	WorkspaceDeps []string `json:"-"`

	// Mu guards mutable bookkeeping attached to the package during a build
	// (e.g. a memoized external-dependency hash).
	Mu               sync.Mutex `json:"-"`
	ExternalDepsHash string     `json:"-"`
}

// ReadPackage parses a package manifest file at the given absolute path.
func ReadPackage(path syspath.AbsoluteSystemPath) (*Package, error) {
	b, err := path.ReadFile()
	if err != nil {
		return nil, err
	}
	return UnmarshalPackage(b)
}

// UnmarshalPackage decodes a byte slice into a Package, retaining unknown
// fields in RawJSON so a later MarshalPackage round-trips them.
func UnmarshalPackage(data []byte) (*Package, error) {
	var rawJSON map[string]interface{}
	if err := json.Unmarshal(data, &rawJSON); err != nil {
		return nil, err
	}

	pkg := &Package{}
	if err := json.Unmarshal(data, pkg); err != nil {
		return nil, err
	}
	pkg.RawJSON = rawJSON

	return pkg, nil
}

// MarshalPackage serializes a Package back to its on-disk JSON form, merging
// known struct fields over the raw document so round-tripping an
// unrecognized manifest field never loses it.
func MarshalPackage(pkg *Package) ([]byte, error) {
	structuredContent, err := json.Marshal(pkg)
	if err != nil {
		return nil, err
	}
	var structuredFields map[string]interface{}
	if err := json.Unmarshal(structuredContent, &structuredFields); err != nil {
		return nil, err
	}

	fieldsToSerialize := make(map[string]interface{}, len(pkg.RawJSON))
	for key, value := range pkg.RawJSON {
		fieldsToSerialize[key] = value
	}
	for key, value := range structuredFields {
		if isEmpty(value) {
			delete(fieldsToSerialize, key)
		} else {
			fieldsToSerialize[key] = value
		}
	}

	var b bytes.Buffer
	encoder := json.NewEncoder(&b)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fieldsToSerialize); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func isEmpty(value interface{}) bool {
	if value == nil {
		return true
	}
	switch s := value.(type) {
	case string:
		return s == ""
	case bool:
		return !s
	case []string:
		return len(s) == 0
	case map[string]interface{}:
		return len(s) == 0
	default:
		return false
	}
}
