package manifest

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestUnmarshalPackagePreservesUnknownFields(t *testing.T) {
	data := []byte(`{
		"name": "@sail/widgets",
		"version": "1.2.3",
		"scripts": {"build": "tsc"},
		"homepage": "https://example.com/widgets"
	}`)

	pkg, err := UnmarshalPackage(data)
	assert.NilError(t, err)
	assert.Equal(t, pkg.Name, "@sail/widgets")
	assert.Equal(t, pkg.Scripts["build"], "tsc")
	assert.Equal(t, pkg.RawJSON["homepage"], "https://example.com/widgets")

	out, err := MarshalPackage(pkg)
	assert.NilError(t, err)

	roundTripped, err := UnmarshalPackage(out)
	assert.NilError(t, err)
	assert.Equal(t, roundTripped.Name, pkg.Name)
	assert.Equal(t, roundTripped.RawJSON["homepage"], "https://example.com/widgets")
}

func TestTaskDefinitionDefaults(t *testing.T) {
	def := TaskDefinition{}
	assert.Equal(t, def.CacheEnabled(), true)
	assert.Equal(t, def.IntrinsicWeight(), 1)

	cacheOff := false
	def.Cache = &cacheOff
	def.Weight = 5
	assert.Equal(t, def.CacheEnabled(), false)
	assert.Equal(t, def.IntrinsicWeight(), 5)
}
