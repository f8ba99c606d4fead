// Package config loads and binds Sail's build configuration: the
// workspace-level sail.json file, CLI flags, and SAIL_* environment
// variables, merged through viper the way the rest of this stack's CLIs do.
package config

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/muhammadmuzzammil1998/jsonc"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sailbuild/sail/internal/errs"
	"github.com/sailbuild/sail/internal/manifest"
	"github.com/sailbuild/sail/internal/syspath"
)

// EnvPrefix is the prefix viper uses to bind SAIL_* environment variables
// onto configuration keys (e.g. SAIL_CACHE_DIR -> cacheOptions.dir).
const EnvPrefix = "SAIL"

// LoadBuildConfig reads and parses the sail.json file at path. The file may
// contain // line comments and /* block */ comments; jsonc strips them
// before the result is read into viper and decoded with mapstructure.
func LoadBuildConfig(path syspath.AbsoluteSystemPath) (*manifest.BuildConfig, error) {
	raw, err := path.ReadFile()
	if err != nil {
		return nil, errs.IO(err, "could not read %s", path.ToString())
	}

	stripped := jsonc.ToJSON(raw)

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(strings.NewReader(string(stripped))); err != nil {
		return nil, errs.Config("could not parse %s: %v", path.ToString(), err)
	}

	bindEnvAndFlags(v)

	var cfg manifest.BuildConfig
	decodeErr := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
	)))
	if decodeErr != nil {
		return nil, errs.Config("could not decode %s: %v", path.ToString(), decodeErr)
	}
	if cfg.Tasks == nil {
		cfg.Tasks = map[string]manifest.TaskDefinition{}
	}
	return &cfg, nil
}

// bindEnvAndFlags wires SAIL_* environment variables onto the same viper
// instance the config file was read into, so an env var can override a
// value read from disk without a second merge pass. No flags are bound here.
func bindEnvAndFlags(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("cacheOptions.dir", "SAIL_CACHE_DIR")
}

// BindFlags registers the subset of build config fields that are also
// exposed as CLI flags, letting a flag value win over both the env and the
// file when all three are present.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	return v.BindPFlags(flags)
}
