// Package cmdutil holds functionality to run sail via cobra. That includes flag
// parsing and configuration of components common to all subcommands.
package cmdutil

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/pflag"

	"github.com/sailbuild/sail/internal/config"
	"github.com/sailbuild/sail/internal/fs"
	"github.com/sailbuild/sail/internal/manifest"
	"github.com/sailbuild/sail/internal/syspath"
	"github.com/sailbuild/sail/internal/ui"
)

const (
	// _envLogLevel is the environment log level
	_envLogLevel = "SAIL_LOG_LEVEL"
	// _configFileName is the build manifest sail reads from the repo root.
	_configFileName = "sail.json"
)

// Helper is a struct used to hold configuration values passed via flag, env vars,
// config files, etc. It is not intended for direct use by sail commands, it drives
// the creation of CmdBase, which is then used by the commands themselves.
type Helper struct {
	// SailVersion is the version of sail that is currently executing
	SailVersion string

	// for UI
	forceColor bool
	noColor    bool
	// for logging
	verbosity int

	rawRepoRoot string

	cleanupsMu sync.Mutex
	cleanups   []io.Closer
}

// RegisterCleanup saves a function to be run after sail execution,
// even if the command that runs returns an error.
func (h *Helper) RegisterCleanup(cleanup io.Closer) {
	h.cleanupsMu.Lock()
	defer h.cleanupsMu.Unlock()
	h.cleanups = append(h.cleanups, cleanup)
}

// Cleanup runs the registered cleanup handlers. It requires the flags
// to the root command so that it can construct a UI if necessary.
func (h *Helper) Cleanup(flags *pflag.FlagSet) {
	h.cleanupsMu.Lock()
	defer h.cleanupsMu.Unlock()
	var terminal cli.Ui
	for _, cleanup := range h.cleanups {
		if err := cleanup.Close(); err != nil {
			if terminal == nil {
				terminal = h.getUI(flags)
			}
			terminal.Warn(fmt.Sprintf("failed cleanup: %v", err))
		}
	}
}

func (h *Helper) getUI(flags *pflag.FlagSet) cli.Ui {
	colorMode := ui.GetColorModeFromEnv()
	if flags.Changed("no-color") && h.noColor {
		colorMode = ui.ColorModeSuppressed
	}
	if flags.Changed("color") && h.forceColor {
		colorMode = ui.ColorModeForced
	}
	return ui.BuildColoredUi(colorMode)
}

func (h *Helper) getLogger() (hclog.Logger, error) {
	var level hclog.Level
	switch h.verbosity {
	case 0:
		if v := os.Getenv(_envLogLevel); v != "" {
			level = hclog.LevelFromString(v)
			if level == hclog.NoLevel {
				return nil, fmt.Errorf("%s value %q is not a valid log level", _envLogLevel, v)
			}
		} else {
			level = hclog.NoLevel
		}
	case 1:
		level = hclog.Info
	case 2:
		level = hclog.Debug
	case 3:
		level = hclog.Trace
	default:
		level = hclog.Trace
	}
	// Default output is nowhere unless we enable logging.
	output := ioutil.Discard
	logColor := hclog.ColorOff
	if level != hclog.NoLevel {
		output = os.Stderr
		logColor = hclog.AutoColor
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   "sail",
		Level:  level,
		Color:  logColor,
		Output: output,
	}), nil
}

// AddFlags adds common flags for all sail commands to the given flagset and binds
// them to this instance of Helper.
func (h *Helper) AddFlags(flags *pflag.FlagSet) {
	flags.BoolVar(&h.forceColor, "color", false, "Force color usage in the terminal")
	flags.BoolVar(&h.noColor, "no-color", false, "Suppress color usage in the terminal")
	flags.CountVarP(&h.verbosity, "verbosity", "v", "verbosity")
	flags.StringVar(&h.rawRepoRoot, "cwd", "", "The directory in which to run sail")
}

// NewHelper returns a new helper instance to hold configuration values for the
// root sail command.
func NewHelper(sailVersion string) *Helper {
	return &Helper{
		SailVersion: sailVersion,
	}
}

// resolveRepoRoot resolves the --cwd flag (or the process cwd, if unset) to an
// absolute, symlink-resolved path.
func resolveRepoRoot(rawRepoRoot string) (syspath.AbsoluteSystemPath, error) {
	cwd, err := fs.GetCwd()
	if err != nil {
		return "", err
	}

	var candidate syspath.AbsoluteSystemPath
	if rawRepoRoot == "" {
		candidate = cwd
	} else if filepath.IsAbs(rawRepoRoot) {
		candidate = syspath.AbsoluteSystemPathFromUpstream(rawRepoRoot)
	} else {
		candidate = cwd.UntypedJoin(rawRepoRoot)
	}

	resolved, err := filepath.EvalSymlinks(candidate.ToString())
	if err != nil {
		return "", err
	}
	return syspath.AbsoluteSystemPathFromUpstream(resolved), nil
}

// GetCmdBase returns a CmdBase instance configured with values from this helper.
func (h *Helper) GetCmdBase(flags *pflag.FlagSet) (*CmdBase, error) {
	// terminal is for color/no-color output
	terminal := h.getUI(flags)

	// logger is configured with verbosity level using --verbosity flag from end users
	logger, err := h.getLogger()
	if err != nil {
		return nil, err
	}

	repoRoot, err := resolveRepoRoot(h.rawRepoRoot)
	if err != nil {
		return nil, err
	}

	buildConfig, err := config.LoadBuildConfig(repoRoot.UntypedJoin(_configFileName))
	if err != nil {
		return nil, err
	}

	return &CmdBase{
		UI:          terminal,
		Logger:      logger,
		RepoRoot:    repoRoot,
		BuildConfig: buildConfig,
		SailVersion: h.SailVersion,
	}, nil
}

// CmdBase encompasses configured components common to all sail commands.
type CmdBase struct {
	UI          cli.Ui
	Logger      hclog.Logger
	RepoRoot    syspath.AbsoluteSystemPath
	BuildConfig *manifest.BuildConfig
	SailVersion string
}

// LogError prints an error to the UI
func (b *CmdBase) LogError(format string, args ...interface{}) {
	err := fmt.Errorf(format, args...)
	b.Logger.Error("error", err)
	b.UI.Error(fmt.Sprintf("%s%s", ui.ERROR_PREFIX, color.RedString(" %v", err)))
}

// LogWarning logs an error and outputs it to the UI.
func (b *CmdBase) LogWarning(prefix string, err error) {
	b.Logger.Warn(prefix, "warning", err)

	if prefix != "" {
		prefix = " " + prefix + ": "
	}

	b.UI.Warn(fmt.Sprintf("%s%s%s", ui.WARNING_PREFIX, prefix, color.YellowString(" %v", err)))
}

// LogInfo logs an message and outputs it to the UI.
func (b *CmdBase) LogInfo(msg string) {
	b.Logger.Info(msg)
	b.UI.Info(fmt.Sprintf("%s%s", ui.InfoPrefix, color.WhiteString(" %v", msg)))
}
