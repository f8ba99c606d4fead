package cmd

import (
	"reflect"
	"testing"

	"github.com/sailbuild/sail/internal/cmdutil"
	"github.com/sailbuild/sail/internal/signals"
)

func TestDefaultCmd(t *testing.T) {
	testCases := []struct {
		name         string
		args         []string
		defaultAdded bool
	}{
		{
			name:         "explicit build task",
			args:         []string{"build", "build"},
			defaultAdded: false,
		},
		{
			name:         "empty args",
			args:         []string{},
			defaultAdded: true,
		},
		{
			name:         "root help",
			args:         []string{"--help"},
			defaultAdded: false,
		},
		{
			name:         "build help",
			args:         []string{"build", "--help"},
			defaultAdded: false,
		},
		{
			name:         "version",
			args:         []string{"--version"},
			defaultAdded: false,
		},
		{
			name:         "scan is not the default",
			args:         []string{"scan"},
			defaultAdded: false,
		},
		{
			name:         "heap profile flag with a bare task",
			args:         []string{"--heap", "my-heap-profile", "some-task", "--cpuprofile", "my-profile"},
			defaultAdded: true,
		},
	}
	for _, tc := range testCases {
		args := tc.args
		t.Run(tc.name, func(t *testing.T) {
			signalWatcher := signals.NewWatcher()
			helper := cmdutil.NewHelper("test-version")
			root := getCmd(helper, signalWatcher)
			resolved := resolveArgs(root, args)
			defaultAdded := !reflect.DeepEqual(args, resolved)
			if defaultAdded != tc.defaultAdded {
				t.Errorf("Default command added got %v, want %v", defaultAdded, tc.defaultAdded)
			}
		})
	}
}

func TestPolicySubcommandsRegistered(t *testing.T) {
	signalWatcher := signals.NewWatcher()
	helper := cmdutil.NewHelper("test-version")
	root := getCmd(helper, signalWatcher)

	policyCmd, _, err := root.Find([]string{"policy"})
	if err != nil {
		t.Fatalf("expected a policy command: %v", err)
	}
	if len(policyCmd.Commands()) != 2 {
		t.Fatalf("expected 2 policy subcommands, got %d", len(policyCmd.Commands()))
	}

	for _, name := range []string{"check", "fix"} {
		if _, _, err := root.Find([]string{"policy", name}); err != nil {
			t.Errorf("expected policy %s to be registered: %v", name, err)
		}
	}
}
