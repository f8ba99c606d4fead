package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sailbuild/sail/internal/cmdutil"
	"github.com/sailbuild/sail/internal/workspace"
)

// newScanCommand builds the `sail scan` subcommand: it runs workspace
// discovery and prints the resolved package catalog, without preparing or
// running any task graph.
func newScanCommand(helper *cmdutil.Helper) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Discover the workspace and print its package catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := helper.GetCmdBase(cmd.Flags())
			if err != nil {
				return err
			}
			return runScan(base)
		},
	}
}

func runScan(base *cmdutil.CmdBase) error {
	project, err := workspace.Discover(base.RepoRoot)
	if err != nil {
		return err
	}

	base.UI.Output(fmt.Sprintf("root: %s (%s)", project.Root.ToString(), project.ConfigurationSource))
	names := project.Packages.Names()
	base.UI.Output(fmt.Sprintf("packages: %d", len(names)))
	for _, name := range names {
		pkg := project.Packages.Packages[name]
		deps := append([]string(nil), pkg.WorkspaceDeps...)
		sort.Strings(deps)
		base.UI.Output(fmt.Sprintf("  %s %s deps=%v", name, pkg.Dir.ToString(), deps))
	}

	groupNames := make([]string, 0, len(project.ReleaseGroups))
	for name := range project.ReleaseGroups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)
	for _, name := range groupNames {
		group := project.ReleaseGroups[name]
		members := append([]string(nil), group.Packages...)
		sort.Strings(members)
		base.UI.Output(fmt.Sprintf("release group %s: %v", name, members))
	}
	return nil
}
