package cmd

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sailbuild/sail/internal/cmdutil"
	"github.com/sailbuild/sail/internal/errs"
	"github.com/sailbuild/sail/internal/policy"
	"github.com/sailbuild/sail/internal/scm"
)

// policyOpts holds the flags shared by `sail policy check` and `sail policy fix`.
type policyOpts struct {
	yes bool
}

func (o *policyOpts) addFlags(flags *pflag.FlagSet) {
	flags.BoolVar(&o.yes, "yes", false, "Apply every auto-fixable fix without prompting")
}

// newPolicyCommand builds the `sail policy` command group: `check` runs the
// registry read-only, `fix` additionally invokes each auto-fixable
// policy's resolver (spec.md §4.7).
func newPolicyCommand(helper *cmdutil.Helper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Check (and optionally fix) repo files against the registered policies",
	}
	cmd.AddCommand(newPolicyCheckCommand(helper))
	cmd.AddCommand(newPolicyFixCommand(helper))
	return cmd
}

func newPolicyCheckCommand(helper *cmdutil.Helper) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report every file that violates a registered policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := helper.GetCmdBase(cmd.Flags())
			if err != nil {
				return err
			}
			return runPolicy(base, false, false)
		},
	}
}

func newPolicyFixCommand(helper *cmdutil.Helper) *cobra.Command {
	opts := &policyOpts{}
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Check every registered policy, applying auto-fixable resolvers",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := helper.GetCmdBase(cmd.Flags())
			if err != nil {
				return err
			}
			return runPolicy(base, true, opts.yes)
		},
	}
	opts.addFlags(cmd.Flags())
	return cmd
}

// defaultRegistry is the set of policies shipped with sail. A real
// deployment would load additional instances from sail.json; the
// built-ins are enough to exercise the full engine end to end.
func defaultRegistry() []policy.Instance {
	return []policy.Instance{
		{Policy: policy.NoTrailingWhitespace},
		{Policy: policy.RequireLicenseHeader{Header: "Copyright"}.Policy(regexp.MustCompile(`\.go$`), nil)},
	}
}

func runPolicy(base *cmdutil.CmdBase, resolve, yes bool) error {
	files, scmErr := scm.FromInRepo(base.RepoRoot)
	var lister policy.FileLister
	if scmErr != nil {
		base.LogWarning("policy file-set", scmErr)
		lister = policy.WalkFileLister{}
	} else {
		lister = policy.SCMFileLister{SCM: files}
	}

	engine := policy.New(base.RepoRoot, lister, defaultRegistry(), base.Logger)
	if resolve {
		if yes {
			engine.Confirm = policy.AlwaysConfirm
		} else {
			engine.Confirm = policy.InteractiveConfirm
		}
	}

	report, err := engine.Run(context.Background(), resolve)
	if err != nil {
		return errs.Wrap(errs.KindPolicy, err, "running policy engine")
	}

	base.UI.Output(fmt.Sprintf("checked %d file(s), excluded %d", report.FilesChecked, report.FilesExcluded))
	for _, fr := range report.Reports {
		switch result := fr.Result.(type) {
		case policy.Failure:
			base.UI.Warn(fmt.Sprintf("FAIL %s [%s]: %s", fr.File, fr.Policy, result.Message))
		case policy.FixFailed:
			base.UI.Warn(fmt.Sprintf("FAIL %s [%s]: fix did not resolve: %s", fr.File, fr.Policy, result.Message))
		case policy.FixResult:
			if result.Fixed {
				base.UI.Output(fmt.Sprintf("FIXED %s [%s]: %s", fr.File, fr.Policy, result.Message))
			}
		}
	}

	if report.Failed() {
		return errs.New(errs.KindPolicy, fmt.Sprintf("%d file(s) failed policy checks", countFailures(report)))
	}
	return nil
}

func countFailures(report *policy.Report) int {
	n := 0
	for _, fr := range report.Reports {
		switch fr.Result.(type) {
		case policy.Failure, policy.FixFailed:
			n++
		}
	}
	return n
}
