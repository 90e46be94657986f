package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/krrrr38/github-2-github/pkg/migration"
	"github.com/krrrr38/github-2-github/pkg/model"
	"github.com/krrrr38/github-2-github/pkg/state"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func NewStatusCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what the state file records, without contacting GitHub",
		RunE: func(cmd *cobra.Command, args []string) error {
			global, err := loadGlobal(v, false)
			if err != nil {
				return err
			}
			st, err := state.NewStore(global.StateFile).Load()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(global.StateFile, st))
			return nil
		},
	}
}

func renderStatus(path string, st *state.MigrationState) string {
	sum := st.Summarize()
	lastRun := "never"
	if st.LastRun != nil {
		lastRun = st.LastRun.Format(time.RFC3339)
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("State file: " + path))
	fmt.Fprintf(&b, "\nLast import run: %s", lastRun)
	fmt.Fprintf(&b, "\nIssues: %d imported (%d open, %d closed), %d errored",
		len(st.ImportedIssues), sum.Issues[model.StateOpen], sum.Issues[model.StateClosed], sum.IssueErrors)
	fmt.Fprintf(&b, "\nPull requests: %d imported (%d open, %d closed, %d merged), %d errored",
		len(st.ImportedPRs), sum.PRs[model.StateOpen], sum.PRs[model.StateClosed], sum.PRs[model.StateMerged], sum.PRErrors)
	return panelStyle.Render(b.String())
}

func renderReport(r *migration.Report) string {
	title := "Import summary"
	if r.DryRun {
		title += " (dry run)"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(title))
	fmt.Fprintf(&b, "\nAdopted from destination: %d", r.Adopted)
	fmt.Fprintf(&b, "\nReconciled: %d updated, %d closed, %d evicted, %d errored", r.Updated, r.Closed, r.Evicted, r.Reconcile.Transient)
	fmt.Fprintf(&b, "\nOrphaned branches: %d found, %d recovered", r.OrphansFound, r.OrphansRecovered)
	fmt.Fprintf(&b, "\nNew: %d issues, %d pull requests", r.NewIssues, r.NewPRs)
	if !r.DryRun {
		fmt.Fprintf(&b, "\nIssues: %d imported, %d failed", r.Issues.Success, r.Issues.Fatal)
		fmt.Fprintf(&b, "\nPull requests: %d imported, %d skipped, %d failed", r.PRs.Success, r.PRs.Skipped, r.PRs.Fatal)
	}
	return panelStyle.Render(b.String())
}
