package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/krrrr38/github-2-github/pkg/model"
	"github.com/krrrr38/github-2-github/pkg/utils"
)

// ErrAborted is returned when the user interrupts a prompt
var ErrAborted = errors.New("aborted by user")

const previewLines = 10

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"})
)

// Prompter asks yes/no questions on the terminal
type Prompter struct {
	out     io.Writer
	confirm func(title string) (bool, error)
}

func New(out io.Writer) *Prompter {
	if out == nil {
		out = os.Stdout
	}
	return &Prompter{out: out, confirm: runConfirm}
}

func runConfirm(title string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, ErrAborted
		}
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return ok, nil
}

// ConfirmPullRequest shows a summary of the pull request and asks whether to import it
func (p *Prompter) ConfirmPullRequest(pr *model.Item) (bool, error) {
	fmt.Fprintln(p.out, RenderSummary(pr))
	return p.confirm(fmt.Sprintf("Import PR #%d?", pr.Number))
}

// ConfirmOrphanRecovery asks whether to recreate a pull request for an existing branch
func (p *Prompter) ConfirmOrphanRecovery(branch string, number int) (bool, error) {
	return p.confirm(fmt.Sprintf("Branch %s has no pull request. Recreate PR for #%d?", branch, number))
}

func (p *Prompter) ConfirmBranchDeletion(branch string) (bool, error) {
	return p.confirm(fmt.Sprintf("Delete remote branch %s?", branch))
}

// RenderSummary formats a pull request for review before import
func RenderSummary(pr *model.Item) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("#%d %s", pr.Number, pr.Title)))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("author: @%s  head: %s", pr.Author, pr.HeadRef)))
	if labels := utils.Dedupe(pr.Labels); len(labels) > 0 {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("labels: " + strings.Join(labels, ", ")))
	}
	body := strings.TrimSpace(pr.Body)
	if body != "" {
		lines := strings.Split(body, "\n")
		if len(lines) > previewLines {
			lines = append(lines[:previewLines], "...")
		}
		b.WriteString("\n\n")
		b.WriteString(strings.Join(lines, "\n"))
	}
	return boxStyle.Render(b.String())
}
