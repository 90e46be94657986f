package migration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/krrrr38/github-2-github/pkg/model"
	"github.com/krrrr38/github-2-github/pkg/utils"
)

const (
	importedTitlePrefix = "[Imported] "
	noBody              = "*No original body*"
	noReviewContent     = "*No content*"
)

// markerPattern matches the first line of an imported body
var markerPattern = regexp.MustCompile(`^\*\*Imported from \[([^\]#\s]+)#(\d+)\]`)

func itemBody(sourceRepo string, kind model.ItemKind, item *model.Item) string {
	segment := "issues"
	if kind == model.KindPullRequest {
		segment = "pull"
	}
	body := item.Body
	if body == "" {
		body = noBody
	}
	return fmt.Sprintf("**Imported from [%s#%d](https://github.com/%s/%s/%d)**\n\nOriginal author: @%s\n\n---\n\n%s\n",
		sourceRepo, item.Number, sourceRepo, segment, item.Number, item.Author, body)
}

func commentBody(c *model.Comment) string {
	return fmt.Sprintf("**Imported comment from @%s**\n\n%s", c.Author, c.Body)
}

func reviewBody(r *model.Review) string {
	body := r.Body
	if body == "" {
		body = noReviewContent
	}
	return fmt.Sprintf("**Imported review by @%s**\n\nState: %s\n\n%s", r.Author, r.State, body)
}

func issueLabels(marker string, labels []string) []string {
	return utils.Dedupe(append([]string{marker}, labels...))
}

// parseMarker returns the source repository and number recorded in an imported body
func parseMarker(body string) (string, int, bool) {
	m := markerPattern.FindStringSubmatch(utils.FirstLine(body))
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], n, true
}

// branchNumber extracts N from "{prefix}-N"
func branchNumber(prefix, branch string) (int, bool) {
	suffix, ok := strings.CutPrefix(branch, prefix+"-")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
