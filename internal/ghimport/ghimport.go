// Package ghimport pulls open GitHub issues into a board's backlog.
package ghimport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/go-github/v68/github"
	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/issue"
	"github.com/zulandar/sprintyard/internal/models"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const (
	perPage  = 100
	maxPages = 10
	maxTitle = 255
)

// issueLister abstracts github.IssuesService.ListByRepo for tests.
type issueLister interface {
	ListByRepo(ctx context.Context, owner, repo string, opts *github.IssueListByRepoOptions) ([]*github.Issue, *github.Response, error)
}

// Opts selects the repository to import from.
type Opts struct {
	Owner  string   `json:"owner"`
	Repo   string   `json:"repo"`
	Labels []string `json:"labels"` // only issues carrying all of these
}

// Result counts what an import did.
type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Importer copies GitHub issues into Sprintyard.
type Importer struct {
	db     *gorm.DB
	issues issueLister
	log    *slog.Logger
}

// New returns an Importer using the GitHub REST API. An empty token makes
// unauthenticated requests, which GitHub rate-limits heavily.
func New(db *gorm.DB, log *slog.Logger, token string) *Importer {
	ctx := context.Background()
	var client *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = github.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		client = github.NewClient(nil)
	}
	return &Importer{db: db, issues: client.Issues, log: log}
}

// ExternalRef is the dedupe key stored on imported issues.
func ExternalRef(owner, repo string, number int) string {
	return fmt.Sprintf("github:%s/%s#%d", owner, repo, number)
}

// Import lists the repository's open issues and creates a backlog issue on
// boardID for each one not already imported. Pull requests are skipped.
func (im *Importer) Import(ctx context.Context, boardID, reporterID uint, opts Opts) (Result, error) {
	var res Result
	if opts.Owner == "" || opts.Repo == "" {
		return res, apperr.Validation("owner and repo are required")
	}

	existing, err := im.existingRefs(boardID, opts)
	if err != nil {
		return res, err
	}

	listOpts := &github.IssueListByRepoOptions{
		State:       "open",
		Labels:      opts.Labels,
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for page := 0; page < maxPages; page++ {
		ghIssues, resp, err := im.issues.ListByRepo(ctx, opts.Owner, opts.Repo, listOpts)
		if err != nil {
			return res, apperr.Unavailable("GitHub issue listing failed", err)
		}
		for _, gi := range ghIssues {
			if gi.IsPullRequest() {
				continue
			}
			ref := ExternalRef(opts.Owner, opts.Repo, gi.GetNumber())
			if existing[ref] {
				res.Skipped++
				continue
			}
			if _, _, err := issue.Create(im.db, toCreateOpts(gi, boardID, reporterID, ref)); err != nil {
				return res, err
			}
			existing[ref] = true
			res.Imported++
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		listOpts.Page = resp.NextPage
	}

	im.log.Info("github import finished", "board_id", boardID, "repo", opts.Owner+"/"+opts.Repo,
		"imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}

func (im *Importer) existingRefs(boardID uint, opts Opts) (map[string]bool, error) {
	var refs []string
	prefix := fmt.Sprintf("github:%s/%s#", opts.Owner, opts.Repo)
	if err := im.db.Model(&models.Issue{}).
		Where("board_id = ? AND external_ref LIKE ?", boardID, prefix+"%").
		Pluck("external_ref", &refs).Error; err != nil {
		return nil, fmt.Errorf("ghimport: existing refs: %w", err)
	}
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		seen[r] = true
	}
	return seen, nil
}

func toCreateOpts(gi *github.Issue, boardID, reporterID uint, ref string) issue.CreateOpts {
	labels := make([]string, 0, len(gi.Labels))
	for _, l := range gi.Labels {
		labels = append(labels, l.GetName())
	}
	desc := gi.GetBody()
	if u := gi.GetHTMLURL(); u != "" {
		if desc != "" {
			desc += "\n\n"
		}
		desc += "Imported from " + u
	}
	return issue.CreateOpts{
		BoardID:     boardID,
		Title:       truncate(gi.GetTitle(), maxTitle),
		Description: desc,
		Type:        TypeFromLabels(labels),
		Priority:    PriorityFromLabels(labels),
		ReporterID:  reporterID,
		ExternalRef: ref,
	}
}

// TypeFromLabels maps bug/epic/story labels to an issue type; anything
// else is a Task.
func TypeFromLabels(labels []string) string {
	for _, l := range labels {
		switch strings.ToLower(strings.TrimSpace(l)) {
		case "bug":
			return models.IssueBug
		case "epic":
			return models.IssueEpic
		case "story", "user story":
			return models.IssueStory
		}
	}
	return models.IssueTask
}

// PriorityFromLabels maps P1..P4 or severity words to a priority. The
// highest priority found wins; the default is P3.
func PriorityFromLabels(labels []string) string {
	best := ""
	for _, l := range labels {
		var p string
		switch strings.ToLower(strings.TrimSpace(l)) {
		case "p1", "critical", "high":
			p = "P1"
		case "p2", "medium":
			p = "P2"
		case "p3":
			p = "P3"
		case "p4", "low":
			p = "P4"
		default:
			continue
		}
		if best == "" || p < best {
			best = p
		}
	}
	if best == "" {
		return "P3"
	}
	return best
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
