package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"
)

const (
	defaultBugLabel      = "bug"
	defaultAffectsPrefix = "affects/"
	githubPerPage        = 100
)

// GitHubOptions configures a GitHub issues tracker.
type GitHubOptions struct {
	Owner string
	Repo  string
	Token string
	// BaseURL overrides the API endpoint, for GitHub Enterprise or tests.
	BaseURL string
	// BugLabel selects the issues treated as defects.
	BugLabel string
	// AffectsPrefix marks labels naming an affected release, e.g. "affects/1.2.0".
	AffectsPrefix string
	RateLimit     float64
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// GitHub reads releases and closed bug issues of one repository. Issue keys
// have the form "#123"; the milestone title is the fix release.
type GitHub struct {
	client        *github.Client
	owner         string
	repo          string
	bugLabel      string
	affectsPrefix string
	limiter       *rate.Limiter
	logger        *slog.Logger
}

// NewGitHub creates a GitHub tracker client.
func NewGitHub(opts GitHubOptions) (*GitHub, error) {
	client := github.NewClient(opts.HTTPClient)

	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}

	if opts.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}

		client.BaseURL = base
	}

	g := &GitHub{
		client:        client,
		owner:         opts.Owner,
		repo:          opts.Repo,
		bugLabel:      opts.BugLabel,
		affectsPrefix: opts.AffectsPrefix,
		logger:        opts.Logger,
	}

	if g.bugLabel == "" {
		g.bugLabel = defaultBugLabel
	}

	if g.affectsPrefix == "" {
		g.affectsPrefix = defaultAffectsPrefix
	}

	if g.logger == nil {
		g.logger = slog.Default()
	}

	limit := opts.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}

	g.limiter = rate.NewLimiter(rate.Limit(limit), 1)

	return g, nil
}

// Releases lists published releases by tag name. Drafts are reported as unreleased.
func (g *GitHub) Releases(ctx context.Context) ([]Release, error) {
	opts := &github.ListOptions{PerPage: githubPerPage}

	var releases []Release

	for {
		err := g.limiter.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		page, resp, err := g.client.Repositories.ListReleases(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list releases: %w", err)
		}

		for _, r := range page {
			releases = append(releases, Release{
				Name:     r.GetTagName(),
				Date:     r.GetPublishedAt().Time,
				Released: !r.GetDraft(),
			})
		}

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return releases, nil
}

// Tickets lists closed issues carrying the bug label. Pull requests are skipped.
func (g *GitHub) Tickets(ctx context.Context) ([]Ticket, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "closed",
		Labels:      []string{g.bugLabel},
		Sort:        "created",
		Direction:   "asc",
		ListOptions: github.ListOptions{PerPage: githubPerPage},
	}

	var tickets []Ticket

	for {
		err := g.limiter.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		issues, resp, err := g.client.Issues.ListByRepo(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list issues: %w", err)
		}

		for _, issue := range issues {
			if issue.IsPullRequest() || issue.ClosedAt == nil {
				continue
			}

			tickets = append(tickets, g.ticketFromIssue(issue))
		}

		g.logger.DebugContext(ctx, "fetched issues", "repo", g.owner+"/"+g.repo, "tickets", len(tickets))

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return tickets, nil
}

func (g *GitHub) ticketFromIssue(issue *github.Issue) Ticket {
	ticket := Ticket{
		Key:      fmt.Sprintf("#%d", issue.GetNumber()),
		Created:  issue.GetCreatedAt().Time,
		Resolved: issue.GetClosedAt().Time,
	}

	for _, label := range issue.Labels {
		if name, ok := strings.CutPrefix(label.GetName(), g.affectsPrefix); ok && name != "" {
			ticket.Affected = append(ticket.Affected, name)
		}
	}

	if milestone := issue.GetMilestone().GetTitle(); milestone != "" {
		ticket.Fixed = append(ticket.Fixed, milestone)
	}

	return ticket
}
