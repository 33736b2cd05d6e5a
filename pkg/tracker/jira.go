package tracker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	// DefaultJiraURL is the Apache Software Foundation Jira instance.
	DefaultJiraURL = "https://issues.apache.org/jira"

	jiraAPIPath      = "/rest/api/2"
	jiraDateLayout   = "2006-01-02"
	jiraTimeLayout   = "2006-01-02T15:04:05.000-0700"
	defaultPageSize  = 100
	defaultRateLimit = 5
	defaultTimeout   = 30 * time.Second
)

// JiraOptions configures a Jira client.
type JiraOptions struct {
	BaseURL    string
	Project    string
	Token      string
	PageSize   int
	RateLimit  float64
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Jira reads versions and fixed bugs of one project through the Jira REST API.
type Jira struct {
	baseURL  string
	project  string
	token    string
	pageSize int
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewJira creates a Jira client, filling unset options with defaults.
func NewJira(opts JiraOptions) *Jira {
	j := &Jira{
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		project:  strings.ToUpper(opts.Project),
		token:    opts.Token,
		pageSize: opts.PageSize,
		client:   opts.HTTPClient,
		logger:   opts.Logger,
	}

	if j.baseURL == "" {
		j.baseURL = DefaultJiraURL
	}

	if j.pageSize <= 0 {
		j.pageSize = defaultPageSize
	}

	if j.client == nil {
		j.client = &http.Client{Timeout: defaultTimeout}
	}

	if j.logger == nil {
		j.logger = slog.Default()
	}

	limit := opts.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}

	j.limiter = rate.NewLimiter(rate.Limit(limit), 1)

	return j
}

// Releases lists the project versions. Versions without a release date are
// returned with a zero Date.
func (j *Jira) Releases(ctx context.Context) ([]Release, error) {
	body, err := j.get(ctx, "/project/"+url.PathEscape(j.project)+"/versions", nil)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: versions of %s", ErrInvalidPayload, j.project)
	}

	var releases []Release

	gjson.ParseBytes(body).ForEach(func(_, v gjson.Result) bool {
		rel := Release{
			Name:     v.Get("name").String(),
			Released: v.Get("released").Bool(),
		}

		if raw := v.Get("releaseDate").String(); raw != "" {
			date, parseErr := time.Parse(jiraDateLayout, raw)
			if parseErr != nil {
				j.logger.WarnContext(ctx, "skipping version with bad date", "version", rel.Name, "date", raw)

				return true
			}

			rel.Date = date
		}

		releases = append(releases, rel)

		return true
	})

	return releases, nil
}

// Tickets lists closed or resolved bugs with resolution Fixed, in pages.
func (j *Jira) Tickets(ctx context.Context) ([]Ticket, error) {
	jql := fmt.Sprintf(
		`project = "%s" AND issuetype = "Bug" AND (status = "closed" OR status = "resolved") AND resolution = "fixed" ORDER BY resolutiondate ASC`,
		j.project,
	)

	var tickets []Ticket

	for startAt := 0; ; {
		query := url.Values{}
		query.Set("jql", jql)
		query.Set("fields", "key,created,resolutiondate,versions,fixVersions")
		query.Set("startAt", strconv.Itoa(startAt))
		query.Set("maxResults", strconv.Itoa(j.pageSize))

		body, err := j.get(ctx, "/search", query)
		if err != nil {
			return nil, err
		}

		if !gjson.ValidBytes(body) {
			return nil, fmt.Errorf("%w: search page at %d", ErrInvalidPayload, startAt)
		}

		issues := gjson.GetBytes(body, "issues").Array()
		for _, issue := range issues {
			ticket, ok := j.parseIssue(ctx, issue)
			if ok {
				tickets = append(tickets, ticket)
			}
		}

		startAt += len(issues)
		total := int(gjson.GetBytes(body, "total").Int())

		j.logger.DebugContext(ctx, "fetched tickets", "project", j.project, "fetched", startAt, "total", total)

		if len(issues) == 0 || startAt >= total {
			break
		}
	}

	return tickets, nil
}

func (j *Jira) parseIssue(ctx context.Context, issue gjson.Result) (Ticket, bool) {
	ticket := Ticket{Key: issue.Get("key").String()}
	fields := issue.Get("fields")

	created, err := time.Parse(jiraTimeLayout, fields.Get("created").String())
	if err != nil {
		j.logger.WarnContext(ctx, "skipping ticket without creation date", "ticket", ticket.Key)

		return Ticket{}, false
	}

	resolved, err := time.Parse(jiraTimeLayout, fields.Get("resolutiondate").String())
	if err != nil {
		j.logger.WarnContext(ctx, "skipping ticket without resolution date", "ticket", ticket.Key)

		return Ticket{}, false
	}

	ticket.Created = created
	ticket.Resolved = resolved

	for _, v := range fields.Get("versions.#.name").Array() {
		ticket.Affected = append(ticket.Affected, v.String())
	}

	for _, v := range fields.Get("fixVersions.#.name").Array() {
		ticket.Fixed = append(ticket.Fixed, v.String())
	}

	return ticket, true
}

func (j *Jira) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	err := j.limiter.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := j.baseURL + jiraAPIPath + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if j.token != "" {
		req.Header.Set("Authorization", "Bearer "+j.token)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jira request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read jira response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, path, resp.StatusCode)
	}

	return body, nil
}
