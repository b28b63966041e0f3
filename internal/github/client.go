// Package github implements the GitHub GraphQL API fetcher and its
// rate-limit enforcement decorator.
package github

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"ghcrawler.bearhuddleston/internal/logger"
	"ghcrawler.bearhuddleston/internal/models"
)

// DefaultEndpoint is the GitHub GraphQL production endpoint.
const DefaultEndpoint = "https://api.github.com/graphql"

// tokenEnvVar names the environment variable carrying the bearer token.
const tokenEnvVar = "GITHUB_API_TOKEN"

const userAgent = "ghcrawler"

// Fetcher translates crawl requests into GraphQL search queries. Both
// request variants go through the same search query; only the query string
// and the interpretation of the edges differ.
type Fetcher struct {
	client *githubv4.Client
	log    *logger.Logger
}

// userAgentTransport sets the User-Agent header the API requires.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", userAgent)
	return t.base.RoundTrip(req)
}

// NewFetcher builds a fetcher against the given endpoint. The bearer token
// is read from GITHUB_API_TOKEN; a missing token is a configuration error.
func NewFetcher(endpoint string, log *logger.Logger) (*Fetcher, error) {
	token := os.Getenv(tokenEnvVar)
	if token == "" {
		return nil, fmt.Errorf("missing %s environment variable", tokenEnvVar)
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), src)
	httpClient.Transport = userAgentTransport{base: httpClient.Transport}

	client := githubv4.NewClient(httpClient)
	if endpoint != DefaultEndpoint {
		client = githubv4.NewEnterpriseClient(endpoint, httpClient)
	}
	return &Fetcher{client: client, log: log}, nil
}

// searchQuery mirrors the fields consumed from the search payload. Edges may
// contain null entries; those decode to nil and are skipped.
type searchQuery struct {
	Search struct {
		Edges []*struct {
			Node struct {
				Repository struct {
					Name           string
					Owner          struct{ Login string }
					StargazerCount int
				} `graphql:"... on Repository"`
			}
		}
		PageInfo struct {
			EndCursor   githubv4.String
			HasNextPage bool
		}
	} `graphql:"search(query: $query, type: REPOSITORY, first: $first, after: $after)"`
	RateLimit struct {
		Limit     int
		Cost      int
		Remaining int
		ResetAt   githubv4.DateTime
	}
}

func (q *searchQuery) rateLimit() models.RateLimit {
	return models.RateLimit{
		Limit:     q.RateLimit.Limit,
		Cost:      q.RateLimit.Cost,
		Remaining: q.RateLimit.Remaining,
		ResetAt:   q.RateLimit.ResetAt.Time,
	}
}

func (f *Fetcher) runSearch(ctx context.Context, query string, first int, after string) (*searchQuery, error) {
	var cursor *githubv4.String
	if after != "" {
		c := githubv4.String(after)
		cursor = &c
	}
	variables := map[string]interface{}{
		"query": githubv4.String(query),
		"first": githubv4.Int(first),
		"after": cursor,
	}

	var q searchQuery
	if err := f.client.Query(ctx, &q, variables); err != nil {
		return nil, err
	}
	return &q, nil
}

// Fetch dispatches on the request variant.
func (f *Fetcher) Fetch(ctx context.Context, request models.Request) (*models.Response, []models.Request, error) {
	switch r := request.(type) {
	case models.SearchOrganizationRequest:
		return f.fetchOrganizations(ctx, r)
	case models.RepositoriesFromOrganizationRequest:
		return f.fetchRepositoriesFromOrganization(ctx, r)
	default:
		return nil, nil, fmt.Errorf("unsupported request type %T", request)
	}
}

// fetchOrganizations runs a free-form search page. The page itself carries
// no repositories to persist; each edge owner becomes a detail request, plus
// a continuation of the search when more pages remain.
func (f *Fetcher) fetchOrganizations(ctx context.Context, request models.SearchOrganizationRequest) (*models.Response, []models.Request, error) {
	q, err := f.runSearch(ctx, request.Query, request.First, request.After)
	if err != nil {
		if isParseError(err) {
			// The search API occasionally returns partial or null payloads;
			// treating those as fatal would wedge the retry loop.
			f.log.Error("Failed to parse search response: %v", err)
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("searching organizations: %w", err)
	}
	if len(q.Search.Edges) == 0 {
		return nil, nil, nil
	}

	var nextRequests []models.Request
	for _, edge := range q.Search.Edges {
		if edge == nil {
			continue
		}
		nextRequests = append(nextRequests,
			models.NewRepositoriesFromOrganization(edge.Node.Repository.Owner.Login, request.First, ""))
	}
	if q.Search.PageInfo.HasNextPage {
		nextRequests = append(nextRequests,
			models.NewSearchOrganization(request.Query, request.First, string(q.Search.PageInfo.EndCursor)))
	}

	return &models.Response{RateLimit: q.rateLimit()}, nextRequests, nil
}

// fetchRepositoriesFromOrganization pages through one organization's
// repositories via the search query "org:<name> stars:>0".
func (f *Fetcher) fetchRepositoriesFromOrganization(ctx context.Context, request models.RepositoriesFromOrganizationRequest) (*models.Response, []models.Request, error) {
	query := fmt.Sprintf("org:%s stars:>0", request.OrganizationName)
	q, err := f.runSearch(ctx, query, request.First, request.After)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching repositories of %s: %w", request.OrganizationName, err)
	}
	if len(q.Search.Edges) == 0 {
		return nil, nil, nil
	}

	var repositories []models.Repository
	for _, edge := range q.Search.Edges {
		if edge == nil {
			continue
		}
		repositories = append(repositories, models.NewRepository(
			edge.Node.Repository.Name,
			request.OrganizationName,
			uint32(edge.Node.Repository.StargazerCount)))
	}
	var nextRequests []models.Request
	if q.Search.PageInfo.HasNextPage {
		nextRequests = append(nextRequests,
			models.NewRepositoriesFromOrganization(request.OrganizationName, request.First, string(q.Search.PageInfo.EndCursor)))
	}

	return &models.Response{Repositories: repositories, RateLimit: q.rateLimit()}, nextRequests, nil
}

// isParseError distinguishes a malformed payload from a transport or server
// failure by the shape of the decode error.
func isParseError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unmarshal") ||
		strings.Contains(msg, "struct field") ||
		strings.Contains(msg, "invalid character")
}
