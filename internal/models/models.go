// Package models defines the domain entities shared by the crawler components.
package models

import (
	"fmt"
	"time"
)

// Repository holds the metadata harvested for a single public repository.
// Equality covers all three fields; the persistence layer de-duplicates on
// the (repository, organization) pair only.
type Repository struct {
	RepositoryName   string
	OrganizationName string
	TotalStars       uint32
}

// NewRepository creates a Repository value.
func NewRepository(repositoryName, organizationName string, totalStars uint32) Repository {
	return Repository{
		RepositoryName:   repositoryName,
		OrganizationName: organizationName,
		TotalStars:       totalStars,
	}
}

func (r Repository) String() string {
	return fmt.Sprintf("Repository: %s, Organization: %s, Stars: %d",
		r.RepositoryName, r.OrganizationName, r.TotalStars)
}

// RateLimit is a snapshot of the API budget reported alongside a response.
type RateLimit struct {
	Limit     int
	Cost      int
	Remaining int
	ResetAt   time.Time
}

// Exceeded reports whether the budget for the current window is used up.
func (rl RateLimit) Exceeded() bool {
	return rl.Remaining <= 0
}

// DurationUntilReset returns how long to wait from now until the window
// resets. Never negative.
func (rl RateLimit) DurationUntilReset(now time.Time) time.Duration {
	d := rl.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (rl RateLimit) String() string {
	return fmt.Sprintf("RateLimit: calls=%d/%d (+%d), reset=%s",
		rl.Limit-rl.Remaining, rl.Limit, rl.Cost, rl.ResetAt.Format(time.RFC3339))
}

// Response carries one page of fetched repositories plus the rate limit that
// came with it. Repositories may be empty for pages that only yielded
// expansion links.
type Response struct {
	Repositories []Repository
	RateLimit    RateLimit
}
