package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pendergraft/ethbinder/internal/github"
	"github.com/pendergraft/ethbinder/internal/validation"
)

// hasRepository pages through the user's repositories until one is named
// repoName (case-insensitive) or a short page marks the end of the list.
// Each page is fetched exactly once and a non-200 page ends the scan.
func (s *service) hasRepository(ctx context.Context, handle, repoName string, trace *Trace) error {
	if err := validation.ValidateRepoName(repoName); err != nil {
		trace.Addf("Repository name %q is invalid: %v", repoName, err)
		return fmt.Errorf("%w: %v", ErrIdentityNotFound, err)
	}

	trace.Addf("Fetching repos for handle: %s", handle)

	scanned := 0
	for page := 1; ; page++ {
		if s.opts.MaxRepoPages > 0 && page > s.opts.MaxRepoPages {
			trace.Addf("Stopped after %d pages without finding %s", s.opts.MaxRepoPages, repoName)
			return fmt.Errorf("%w: page limit %d reached", ErrIdentityNotFound, s.opts.MaxRepoPages)
		}

		trace.Addf("Fetching page %d", page)
		repos, err := s.github.ListUserRepos(ctx, handle, page, github.MaxPerPage)
		if err != nil {
			var statusErr *github.StatusError
			switch {
			case errors.As(err, &statusErr) && statusErr.StatusCode == 404:
				trace.Addf("GitHub user %s not found (404)", handle)
			case errors.As(err, &statusErr):
				trace.Addf("Error: GitHub API returned status %d for user %s", statusErr.StatusCode, handle)
			case isAbort(err):
				trace.Addf("Error while fetching repos for user %s: %v", handle, err)
				return fmt.Errorf("%w: %w", ErrTransport, err)
			default:
				trace.Addf("Error while fetching repos for user %s: %v", handle, err)
			}
			return fmt.Errorf("%w: listing repos page %d: %w", ErrIdentityNotFound, page, err)
		}

		trace.Addf("Fetched %d repositories on page %d", len(repos), page)
		scanned += len(repos)

		for _, r := range repos {
			if strings.EqualFold(r.Name, repoName) {
				trace.Addf("User %s has a %s repository", handle, repoName)
				return nil
			}
		}

		if len(repos) < github.MaxPerPage {
			break
		}
	}

	trace.Addf("User %s does not have a %s repository (%d scanned)", handle, repoName, scanned)
	return fmt.Errorf("%w: repository %s/%s", ErrIdentityNotFound, handle, repoName)
}
