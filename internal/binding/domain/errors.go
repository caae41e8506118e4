package domain

import (
	"context"
	"errors"

	"github.com/pendergraft/ethbinder/internal/github"
)

// Stage errors. None of these leave the pipeline: each is converted into
// an Outcome at the stage that produced it.
var (
	ErrInputInvalid     = errors.New("handle missing or unparseable")
	ErrIdentityNotFound = errors.New("account or repository not found")
	ErrTransport        = errors.New("github request failed")
	ErrNoPayload        = errors.New("no signed payload found")
)

// isAbort reports whether err came from the request deadline or from the
// caller going away; those abort the pipeline with OutcomeFetchFailed.
func isAbort(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// fetchReason converts a GitHub call error into the short reason shown on
// the badge. Internal error text never appears here.
func fetchReason(err error) string {
	var statusErr *github.StatusError
	switch {
	case errors.As(err, &statusErr):
		return statusErr.StatusText()
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "request failed"
	}
}
