package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/pendergraft/ethbinder/internal/github"
	"github.com/pendergraft/ethbinder/internal/validation"
)

// verifyAccount returns nil when GitHub answers 200 for the user lookup.
// Any other status and any transport failure mean "not verified"
// (ErrIdentityNotFound); only deadline or cancellation is reported as
// ErrTransport so the caller can abort.
func (s *service) verifyAccount(ctx context.Context, handle string, trace *Trace) error {
	if err := validation.ValidateHandle(handle); err != nil {
		trace.Addf("GitHub handle %s is not a valid login: %v", handle, err)
		return fmt.Errorf("%w: %v", ErrIdentityNotFound, err)
	}

	user, err := s.github.GetUser(ctx, handle)
	if err != nil {
		var statusErr *github.StatusError
		switch {
		case errors.As(err, &statusErr):
			trace.Addf("GitHub user %s not found. Status: %d", handle, statusErr.StatusCode)
		case isAbort(err):
			trace.Addf("Error while verifying GitHub handle %s: %v", handle, err)
			return fmt.Errorf("%w: %w", ErrTransport, err)
		default:
			trace.Addf("Error while verifying GitHub handle %s: %v", handle, err)
		}
		return fmt.Errorf("%w: user %s: %w", ErrIdentityNotFound, handle, err)
	}

	trace.Addf("GitHub user %s found (id %d)", user.Login, user.ID)
	return nil
}
