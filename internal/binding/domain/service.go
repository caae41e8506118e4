package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pendergraft/ethbinder/internal/chains/evm"
	"github.com/pendergraft/ethbinder/internal/github"
)

// GitHub defines the GitHub API operations needed by the binding domain.
type GitHub interface {
	HasToken() bool
	GetUser(ctx context.Context, login string) (*github.User, error)
	ListUserRepos(ctx context.Context, login string, page, perPage int) ([]github.Repository, error)
	ListIssues(ctx context.Context, owner, repo, state string) ([]github.Issue, error)
}

type service struct {
	github GitHub
	opts   Options
}

// NewService creates a new verification service.
func NewService(gh GitHub, opts Options) *service {
	if opts.DefaultRepo == "" {
		opts.DefaultRepo = DefaultRepo
	}
	return &service{
		github: gh,
		opts:   opts,
	}
}

// Verify runs the full pipeline for one request. It never fails: every
// error is converted into an Outcome on the returned Result.
func (s *service) Verify(ctx context.Context, req Request) *Result {
	start := time.Now()
	trace := NewTrace(req.Debug)

	repo := req.Repo
	if repo == "" {
		repo = s.opts.DefaultRepo
	}

	res := &Result{
		ID:    uuid.NewString(),
		Repo:  repo,
		Debug: req.Debug,
	}
	trace.Addf("Debug is set to: %t", req.Debug)
	trace.Addf("Repo is set to: %s", repo)

	res.Outcome = s.run(ctx, req, res, trace)
	res.Duration = time.Since(start)
	res.Trace = trace.Entries()
	return res
}

func (s *service) run(ctx context.Context, req Request, res *Result, trace *Trace) Outcome {
	trace.Addf("GitHub token presence: %t", s.github.HasToken())
	if !s.github.HasToken() {
		trace.Addf("GitHub token is not set")
		return OutcomeMissingToken
	}

	handle, err := ResolveHandle(req, s.opts.RefererHosts, trace)
	if err != nil {
		trace.Addf("Missing handle or repo query parameters")
		return OutcomeMissingHandle
	}
	res.Handle = handle
	trace.Addf("GitHub handle: %s", handle)

	if err := s.verifyAccount(ctx, handle, trace); err != nil {
		return s.failure(res, err, OutcomeInvalidHandle)
	}
	trace.Addf("Handle is valid, handle: %s", handle)

	if err := s.hasRepository(ctx, handle, res.Repo, trace); err != nil {
		return s.failure(res, err, OutcomeMissingRepository)
	}

	payload, issueNumber, err := s.findPayload(ctx, handle, res.Repo, trace)
	if err != nil {
		if errors.Is(err, ErrNoPayload) {
			return OutcomeNoPayloadFound
		}
		return s.failure(res, err, OutcomeFetchFailed)
	}
	res.Payload = payload
	res.IssueNumber = issueNumber

	// The signed message is always the resolved handle, never the
	// handle embedded in the payload.
	trace.Addf("Verifying signature for handle: %s", handle)
	match, recovered, err := evm.VerifyPersonalSign(handle, payload.Signature, payload.EthAddress)
	if err != nil {
		trace.Addf("Signature could not be recovered: %v", err)
		return OutcomeSignatureMismatch
	}
	res.RecoveredAddress = recovered
	trace.Addf("Recovered address: %s", recovered)

	if !match {
		trace.Addf("Signature verification failed.")
		return OutcomeSignatureMismatch
	}

	trace.Addf("Signature verified successfully.")
	return OutcomeVerified
}

// failure maps a stage error to its outcome. Transport aborts (timeouts,
// cancellation, failed issue fetches) become OutcomeFetchFailed with a
// display-safe reason.
func (s *service) failure(res *Result, err error, stageOutcome Outcome) Outcome {
	if errors.Is(err, ErrTransport) {
		res.Reason = fetchReason(err)
		return OutcomeFetchFailed
	}
	return stageOutcome
}
