// Package domain contains the identity binding verification pipeline.
package domain

import "time"

// DefaultRepo is the repository name used when a request does not name one
const DefaultRepo = "ethbinder"

// Request is a single badge verification request.
type Request struct {
	Handle  string `json:"handle,omitempty"`
	Repo    string `json:"repo,omitempty"`
	Debug   bool   `json:"debug,omitempty"`
	Referer string `json:"referer,omitempty"`
}

// Payload is the signed proof embedded in an issue body.
type Payload struct {
	GitHubHandle string `json:"githubHandle"`
	EthAddress   string `json:"ethAddress"`
	Signature    string `json:"signature"`
}

// Outcome is the terminal state of a verification. Exactly one is produced per request.
type Outcome string

const (
	OutcomeMissingHandle     Outcome = "missing_handle"
	OutcomeInvalidHandle     Outcome = "invalid_handle"
	OutcomeMissingRepository Outcome = "missing_repository"
	OutcomeMissingToken      Outcome = "missing_token"
	OutcomeFetchFailed       Outcome = "fetch_failed"
	OutcomeNoPayloadFound    Outcome = "no_payload_found"
	OutcomeSignatureMismatch Outcome = "signature_mismatch"
	OutcomeVerified          Outcome = "verified"
)

// Outcomes lists every outcome in pipeline order.
var Outcomes = []Outcome{
	OutcomeMissingToken,
	OutcomeMissingHandle,
	OutcomeInvalidHandle,
	OutcomeMissingRepository,
	OutcomeFetchFailed,
	OutcomeNoPayloadFound,
	OutcomeSignatureMismatch,
	OutcomeVerified,
}

// Result is what the pipeline returns for every request.
type Result struct {
	ID      string  `json:"id"`
	Outcome Outcome `json:"outcome"`
	Handle  string  `json:"handle,omitempty"`
	Repo    string  `json:"repo"`
	// Reason is a short, safe-to-display cause for OutcomeFetchFailed
	Reason           string        `json:"reason,omitempty"`
	Payload          *Payload      `json:"payload,omitempty"`
	IssueNumber      int           `json:"issueNumber,omitempty"`
	RecoveredAddress string        `json:"recoveredAddress,omitempty"`
	Duration         time.Duration `json:"duration"`
	Debug            bool          `json:"debug,omitempty"`
	Trace            []string      `json:"trace,omitempty"`
}

// Verified reports whether the binding was proven.
func (r *Result) Verified() bool {
	return r.Outcome == OutcomeVerified
}

// Options configures the verification service.
type Options struct {
	// DefaultRepo replaces an empty Request.Repo
	DefaultRepo string
	// RefererHosts restricts which Referer hosts may supply a handle.
	// Empty or containing "*" accepts any host.
	RefererHosts []string
	// MaxRepoPages caps repository pagination; 0 means unlimited
	MaxRepoPages int
	// IssueState is passed to the issues endpoint ("open", "closed", "all")
	IssueState string
	// RequireHandleMatch skips payloads whose githubHandle differs from the resolved handle
	RequireHandleMatch bool
	// RequireIssueAuthor skips issues not opened by the resolved handle
	RequireIssueAuthor bool
}
