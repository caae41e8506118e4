// Package badge renders verification results as shields.io endpoint badges.
package badge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pendergraft/ethbinder/internal/binding/domain"
)

// SchemaVersion is the shields.io endpoint schema version
const SchemaVersion = 1

// StatusHeader carries the outcome's HTTP status even when AlwaysOK is set
const StatusHeader = "X-Badge-Status"

// Badge is the response body.
type Badge struct {
	SchemaVersion int      `json:"schemaVersion"`
	Label         string   `json:"label"`
	Message       string   `json:"message"`
	LabelColor    string   `json:"labelColor,omitempty"`
	Color         string   `json:"color"`
	NamedLogo     string   `json:"namedLogo,omitempty"`
	Style         string   `json:"style,omitempty"`
	CacheSeconds  int      `json:"cacheSeconds"`
	Logs          []string `json:"logs,omitempty"`
}

// Options configures badge rendering.
type Options struct {
	Label        string
	LabelColor   string
	SuccessColor string
	FailureColor string
	NamedLogo    string
	Style        string
	CacheSeconds int
	// AlwaysOK answers every badge with 200 so shields.io renders failures too
	AlwaysOK bool
}

// DefaultOptions returns the stock ethbinder badge look.
func DefaultOptions() Options {
	return Options{
		Label:        "ethbinder",
		LabelColor:   "#5177D0",
		SuccessColor: "#51D06A",
		FailureColor: "#D06A51",
		NamedLogo:    "ethereum",
		Style:        "flat",
		CacheSeconds: 300,
	}
}

// Response is a rendered badge ready to be written.
type Response struct {
	Status int
	Header http.Header
	Body   Badge
}

// Responder turns results into responses.
type Responder struct {
	opts Options
	now  func() time.Time
}

// NewResponder creates a Responder. Empty options fall back to defaults.
func NewResponder(opts Options) *Responder {
	def := DefaultOptions()
	if opts.Label == "" {
		opts.Label = def.Label
	}
	if opts.SuccessColor == "" {
		opts.SuccessColor = def.SuccessColor
	}
	if opts.FailureColor == "" {
		opts.FailureColor = def.FailureColor
	}
	if opts.CacheSeconds <= 0 {
		opts.CacheSeconds = def.CacheSeconds
	}
	return &Responder{opts: opts, now: time.Now}
}

// Respond maps a result to its status, headers and badge body.
func (r *Responder) Respond(res *domain.Result) Response {
	status := Status(res.Outcome)

	color := r.opts.FailureColor
	if res.Verified() {
		color = r.opts.SuccessColor
	}

	body := Badge{
		SchemaVersion: SchemaVersion,
		Label:         r.opts.Label,
		Message:       Message(res),
		LabelColor:    r.opts.LabelColor,
		Color:         color,
		NamedLogo:     r.opts.NamedLogo,
		Style:         r.opts.Style,
		CacheSeconds:  r.opts.CacheSeconds,
	}
	if res.Debug {
		body.Logs = res.Trace
		if body.Logs == nil {
			body.Logs = []string{}
		}
	}

	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	h.Set("Last-Modified", r.now().UTC().Format(http.TimeFormat))
	h.Set(StatusHeader, strconv.Itoa(status))

	if r.opts.AlwaysOK {
		status = http.StatusOK
	}

	return Response{Status: status, Header: h, Body: body}
}

// Write sends the response.
func (resp Response) Write(w http.ResponseWriter) error {
	for k, v := range resp.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(resp.Status)
	return json.NewEncoder(w).Encode(resp.Body)
}

// Message returns the badge text for a result.
func Message(res *domain.Result) string {
	switch res.Outcome {
	case domain.OutcomeMissingHandle:
		return "missing handle"
	case domain.OutcomeInvalidHandle:
		return "invalid handle: " + res.Handle
	case domain.OutcomeMissingRepository:
		return "missing repo " + res.Repo
	case domain.OutcomeMissingToken:
		return "missing github token"
	case domain.OutcomeFetchFailed:
		return fmt.Sprintf("issue fetch failed: %s", res.Reason)
	case domain.OutcomeNoPayloadFound:
		return "no issue found"
	case domain.OutcomeSignatureMismatch:
		return "failed"
	case domain.OutcomeVerified:
		return "verified"
	default:
		return "error"
	}
}

// Status returns the HTTP status for an outcome.
func Status(outcome domain.Outcome) int {
	switch outcome {
	case domain.OutcomeMissingHandle, domain.OutcomeSignatureMismatch:
		return http.StatusBadRequest
	case domain.OutcomeNoPayloadFound:
		return http.StatusNotFound
	case domain.OutcomeVerified:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
