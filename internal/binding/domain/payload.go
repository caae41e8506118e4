package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/pendergraft/ethbinder/internal/validation"
)

const (
	codeFence = "```"
	jsonTag   = "json"
)

// Payload validation errors.
var (
	ErrPayloadNotObject     = errors.New("payload is not a JSON object")
	ErrPayloadMissingFields = errors.New("payload is missing required fields")
	ErrPayloadTrailingData  = errors.New("payload has trailing data")
)

// LocateJSONBlock returns the contents of the first fenced code block
// tagged json in body. The tag must be followed by whitespace and the
// block ends at the next fence. Empty blocks are skipped.
func LocateJSONBlock(body string) (string, bool) {
	offset := 0
	for {
		i := strings.Index(body[offset:], codeFence)
		if i < 0 {
			return "", false
		}
		tagStart := offset + i + len(codeFence)
		offset = tagStart

		rest := body[tagStart:]
		if len(rest) < len(jsonTag) || !strings.EqualFold(rest[:len(jsonTag)], jsonTag) {
			continue
		}

		afterTag := rest[len(jsonTag):]
		content := strings.TrimLeftFunc(afterTag, unicode.IsSpace)
		if len(content) == len(afterTag) {
			// "```jsonc", "```json5", "```json```"
			continue
		}

		end := strings.Index(content, codeFence)
		if end < 0 {
			return "", false
		}

		block := strings.TrimSpace(content[:end])
		offset = len(body) - len(content) + end + len(codeFence)
		if block == "" {
			continue
		}
		return block, true
	}
}

// ParsePayload strictly decodes a located block into a Payload. The block
// must be a single JSON object whose githubHandle, ethAddress and signature
// are non-empty strings; address and signature must be well-formed hex.
// Unknown fields are ignored.
func ParsePayload(block string) (*Payload, error) {
	trimmed := strings.TrimSpace(block)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, ErrPayloadNotObject
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	var raw struct {
		GitHubHandle *string `json:"githubHandle"`
		EthAddress   *string `json:"ethAddress"`
		Signature    *string `json:"signature"`
	}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrPayloadTrailingData
	}

	var missing []string
	if raw.GitHubHandle == nil || strings.TrimSpace(*raw.GitHubHandle) == "" {
		missing = append(missing, "githubHandle")
	}
	if raw.EthAddress == nil || strings.TrimSpace(*raw.EthAddress) == "" {
		missing = append(missing, "ethAddress")
	}
	if raw.Signature == nil || strings.TrimSpace(*raw.Signature) == "" {
		missing = append(missing, "signature")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrPayloadMissingFields, strings.Join(missing, ", "))
	}

	p := &Payload{
		GitHubHandle: strings.TrimSpace(*raw.GitHubHandle),
		EthAddress:   strings.TrimSpace(*raw.EthAddress),
		Signature:    strings.TrimSpace(*raw.Signature),
	}
	if err := validation.ValidateAddress(p.EthAddress); err != nil {
		return nil, fmt.Errorf("ethAddress: %w", err)
	}
	if err := validation.ValidateSignature(p.Signature); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	return p, nil
}

// ExtractPayload runs the locator and the validator over an issue body.
func ExtractPayload(body string) (*Payload, error) {
	block, ok := LocateJSONBlock(body)
	if !ok {
		return nil, ErrNoPayload
	}
	return ParsePayload(block)
}

// findPayload fetches the repository issues in a single call and returns
// the first issue carrying a valid payload, along with its number.
func (s *service) findPayload(ctx context.Context, handle, repoName string, trace *Trace) (*Payload, int, error) {
	trace.Addf("Fetching issues from GitHub for repo: %s/%s", handle, repoName)

	issues, err := s.github.ListIssues(ctx, handle, repoName, s.opts.IssueState)
	if err != nil {
		trace.Addf("Failed to fetch issues from GitHub: %v", err)
		return nil, 0, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	trace.Addf("Fetched %d issues from %s/%s", len(issues), handle, repoName)

	for _, issue := range issues {
		trace.Addf("Checking issue #%d: %s", issue.Number, issue.Title)

		if issue.IsPullRequest() {
			trace.Addf("Skipping pull request #%d", issue.Number)
			continue
		}
		if s.opts.RequireIssueAuthor && !strings.EqualFold(issue.User.Login, handle) {
			trace.Addf("Skipping issue #%d opened by %s", issue.Number, issue.User.Login)
			continue
		}

		block, ok := LocateJSONBlock(issue.Body)
		if !ok {
			trace.Addf("No valid JSON found in issue: %s", issue.Title)
			continue
		}
		trace.Addf("Found JSON in issue: %s", issue.Title)

		payload, err := ParsePayload(block)
		if err != nil {
			trace.Addf("Error parsing issue body: %v", err)
			continue
		}
		if s.opts.RequireHandleMatch && !strings.EqualFold(payload.GitHubHandle, handle) {
			trace.Addf("Payload handle %s does not match %s", payload.GitHubHandle, handle)
			continue
		}

		trace.Addf("Valid payload found in issue: %s", issue.Title)
		return payload, issue.Number, nil
	}

	trace.Addf("No valid issue found with signature verification.")
	return nil, 0, ErrNoPayload
}
