// Package validation provides input validation for ethbinder.
package validation

import (
	"errors"
	"regexp"
	"strings"
)

// GitHub logins: alphanumeric and hyphens, not starting with a hyphen, max 39 chars.
// Legacy accounts may still carry double or trailing hyphens.
var handleRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,38}$`)

// Repository names: alphanumeric, '.', '-', '_', max 100 chars
var repoNameRegex = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)

// SignatureHexLength is the length of a 0x-prefixed 65-byte signature
const SignatureHexLength = 2 + 65*2

// ValidateHandle validates a GitHub login
func ValidateHandle(handle string) error {
	if handle == "" {
		return errors.New("handle cannot be empty")
	}
	if len(handle) > 39 {
		return errors.New("handle too long (max 39 chars)")
	}
	if !handleRegex.MatchString(handle) {
		return errors.New("invalid handle: must be alphanumeric or hyphens, not starting with a hyphen")
	}
	return nil
}

// ValidateRepoName validates a GitHub repository name
func ValidateRepoName(name string) error {
	if name == "" {
		return errors.New("repository name cannot be empty")
	}
	if !repoNameRegex.MatchString(name) {
		return errors.New("invalid repository name: must be 1-100 chars of letters, digits, '.', '-' or '_'")
	}
	if name == "." || name == ".." {
		return errors.New("invalid repository name")
	}
	return nil
}

// ValidateAddress validates an Ethereum address
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return errors.New("invalid address: must start with 0x")
	}
	if !isHex(addr[2:]) {
		return errors.New("invalid address: contains non-hex characters")
	}
	return nil
}

// ValidateSignature validates a hex-encoded 65-byte ECDSA signature (r || s || v)
func ValidateSignature(sig string) error {
	if !strings.HasPrefix(sig, "0x") && !strings.HasPrefix(sig, "0X") {
		return errors.New("invalid signature: must start with 0x")
	}
	if len(sig) != SignatureHexLength {
		return errors.New("invalid signature length: must be 132 characters (0x + 130 hex)")
	}
	if !isHex(sig[2:]) {
		return errors.New("invalid signature: contains non-hex characters")
	}
	return nil
}

func isHex(s string) bool {
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return len(s) > 0
}
