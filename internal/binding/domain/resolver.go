package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveHandle returns the handle to verify. An explicit handle is used
// verbatim; otherwise the first non-empty path segment of the Referer URL
// is used when its host is allowed. Syntax is checked later by the
// account lookup.
func ResolveHandle(req Request, allowedHosts []string, trace *Trace) (string, error) {
	if req.Handle != "" {
		trace.Addf("GitHub handle from query: %s", req.Handle)
		return req.Handle, nil
	}

	trace.Addf("Referrer: %s", req.Referer)
	if req.Referer == "" {
		trace.Addf("GitHub handle could not be extracted from referrer")
		return "", fmt.Errorf("%w: no handle parameter and no referer", ErrInputInvalid)
	}

	ref, err := url.Parse(req.Referer)
	if err != nil {
		trace.Addf("GitHub handle could not be extracted from referrer: %v", err)
		return "", fmt.Errorf("%w: parsing referer: %v", ErrInputInvalid, err)
	}

	if !hostAllowed(ref.Hostname(), allowedHosts) {
		trace.Addf("GitHub handle could not be extracted from referrer: host %q not allowed", ref.Hostname())
		return "", fmt.Errorf("%w: referer host %q not allowed", ErrInputInvalid, ref.Hostname())
	}

	trace.Addf("Referrer path parts: %s", ref.Path)
	for _, segment := range strings.Split(ref.Path, "/") {
		if segment != "" {
			trace.Addf("GitHub handle found from referrer: %s", segment)
			return segment, nil
		}
	}

	trace.Addf("GitHub handle could not be extracted from referrer")
	return "", fmt.Errorf("%w: referer has no path", ErrInputInvalid)
}

func hostAllowed(host string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, h := range allowed {
		if h == "*" || strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}
