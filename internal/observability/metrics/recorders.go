package metrics

import "time"

// Verification records the outcome of one identity binding verification.
func Verification(outcome string, duration time.Duration) {
	if !Enabled() {
		return
	}
	verificationTotal.WithLabelValues(outcome).Inc()
	verificationDuration.Observe(duration.Seconds())
}

// GitHubRequest records one outbound GitHub API call. status is the HTTP
// status code or "error" for transport failures.
func GitHubRequest(endpoint, status string, duration time.Duration) {
	if !Enabled() {
		return
	}
	githubRequestsTotal.WithLabelValues(endpoint, status).Inc()
	githubDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
