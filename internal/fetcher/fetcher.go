// Package fetcher issues rate-limited outbound HTTP requests on behalf of
// the source adapters. Third-party directories are failure-prone and
// low-quota; every request goes through the shared limiter and a bounded
// retry loop, and a request that ultimately fails surfaces as an error the
// caller treats as "no data from this source".
package fetcher

import "context"

// Fetcher downloads a remote payload.
type Fetcher interface {
	// Fetch retrieves the URL and returns the raw response body.
	Fetch(ctx context.Context, url string) ([]byte, error)
}
