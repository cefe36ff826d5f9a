// Package fetcher downloads report payloads over HTTP.
//
// The fetcher makes exactly one attempt per call. Failed downloads surface
// as errors and the work queue keeps the retry decision: a failed job goes
// to ERROR and a later setup run may enqueue it again.
package fetcher

import (
	"context"

	"github.com/rotisserie/eris"
)

// Fetch error sentinels, matched with eris.Is.
var (
	// ErrFetch marks a non-2xx response.
	ErrFetch = eris.New("fetch: non-success status")
	// ErrTimeout marks a request that hit its per-request deadline.
	ErrTimeout = eris.New("fetch: request timed out")
)

// Fetcher retrieves the payload at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
