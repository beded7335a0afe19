// Package retry re-runs operations that failed for transient reasons.
//
// Only typed errors whose ErrorType is retryable (network, rate_limit,
// server_error) are retried by default. Waits between attempts honour
// context cancellation.
//
//	img, err := retry.DoWithResult(ctx, func(ctx context.Context) (*portal.Image, error) {
//		return client.FetchImage(ctx, id, header)
//	}, &retry.Config{MaxAttempts: 3, Backoff: retry.DefaultExponentialBackoff()})
package retry
