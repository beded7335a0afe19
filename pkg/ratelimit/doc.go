// Package ratelimit paces requests to the portal's download endpoint.
//
// Downloads are unlimited by default. Setting rate_limit.requests_per_minute
// switches to a token bucket that refills once per minute; Wait blocks until
// a token is free and gives up when the context is cancelled.
package ratelimit
