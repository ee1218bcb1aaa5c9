// Package livewall holds the domain model of a live photo wall service.
//
// A [Wall] collects [Image] uploads from guests and shows them live to every
// viewer of that wall. Walls move through a small ownership lifecycle:
//
//	NEW -> OWNED -> PREMIUM
//
// A wall is claimed by attaching an email address, confirmed by presenting
// the [User] validation code sent to that address, and upgraded once a
// payment is confirmed.
//
// Persistence lives in the store and repo packages, live fan-out in the
// broadcast package, and the lifecycle rules in the service package.
//
// # Errors
//
// Operations across the module report failures using the sentinels below,
// so callers can classify with [errors.Is]:
//
//   - [ErrNotFound] - entity or key absent
//   - [ErrForbidden] - bearer key mismatch
//   - [ErrConflict] - create on an existing key, or an illegal transition
//   - [ErrInvalidInput] - malformed request data
//   - [ErrPartialWrite] - some index records were written, others were not
//   - [ErrUpstreamUnavailable] - blob, email, moderation or payment gateway failure
package livewall
