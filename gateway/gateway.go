// Package gateway holds the external collaborators of the wall service:
// blob storage, outbound email and image moderation.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/jacentio/livewall"
)

// BlobStore keeps image bytes outside the entity store.
type BlobStore interface {
	// Store saves data under id and returns a URL pointing at it.
	Store(ctx context.Context, id string, data []byte, contentType string) (string, error)

	// Fetch returns the bytes stored under id, or an error matching
	// livewall.ErrNotFound.
	Fetch(ctx context.Context, id string) ([]byte, error)

	// Delete removes id. Deleting a missing blob succeeds.
	Delete(ctx context.Context, id string) error
}

// Linker is implemented by blob stores that can hand out short-lived
// direct download links.
type Linker interface {
	Link(ctx context.Context, id string) (string, error)
}

// Notifier sends a message to an address.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Moderator decides whether an image may be shown.
type Moderator interface {
	// Check returns false when the image must be rejected.
	Check(ctx context.Context, data []byte) (bool, error)
}

// Error codes AWS uses for throttling.
var throttleCodes = map[string]bool{
	"ThrottlingException":                    true,
	"Throttling":                             true,
	"TooManyRequestsException":               true,
	"RequestLimitExceeded":                   true,
	"SlowDown":                               true,
	"ProvisionedThroughputExceededException": true,
	"LimitExceededException":                 true,
}

// Throttled reports whether err is an AWS throttling response.
func Throttled(err error) bool {
	var api smithy.APIError
	if errors.As(err, &api) {
		return throttleCodes[api.ErrorCode()]
	}
	return false
}

// notFoundCodes are the API error codes meaning the object is absent.
var notFoundCodes = map[string]bool{
	"NoSuchKey": true,
	"NotFound":  true,
}

// classify maps an AWS error onto the livewall taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var api smithy.APIError
	if errors.As(err, &api) && notFoundCodes[api.ErrorCode()] {
		return fmt.Errorf("%s: %w", op, livewall.ErrNotFound)
	}
	return livewall.Upstream(op, err)
}
