// Package stream provides the DynamoDB Streams handler that removes the
// blobs of deleted images.
package stream

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/jacentio/livewall/gateway"
	"github.com/jacentio/livewall/store"
)

// BlobDeleter removes stored image bytes. Deleting a missing blob succeeds.
type BlobDeleter interface {
	Delete(ctx context.Context, id string) error
}

// Sweeper deletes blobs whose image records were removed. It is meant to
// run as an AWS Lambda on the images table stream (OLD_IMAGE view).
type Sweeper struct {
	blobs BlobDeleter
	log   *zap.SugaredLogger
}

// NewSweeper creates a sweeper. A nil logger discards output.
func NewSweeper(blobs BlobDeleter, log *zap.SugaredLogger) *Sweeper {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Sweeper{blobs: blobs, log: log.With("component", "blob_sweeper")}
}

// Handle processes one batch of stream records. The first failure is
// returned so Lambda retries the batch; deleting blobs is idempotent.
func (s *Sweeper) Handle(ctx context.Context, event events.DynamoDBEvent) error {
	swept := 0
	for _, record := range event.Records {
		deleted, err := s.processRecord(ctx, record)
		if err != nil {
			s.log.Errorw("failed to process record",
				"event_id", record.EventID,
				"throttled", gateway.Throttled(err),
				"error", err)
			return err
		}
		if deleted {
			swept++
		}
	}
	if swept > 0 {
		s.log.Infow("blobs swept", "count", swept, "records", len(event.Records))
	}
	return nil
}

// processRecord deletes the blob if record is the removal of an image's
// by-wall record. Each image has two records; only the by-wall one, whose
// partition is the image's wall id, triggers a delete.
func (s *Sweeper) processRecord(ctx context.Context, record events.DynamoDBEventRecord) (bool, error) {
	if record.EventName != string(events.DynamoDBOperationTypeRemove) {
		return false, nil
	}
	old := record.Change.OldImage
	partition := getStringAttr(old, store.AttrPartitionKey)
	wallID := getStringAttr(old, "wall_id")
	imageID := getStringAttr(old, "id")
	if partition == "" || imageID == "" || partition != wallID {
		return false, nil
	}

	if err := s.blobs.Delete(ctx, imageID); err != nil {
		return false, fmt.Errorf("delete blob %s: %w", imageID, err)
	}
	s.log.Debugw("blob deleted", "wall_id", wallID, "image_id", imageID)
	return true, nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}
