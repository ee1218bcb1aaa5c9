package gateway

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"go.uber.org/zap"
)

// RekognitionAPI is the subset of the Rekognition client used for moderation.
type RekognitionAPI interface {
	DetectModerationLabels(ctx context.Context, params *rekognition.DetectModerationLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectModerationLabelsOutput, error)
}

// DefaultMinConfidence is the label confidence, in percent, at which an image
// is rejected.
const DefaultMinConfidence = 80

// RekognitionModerator rejects images that carry any moderation label at or
// above its confidence threshold.
type RekognitionModerator struct {
	client        RekognitionAPI
	minConfidence float32
	log           *zap.SugaredLogger
}

// NewRekognitionModerator creates a moderator. minConfidence <= 0 uses
// DefaultMinConfidence.
func NewRekognitionModerator(client RekognitionAPI, minConfidence float32, log *zap.SugaredLogger) *RekognitionModerator {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &RekognitionModerator{client: client, minConfidence: minConfidence, log: log}
}

func (m *RekognitionModerator) Check(ctx context.Context, data []byte) (bool, error) {
	out, err := m.client.DetectModerationLabels(ctx, &rekognition.DetectModerationLabelsInput{
		Image:         &types.Image{Bytes: data},
		MinConfidence: aws.Float32(m.minConfidence),
	})
	if err != nil {
		return false, classify("moderation.check", err)
	}
	for _, label := range out.ModerationLabels {
		if aws.ToFloat32(label.Confidence) >= m.minConfidence {
			m.log.Infow("image rejected",
				"label", aws.ToString(label.Name),
				"parent", aws.ToString(label.ParentName),
				"confidence", aws.ToFloat32(label.Confidence))
			return false, nil
		}
	}
	return true, nil
}

// AllowAll accepts every image.
type AllowAll struct{}

func (AllowAll) Check(ctx context.Context, data []byte) (bool, error) { return true, nil }
