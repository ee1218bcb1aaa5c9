package gateway

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// SESAPI is the subset of the SES v2 client used for notifications.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier sends plain-text email through Amazon SES.
type SESNotifier struct {
	client SESAPI
	sender string
}

// NewSESNotifier creates a notifier sending from sender.
func NewSESNotifier(client SESAPI, sender string) *SESNotifier {
	return &SESNotifier{client: client, sender: sender}
}

func (n *SESNotifier) Send(ctx context.Context, to, subject, body string) error {
	_, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.sender),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	return classify("email.send", err)
}

// LogNotifier writes messages to the log instead of sending them.
type LogNotifier struct {
	log *zap.SugaredLogger
}

// NewLogNotifier creates a notifier logging to log.
func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &LogNotifier{log: log.With("component", "notifier")}
}

func (n *LogNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.log.Infow("notification", "to", to, "subject", subject, "body", body)
	return nil
}
