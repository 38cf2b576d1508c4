package notify

import (
	"context"
	"fmt"
	"strings"

	"admissions-lifecycle/internal/common/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the subset of *ses.Client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESMailer struct {
	client     SESAPI
	from       string
	recipients []string
}

func NewSESMailer(ctx context.Context, region, from string, recipients []string) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return NewSESMailerWithClient(ses.NewFromConfig(cfg), from, recipients), nil
}

func NewSESMailerWithClient(client SESAPI, from string, recipients []string) *SESMailer {
	return &SESMailer{client: client, from: from, recipients: recipients}
}

// SendSweepSummary mails the sweep result. With no recipients configured it
// does nothing.
func (m *SESMailer) SendSweepSummary(ctx context.Context, s SweepSummary) error {
	if len(m.recipients) == 0 {
		return nil
	}
	subject := fmt.Sprintf("Retention sweep %s: %d purged", s.RanAt.UTC().Format("2006-01-02"), s.Purged)
	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(m.from),
		Destination: &types.Destination{ToAddresses: m.recipients},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(summaryText(s)), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return errors.NewNotificationSendFailedError("ses", err)
	}
	return nil
}

func summaryText(s SweepSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Retention sweep completed at %s\n\n", s.RanAt.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Applications examined: %d\n", s.Examined)
	fmt.Fprintf(&b, "Applications purged:   %d\n", s.Purged)
	fmt.Fprintf(&b, "Failures:              %d\n", s.Failed)
	if len(s.PurgedIDs) > 0 {
		b.WriteString("\nPurged applications:\n")
		for _, id := range s.PurgedIDs {
			b.WriteString("  - " + id + "\n")
		}
	}
	return b.String()
}
