package eventlog

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSAppender fans the audit stream out to an SNS topic for downstream
// subscribers (reporting, alerting). Events are base64-wrapped JSON.
type SNSAppender struct {
	Client   *sns.Client
	TopicArn string
}

func (s *SNSAppender) Append(ctx context.Context, e *ImportEvent) error {
	var b bytes.Buffer
	encoder := base64.NewEncoder(base64.StdEncoding, &b)
	jsonEncoder := json.NewEncoder(encoder)
	if err := jsonEncoder.Encode(e); err != nil {
		return err
	}
	encoder.Close()
	m := b.String()
	result, err := s.Client.Publish(ctx, &sns.PublishInput{
		Message:  &m,
		TopicArn: &s.TopicArn,
	})
	logger.Debug("SNS event publish response", "response", result, "eventId", e.EventID)
	return err
}
