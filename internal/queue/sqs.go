package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/chartflow/import-server/internal/models"
	"github.com/google/uuid"
)

// SQSPublisher targets a FIFO queue. The work item's partition key becomes
// the message group id, which is what gives per-batch ordering.
type SQSPublisher struct {
	Client   *sqs.Client
	QueueURL string
}

func NewSQSPublisher(client *sqs.Client, queueURL string) *SQSPublisher {
	return &SQSPublisher{Client: client, QueueURL: queueURL}
}

func (p *SQSPublisher) Publish(ctx context.Context, item *WorkItem) error {
	body, err := json.Marshal(item)
	if err != nil {
		return err
	}
	_, err = p.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               aws.String(p.QueueURL),
		MessageBody:            aws.String(string(body)),
		MessageGroupId:         aws.String(item.PartitionKey()),
		MessageDeduplicationId: aws.String(uuid.NewString()),
	})
	return err
}

func (p *SQSPublisher) PublishBatch(ctx context.Context, items []*WorkItem) error {
	if len(items) > ChunkSize {
		return fmt.Errorf("batch of %d exceeds the %d entry transport limit", len(items), ChunkSize)
	}
	entries := make([]types.SendMessageBatchRequestEntry, 0, len(items))
	for i, item := range items {
		body, err := json.Marshal(item)
		if err != nil {
			return err
		}
		entries = append(entries, types.SendMessageBatchRequestEntry{
			Id:                     aws.String(fmt.Sprintf("m%d", i)),
			MessageBody:            aws.String(string(body)),
			MessageGroupId:         aws.String(item.PartitionKey()),
			MessageDeduplicationId: aws.String(uuid.NewString()),
		})
	}
	rsp, err := p.Client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
		QueueUrl: aws.String(p.QueueURL),
		Entries:  entries,
	})
	if err != nil {
		return err
	}
	if len(rsp.Failed) > 0 {
		return fmt.Errorf("%d of %d work items failed to publish", len(rsp.Failed), len(items))
	}
	return nil
}

func (p *SQSPublisher) Close() error {
	return nil
}

func (p *SQSPublisher) Health(ctx context.Context) (rsp models.ServiceHealthResp) {
	rsp.Service = models.WORK_QUEUE_SQS
	rsp.Status = models.STATUS_UP
	rsp.HealthIssue = models.HEALTH_ISSUE_NONE
	_, err := p.Client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(p.QueueURL),
	})
	if err != nil {
		return rsp.BuildErrorResponse(err)
	}
	return rsp
}
