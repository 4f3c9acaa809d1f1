package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus/admin"
	"github.com/chartflow/import-server/internal/models"
)

// AzurePublisher targets a session-enabled Service Bus queue. The partition
// key rides as the session id, which is what gives per-batch ordering.
type AzurePublisher struct {
	Context     context.Context
	Sender      *azservicebus.Sender
	Queue       string
	AdminClient *admin.Client
}

func NewAzurePublisher(ctx context.Context, connectionString, queue string) (*AzurePublisher, error) {
	client, err := azservicebus.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, err
	}
	sender, err := client.NewSender(queue, nil)
	if err != nil {
		return nil, err
	}
	adminClient, err := admin.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, err
	}
	return &AzurePublisher{
		Context:     ctx,
		Sender:      sender,
		Queue:       queue,
		AdminClient: adminClient,
	}, nil
}

func (p *AzurePublisher) Publish(ctx context.Context, item *WorkItem) error {
	b, err := json.Marshal(item)
	if err != nil {
		return err
	}
	sessionID := item.PartitionKey()
	return p.Sender.SendMessage(ctx, &azservicebus.Message{
		Body:      b,
		SessionID: &sessionID,
	}, nil)
}

func (p *AzurePublisher) Close() error {
	return p.Sender.Close(p.Context)
}

func (p *AzurePublisher) Health(ctx context.Context) (rsp models.ServiceHealthResp) {
	rsp.Service = models.SERVICE_BUS + " Work Queue"
	rsp.Status = models.STATUS_UP
	rsp.HealthIssue = models.HEALTH_ISSUE_NONE

	queueResp, err := p.AdminClient.GetQueue(ctx, p.Queue, nil)
	if err != nil {
		return rsp.BuildErrorResponse(err)
	}
	if *queueResp.Status != admin.EntityStatusActive {
		return rsp.BuildErrorResponse(fmt.Errorf("service bus queue %s status: %s", p.Queue, *queueResp.Status))
	}
	return rsp
}
