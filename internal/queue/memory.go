package queue

import (
	"context"
	"log/slog"

	"github.com/chartflow/import-server/internal/models"
)

var MaxRetries = 5

// MemoryQueue backs local runs and tests with a plain channel.
type MemoryQueue struct {
	Chan   chan *WorkItem
	closed bool
}

func NewMemoryQueue(buffer int) *MemoryQueue {
	return &MemoryQueue{Chan: make(chan *WorkItem, buffer)}
}

func (mq *MemoryQueue) Publish(_ context.Context, item *WorkItem) error {
	if mq.Chan != nil && !mq.closed {
		go func() {
			mq.Chan <- item
		}()
	}
	return nil
}

func (mq *MemoryQueue) Listen(ctx context.Context, process func(context.Context, *WorkItem) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case item := <-mq.Chan:
			if err := process(ctx, item); err != nil {
				slog.Error("failed to handle work item", "item", item, "error", err.Error())
				if item.RetryCount < MaxRetries {
					item.RetryCount++
					// Retrying in a separate go routine so this doesn't block on channel write.
					go func() {
						mq.Chan <- item
					}()
				}
			}
		}
	}
}

func (mq *MemoryQueue) Close() error {
	mq.closed = true
	return nil
}

func (mq *MemoryQueue) Health(_ context.Context) (rsp models.ServiceHealthResp) {
	rsp.Service = "Memory Work Queue"
	rsp.Status = models.STATUS_UP
	rsp.HealthIssue = models.HEALTH_ISSUE_NONE
	return rsp
}
