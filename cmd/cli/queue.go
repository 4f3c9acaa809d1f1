package cli

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chartflow/import-server/internal/appconfig"
	"github.com/chartflow/import-server/internal/queue"
) // .import

// CreateWorkQueue picks the work queue backend by run mode.
func CreateWorkQueue(ctx context.Context, appConfig appconfig.AppConfig) (queue.Publisher, error) {
	switch Flags.RunMode {

	case RUN_MODE_AWS:
		if appConfig.SQSConnection == nil {
			return nil, &appconfig.MissingConfigError{ConfigName: "SQSConnection"}
		}
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		return queue.NewSQSPublisher(sqs.NewFromConfig(cfg), appConfig.SQSConnection.QueueURL), nil

	case RUN_MODE_AZURE:
		if appConfig.QueueConnection == nil {
			return nil, &appconfig.MissingConfigError{ConfigName: "QueueConnection"}
		}
		return queue.NewAzurePublisher(ctx, appConfig.QueueConnection.ConnectionString, appConfig.QueueConnection.Queue)

	case RUN_MODE_LOCAL:
		return queue.NewMemoryQueue(1024), nil

	} // .switch
	return nil, errors.New("unrecognized run mode for work queue")
} // .CreateWorkQueue
