package cli

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/chartflow/import-server/internal/appconfig"
	"github.com/chartflow/import-server/internal/blobstore"
	"github.com/chartflow/import-server/internal/eventlog"
) // .import

// CreateEventLog builds the audit stream. The file appender always runs so
// there is a local queryable history; SNS fan-out is added when configured.
func CreateEventLog(ctx context.Context, appConfig appconfig.AppConfig, blobs blobstore.Store) (*eventlog.Log, error) {
	appenders := []eventlog.Appender{
		&eventlog.FileAppender{Dir: appConfig.LocalEventsFolder},
	}

	if appConfig.SNSConnection != nil && appConfig.SNSConnection.EventArn != "" {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		appenders = append(appenders, &eventlog.SNSAppender{
			Client:   sns.NewFromConfig(cfg),
			TopicArn: appConfig.SNSConnection.EventArn,
		})
	}

	return eventlog.New(blobs, appenders...), nil
} // .CreateEventLog
