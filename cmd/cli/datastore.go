package cli

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/chartflow/import-server/internal/appconfig"
	"github.com/chartflow/import-server/internal/blobstore"
	"github.com/chartflow/import-server/internal/metastore"
	"github.com/redis/go-redis/v9"
) // .import

// CreateMetaStore picks the metadata store backend. Redis when configured,
// in-memory otherwise; the in-memory store is for local runs and tests only.
func CreateMetaStore(appConfig appconfig.AppConfig) (metastore.Store, *redis.Client, error) {
	if appConfig.RedisConnection == "" {
		logger.Warn("no redis connection configured; using in-memory metadata store")
		return metastore.NewMemoryStore(), nil, nil
	}

	opts, err := redis.ParseURL(appConfig.RedisConnection)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	return metastore.NewRedisStore(client), client, nil
} // .CreateMetaStore

// CreateBlobStore picks the blob store backend by run mode.
func CreateBlobStore(ctx context.Context, appConfig appconfig.AppConfig) (blobstore.Store, error) {
	switch Flags.RunMode {

	case RUN_MODE_AWS:
		if appConfig.S3Connection == nil {
			return nil, &appconfig.MissingConfigError{ConfigName: "S3Connection"}
		}
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			if appConfig.S3Connection.Endpoint != "" {
				o.BaseEndpoint = aws.String(appConfig.S3Connection.Endpoint)
				o.UsePathStyle = true
			}
		})
		return blobstore.NewS3Store(client, appConfig.S3Connection.BucketName), nil

	case RUN_MODE_AZURE:
		if appConfig.AzureConnection == nil {
			return nil, &appconfig.MissingConfigError{ConfigName: "AzureConnection"}
		}
		client, err := blobstore.NewAzureClient(
			appConfig.AzureConnection.StorageName,
			appConfig.AzureConnection.StorageKey,
			appConfig.AzureConnection.ContainerEndpoint,
		)
		if err != nil {
			return nil, err
		}
		return blobstore.NewAzureStore(client, appConfig.AzureBlobContainer), nil

	case RUN_MODE_LOCAL:
		return blobstore.NewFileStore(appConfig.LocalFolderBlobs), nil

	} // .switch
	return nil, errors.New("unrecognized run mode for blob store")
} // .CreateBlobStore
