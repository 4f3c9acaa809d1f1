package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/chartflow/import-server/internal/models"
)

var (
	errStorageNameEmpty     = errors.New("error storage name from app config is empty")
	errStorageKeyEmpty      = errors.New("error storage key from app config is empty")
	errStorageEndpointEmpty = errors.New("error storage endpoint from app config is empty")
)

// AzureStore keeps blobs in one container; the logical bucket becomes the
// blob name prefix.
type AzureStore struct {
	Client    *azblob.Client
	Container string
}

// NewAzureClient builds a shared-key blob client.
func NewAzureClient(storageName, storageKey, endpoint string) (*azblob.Client, error) {
	if len(strings.TrimSpace(storageName)) == 0 {
		return nil, errStorageNameEmpty
	}
	if len(strings.TrimSpace(storageKey)) == 0 {
		return nil, errStorageKeyEmpty
	}
	if len(strings.TrimSpace(endpoint)) == 0 {
		return nil, errStorageEndpointEmpty
	}

	credential, err := azblob.NewSharedKeyCredential(storageName, storageKey)
	if err != nil {
		return nil, err
	}
	return azblob.NewClientWithSharedKeyCredential(endpoint, credential, nil)
}

func NewAzureStore(client *azblob.Client, container string) *AzureStore {
	return &AzureStore{Client: client, Container: container}
}

func (s *AzureStore) blobName(bucket, key string) string {
	return bucket + "/" + key
}

func (s *AzureStore) Put(ctx context.Context, bucket, key string, data []byte) error {
	_, err := s.Client.UploadBuffer(ctx, s.Container, s.blobName(bucket, key), data, nil)
	return err
}

func (s *AzureStore) PutIfAbsent(ctx context.Context, bucket, key string, data []byte) error {
	_, err := s.Client.UploadStream(ctx, s.Container, s.blobName(bucket, key), bytes.NewReader(data), &azblob.UploadStreamOptions{
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{
				IfNoneMatch: to.Ptr(azcore.ETagAny),
			},
		},
	})
	if bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet) {
		return fmt.Errorf("%s/%s: %w", bucket, key, ErrExists)
	}
	return err
}

func (s *AzureStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	rsp, err := s.Client.DownloadStream(ctx, s.Container, s.blobName(bucket, key), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, err
	}
	defer rsp.Body.Close()
	return io.ReadAll(rsp.Body)
}

func (s *AzureStore) Health(ctx context.Context) (rsp models.ServiceHealthResp) {
	rsp.Service = models.BLOB_STORE + " (azure)"
	rsp.Status = models.STATUS_UP
	rsp.HealthIssue = models.HEALTH_ISSUE_NONE
	pager := s.Client.NewListBlobsFlatPager(s.Container, &azblob.ListBlobsFlatOptions{MaxResults: to.Ptr(int32(1))})
	if pager.More() {
		if _, err := pager.NextPage(ctx); err != nil {
			return rsp.BuildErrorResponse(err)
		}
	}
	return rsp
}
