package appconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/chartflow/import-server/pkg/sloger"
	"github.com/sethvargo/go-envconfig"
) // .import

var logger *slog.Logger

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

type RootResp struct {
	System     string `json:"system"`
	Product    string `json:"product"`
	App        string `json:"app"`
	ServerTime string `json:"server_time"`
} // .rootResp

type AppConfig struct {

	// App and for Logger
	LoggerDebugOn bool `env:"LOGGER_DEBUG_ON"`

	Environment string `env:"ENVIRONMENT, default=DEV"`

	// Server
	ServerProtocol string `env:"SERVER_PROTOCOL, default=http"`
	ServerHostname string `env:"SERVER_HOSTNAME, default=localhost"`
	ServerPort     string `env:"SERVER_PORT, default=8080"`

	// Local backends
	LocalFolderBlobs  string `env:"LOCAL_FOLDER_BLOBS, default=./data/blobs"`
	LocalEventsFolder string `env:"LOCAL_EVENTS_FOLDER, default=./data/events"`

	// Metadata store
	RedisConnection string `env:"REDIS_CONNECTION_STRING"`

	// Azure backends
	AzureConnection    *AzureStorageConfig `env:", prefix=AZURE_, noinit"`
	AzureBlobContainer string              `env:"AZURE_BLOB_CONTAINER_NAME"`
	QueueConnection    *AzureQueueConfig   `env:", prefix=QUEUE_, noinit"`

	// AWS backends
	S3Connection  *S3StorageConfig `env:", prefix=S3_, noinit"`
	SQSConnection *SQSQueueConfig  `env:", prefix=SQS_, noinit"`
	SNSConnection *SNSConfig       `env:", prefix=SNS_, noinit"`

	// oauth
	OauthConfig *OauthConfig `env:", prefix=OAUTH_"`

	// External collaborators
	RasterizerEndpoint   string `env:"RASTERIZER_ENDPOINT"`
	VendorParserEndpoint string `env:"VENDOR_PARSER_ENDPOINT"`

	// Per-org format defaults (yaml)
	FormatDefaultsFile string `env:"FORMAT_DEFAULTS_FILE"`

	GenerationStaleAfter time.Duration `env:"GENERATION_STALE_AFTER, default=10m"`
} // .AppConfig

func (conf *AppConfig) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	jsonResp, err := json.Marshal(RootResp{
		System:     "CHARTFLOW",
		Product:    "IMPORT API",
		App:        "import server",
		ServerTime: time.Now().Format(time.RFC3339Nano),
	}) // .jsonResp
	if err != nil {
		errMsg := "error marshal json for root response"
		logger.Error(errMsg, "error", err.Error())
		http.Error(w, errMsg, http.StatusInternalServerError)
		return
	} // .if

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonResp)
}

type AzureStorageConfig struct {
	StorageName       string `env:"STORAGE_ACCOUNT"`
	StorageKey        string `env:"STORAGE_KEY"`
	ContainerEndpoint string `env:"ENDPOINT"`
} // .AzureStorageConfig

type AzureQueueConfig struct {
	ConnectionString string `env:"CONNECTION_STRING"`
	Queue            string `env:"QUEUE"`
}

type S3StorageConfig struct {
	Endpoint   string `env:"ENDPOINT"`
	BucketName string `env:"BUCKET_NAME"`
}

type SQSQueueConfig struct {
	QueueURL string `env:"QUEUE_URL"`
}

type SNSConfig struct {
	EventArn string `env:"EVENT_ARN"`
}

type OauthConfig struct {
	AuthEnabled    bool   `env:"AUTH_ENABLED, default=false"`
	IssuerUrl      string `env:"ISSUER_URL"`
	RequiredScopes string `env:"REQUIRED_SCOPES"`
	SigningSecret  string `env:"SIGNING_SECRET"`
}

var LoadedConfig = &AppConfig{}

func Handler() http.Handler {
	return LoadedConfig
}

// ParseConfig loads app configuration based on environment variables and returns AppConfig struct
func ParseConfig(ctx context.Context) (AppConfig, error) {

	var ac AppConfig
	if err := envconfig.Process(ctx, &ac); err != nil {
		return AppConfig{}, err
	} // .if

	if ac.AzureConnection != nil {
		if ac.AzureConnection.StorageName == "" || ac.AzureConnection.StorageKey == "" {
			return AppConfig{}, fmt.Errorf("missing required values for connecting to Azure")
		}
		if ac.AzureConnection.ContainerEndpoint == "" {
			ac.AzureConnection.ContainerEndpoint = fmt.Sprintf("https://%s.blob.core.windows.net", ac.AzureConnection.StorageName)
		}
	}

	if ac.S3Connection != nil {
		if ac.S3Connection.BucketName == "" {
			return AppConfig{}, fmt.Errorf("missing required values for connecting to AWS S3")
		}
	}

	if ac.SQSConnection != nil && ac.SQSConnection.QueueURL == "" {
		return AppConfig{}, &MissingConfigError{ConfigName: "SQSQueueURL"}
	}

	LoadedConfig = &ac
	return ac, nil
}
