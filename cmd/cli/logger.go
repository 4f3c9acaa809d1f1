package cli

import (
	"log/slog"
	"os"

	"github.com/chartflow/import-server/internal/appconfig"
	"github.com/chartflow/import-server/pkg/sloger"
)

var (
	logger *slog.Logger
)

func init() {
	// add package name to app logger
	logger = sloger.With("pkg", "cli")
}

// AppLogger, this is the custom application logger for uniformity
func AppLogger(appConfig appconfig.AppConfig) *slog.Logger {

	// Configure debug on if needed, otherwise should be off
	opts := &slog.HandlerOptions{
		AddSource: true,
	} // .opts

	if appConfig.LoggerDebugOn {
		opts.Level = slog.LevelDebug

	} // .if

	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))

	appLogger := logger.With(
		slog.Group("app_info",
			slog.String("System", "CHARTFLOW"),
			slog.String("Product", "IMPORT API"),
			slog.String("App", "IMPORT SERVER"),
			slog.String("Env", appConfig.Environment),
		)) // .appLogger

	return appLogger
} // .AppLogger
