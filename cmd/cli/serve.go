package cli

import (
	"context"
	"net/http"

	"github.com/chartflow/import-server/internal/aggregate"
	"github.com/chartflow/import-server/internal/appconfig"
	"github.com/chartflow/import-server/internal/batch"
	"github.com/chartflow/import-server/internal/extsvc"
	"github.com/chartflow/import-server/internal/generators"
	"github.com/chartflow/import-server/internal/handlerimport"
	"github.com/chartflow/import-server/internal/health"
	"github.com/chartflow/import-server/internal/middleware"
	"github.com/chartflow/import-server/internal/models"
	"github.com/chartflow/import-server/internal/oauth"
	"github.com/chartflow/import-server/internal/record"
)

// Serve wires every backend for the selected run mode and returns the http
// handler ready to mount.
func Serve(ctx context.Context, appConfig appconfig.AppConfig) (http.Handler, error) {

	meta, redisClient, err := CreateMetaStore(appConfig)
	if err != nil {
		logger.Error("error starting app, error configuring metadata store", "error", err)
		return nil, err
	}
	if hc, ok := meta.(health.Checkable); ok {
		health.Register(hc)
	}

	blobs, err := CreateBlobStore(ctx, appConfig)
	if err != nil {
		logger.Error("error starting app, error configuring blob store", "error", err)
		return nil, err
	}
	health.Register(blobs)

	workQueue, err := CreateWorkQueue(ctx, appConfig)
	if err != nil {
		logger.Error("error starting app, error configuring work queue", "error", err)
		return nil, err
	}
	health.Register(workQueue)

	events, err := CreateEventLog(ctx, appConfig, blobs)
	if err != nil {
		logger.Error("error starting app, error configuring event log", "error", err)
		return nil, err
	}

	agg := &aggregate.Aggregator{Meta: meta}

	var locker batch.GenerationLocker = batch.NewLocalLocker()
	if redisClient != nil {
		locker = batch.NewRedsyncLocker(redisClient)
	}

	if appConfig.GenerationStaleAfter > 0 {
		batch.GenerationStaleAfter = appConfig.GenerationStaleAfter
	}

	raster := registerGenerators(appConfig)

	batches := &batch.Manager{
		Meta:   meta,
		Blobs:  blobs,
		Queue:  workQueue,
		Events: events,
		Agg:    agg,
		Raster: raster,
		Locker: locker,
	}
	records := &record.Manager{
		Meta:   meta,
		Blobs:  blobs,
		Queue:  workQueue,
		Events: events,
		Agg:    agg,
	}

	validator, err := oauth.NewValidator(ctx, appConfig.OauthConfig)
	if err != nil {
		logger.Error("error starting app, error configuring token validation", "error", err)
		return nil, err
	}
	auth := &middleware.AuthMiddleware{
		AuthEnabled: appConfig.OauthConfig != nil && appConfig.OauthConfig.AuthEnabled,
		Validator:   validator,
	}

	var defaults *appconfig.FormatDefaults
	if appConfig.FormatDefaultsFile != "" {
		defaults, err = appconfig.LoadFormatDefaults(appConfig.FormatDefaultsFile)
		if err != nil {
			logger.Error("error starting app, error loading format defaults", "error", err)
			return nil, err
		}
	}

	setupMetrics()

	handler := handlerimport.New(appConfig, batches, records, auth, defaults)
	return handler.Router(), nil
} // .Serve

// registerGenerators installs one record generator per supported data format.
// The pdf rasterizer and vendor parsers are remote services; formats without
// a configured endpoint simply have no generator and fail generation cleanly.
func registerGenerators(appConfig appconfig.AppConfig) generators.Rasterizer {
	generators.Register(models.FormatDelimited, &generators.DelimitedGenerator{})

	var raster generators.Rasterizer
	if appConfig.RasterizerEndpoint != "" {
		raster = extsvc.NewHTTPRasterizer(appConfig.RasterizerEndpoint)
		generators.Register(models.FormatPDF, &generators.PDFGenerator{Raster: raster})
	} else {
		logger.Warn("no rasterizer endpoint configured; pdf batches cannot generate")
	}

	if appConfig.VendorParserEndpoint != "" {
		vendors := map[models.DataFormat]models.RecordFormat{
			models.FormatVendorA: models.RecordFormatVendorARecord,
			models.FormatVendorB: models.RecordFormatVendorBRecord,
			models.FormatVendorC: models.RecordFormatVendorCRecord,
		}
		for format, recordFormat := range vendors {
			generators.Register(format, &generators.VendorGenerator{
				Parser:       extsvc.NewHTTPRecordSetParser(appConfig.VendorParserEndpoint, string(format)),
				RecordFormat: recordFormat,
			})
		}
	} else {
		logger.Warn("no vendor parser endpoint configured; vendor batches cannot generate")
	}

	return raster
} // .registerGenerators
