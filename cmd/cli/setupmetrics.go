package cli

import (
	"github.com/chartflow/import-server/internal/metrics"
)

func setupMetrics() {
	if err := metrics.RegisterMetrics(metrics.DefaultMetrics...); err != nil {
		logger.Error("error registering metrics collectors", "error", err)
	}
} // setupMetrics
