package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/chartflow/import-server/internal/models"
)

type Checkable interface {
	Health(ctx context.Context) models.ServiceHealthResp
}

var (
	mu     sync.Mutex
	checks []Checkable
)

func Register(c ...Checkable) {
	mu.Lock()
	defer mu.Unlock()
	checks = append(checks, c...)
}

type AppHealthResp struct {
	Status   string                     `json:"status"`
	Services []models.ServiceHealthResp `json:"services"`
}

func Check(ctx context.Context) AppHealthResp {
	mu.Lock()
	registered := append([]Checkable(nil), checks...)
	mu.Unlock()

	rsp := AppHealthResp{Status: models.STATUS_UP}
	for _, c := range registered {
		svc := c.Health(ctx)
		rsp.Services = append(rsp.Services, svc)
		if svc.Status != models.STATUS_UP {
			rsp.Status = models.STATUS_DEGRADED
		}
	}
	return rsp
}

func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp := Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if rsp.Status != models.STATUS_UP {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(rsp)
	})
}
