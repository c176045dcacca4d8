package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/habits/api/transport"
	"github.com/fastygo/habits/internal/infrastructure/monitor"
	"github.com/fastygo/habits/pkg/httpcontext"
	habitUC "github.com/fastygo/habits/usecase/habit"
)

type HealthHandler struct {
	baseHandler
	monitor *monitor.Monitor
	stores  *habitUC.Registry
}

func NewHealthHandler(mon *monitor.Monitor, stores *habitUC.Registry, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
		stores:      stores,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"services": map[string]interface{}{
			"postgresql": status.PostgreSQL,
			"redis":      status.Redis,
			"cache": map[string]interface{}{
				"online": status.Cache,
				"owners": status.CachedOwners,
			},
		},
		"open_stores": h.stores.Len(),
	}

	if status.Online() {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "dependencies unhealthy", payload))
}
