package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tsamsiyu/k8schema/internal/cache"
	"github.com/tsamsiyu/k8schema/internal/refresh"
)

// RefreshStatus reports on the background refresh loop.
type RefreshStatus interface {
	State() refresh.State
	LastSuccess() time.Time
	LastError() error
}

type HealthHandler struct {
	store  *cache.Store
	status RefreshStatus
}

func NewHealthHandler(store *cache.Store, status RefreshStatus) *HealthHandler {
	return &HealthHandler{
		store:  store,
		status: status,
	}
}

type ReadinessResponse struct {
	Status      string     `json:"status"`
	State       string     `json:"state"`
	Generation  uint64     `json:"generation"`
	Schemas     int        `json:"schemas"`
	LastRefresh *time.Time `json:"lastRefresh,omitempty"`
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

// Health answers as long as the process serves HTTP.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Ready is 503 until a refresh has installed a schema set. A later failed
// refresh does not make the server unready since the last good set is still
// served; the failure is reported in lastError.
func (h *HealthHandler) Ready(c *gin.Context) {
	snapshot := h.store.Snapshot()

	resp := ReadinessResponse{
		Status:     "ready",
		State:      h.status.State().String(),
		Generation: snapshot.Generation(),
		Schemas:    snapshot.Len(),
	}
	if refreshedAt := snapshot.RefreshedAt(); !refreshedAt.IsZero() {
		resp.LastRefresh = &refreshedAt
	}
	if lastSuccess := h.status.LastSuccess(); !lastSuccess.IsZero() {
		resp.LastSuccess = &lastSuccess
	}
	if err := h.status.LastError(); err != nil {
		resp.LastError = err.Error()
	}

	if snapshot.Generation() == 0 {
		resp.Status = "not ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}
