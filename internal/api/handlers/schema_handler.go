package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tsamsiyu/k8schema/internal/cache"
	internalerrors "github.com/tsamsiyu/k8schema/internal/errors"
)

type SchemaHandler struct {
	logger *zap.Logger
	store  *cache.Store
}

func NewSchemaHandler(logger *zap.Logger, store *cache.Store) *SchemaHandler {
	return &SchemaHandler{
		logger: logger,
		store:  store,
	}
}

// All serves the index of every known definition.
func (h *SchemaHandler) All(c *gin.Context) {
	serveDocument(c, h.store.Snapshot().Index())
}

// Definitions serves every known definition keyed by name.
func (h *SchemaHandler) Definitions(c *gin.Context) {
	serveDocument(c, h.store.Snapshot().Definitions())
}

// Definition serves a single definition.
func (h *SchemaHandler) Definition(c *gin.Context) {
	name := c.Param("name")

	def, ok := h.store.Definition(name)
	if !ok {
		c.Error(internalerrors.NewNotFoundError(name))
		return
	}

	c.JSON(http.StatusOK, def)
}

func serveDocument(c *gin.Context, doc cache.Document) {
	c.Header("ETag", doc.ETag())
	c.Header("Cache-Control", "no-cache")

	if etagMatches(c.GetHeader("If-None-Match"), doc.ETag()) {
		c.Status(http.StatusNotModified)
		return
	}

	c.DataFromReader(http.StatusOK, int64(doc.Len()), "application/json", doc.Reader(), nil)
}

// etagMatches reports whether an If-None-Match header matches etag, using the
// weak comparison GET requests call for.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
