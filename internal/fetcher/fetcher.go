package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	internalerrors "github.com/tsamsiyu/k8schema/internal/errors"
	"github.com/tsamsiyu/k8schema/internal/kubeconfig"
	"github.com/tsamsiyu/k8schema/internal/metrics"
	"github.com/tsamsiyu/k8schema/internal/schema"
)

const catalogPath = "openapi/v3"

var errMalformedDocument = errors.New("malformed JSON document")

// Fetcher retrieves the complete, normalized schema set of a cluster.
type Fetcher interface {
	Fetch(ctx context.Context) (*schema.Set, error)
}

type openAPIFetcher struct {
	logger  *zap.Logger
	client  *http.Client
	server  string
	metrics *metrics.Metrics
}

func NewOpenAPIFetcher(
	logger *zap.Logger,
	client *http.Client,
	cluster *kubeconfig.Cluster,
	metrics *metrics.Metrics,
) Fetcher {
	return &openAPIFetcher{
		logger:  logger,
		client:  client,
		server:  cluster.Server,
		metrics: metrics,
	}
}

// Fetch reads the OpenAPI v3 catalog and every document it lists, one after
// the other. A catalog failure aborts the fetch; a failing path is logged and
// skipped. Definitions of later paths replace earlier ones with the same name.
func (f *openAPIFetcher) Fetch(ctx context.Context) (*schema.Set, error) {
	f.logger.Info("Fetching OpenAPI v3 catalog", zap.String("server", f.server))

	paths, err := f.fetchCatalog(ctx)
	if err != nil {
		return nil, err
	}

	set := schema.NewSet()
	skipped := 0
	for _, path := range paths {
		f.logger.Debug("Fetching schema", zap.String("path", catalogPath+"/"+path))

		defs, err := f.fetchPath(ctx, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.Wrap(ctxErr, "schema fetch interrupted")
			}

			skipped++
			f.metrics.PathFetchFailures.Inc()
			fields := []zap.Field{zap.String("path", path), zap.Error(err)}
			var pathErr *internalerrors.PathFetchError
			if errors.As(err, &pathErr) && pathErr.StatusCode != 0 {
				fields = append(fields, zap.Int("statusCode", pathErr.StatusCode))
			}
			f.logger.Error("Failed to get schema", fields...)
			continue
		}

		set.Merge(defs)
	}

	f.logger.Info("Got schemas",
		zap.Int("count", set.Len()),
		zap.Int("paths", len(paths)),
		zap.Int("skipped", skipped))

	set.Normalize()
	return set, nil
}

func (f *openAPIFetcher) fetchCatalog(ctx context.Context) ([]string, error) {
	status, body, err := f.get(ctx, catalogPath)
	if err != nil {
		return nil, internalerrors.NewCatalogFetchError(status, err)
	}
	if status != http.StatusOK {
		return nil, internalerrors.NewCatalogFetchError(status, nil)
	}

	if !gjson.ValidBytes(body) {
		return nil, internalerrors.NewCatalogFetchError(status, errMalformedDocument)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, internalerrors.NewCatalogFetchError(status, errMalformedDocument)
	}

	pathsResult := doc.Get("paths")
	if !pathsResult.Exists() {
		return nil, nil
	}
	if !pathsResult.IsObject() {
		return nil, internalerrors.NewCatalogFetchError(status, errors.Wrap(errMalformedDocument, "paths is not an object"))
	}

	var paths []string
	pathsResult.ForEach(func(key, _ gjson.Result) bool {
		paths = append(paths, key.String())
		return true
	})
	return paths, nil
}

func (f *openAPIFetcher) fetchPath(ctx context.Context, path string) (*schema.Set, error) {
	status, body, err := f.get(ctx, catalogPath, path)
	if err != nil {
		return nil, internalerrors.NewPathFetchError(path, status, err)
	}
	if status != http.StatusOK {
		return nil, internalerrors.NewPathFetchError(path, status, nil)
	}

	if !gjson.ValidBytes(body) {
		return nil, internalerrors.NewPathFetchError(path, status, errMalformedDocument)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, internalerrors.NewPathFetchError(path, status, errMalformedDocument)
	}

	defs := schema.NewSet()
	schemas := doc.Get("components.schemas")
	if !schemas.Exists() {
		return defs, nil
	}
	if !schemas.IsObject() {
		return nil, internalerrors.NewPathFetchError(path, status, errors.Wrap(errMalformedDocument, "components.schemas is not an object"))
	}

	if err := json.Unmarshal([]byte(schemas.Raw), defs); err != nil {
		return nil, internalerrors.NewPathFetchError(path, status, errors.Wrap(err, "failed to decode components.schemas"))
	}
	return defs, nil
}

// get performs a GET below the server URL and returns the status code and body.
func (f *openAPIFetcher) get(ctx context.Context, elem ...string) (int, []byte, error) {
	target, err := url.JoinPath(f.server, elem...)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to build request URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, errors.Wrap(err, "failed to read response body")
	}
	return resp.StatusCode, body, nil
}
