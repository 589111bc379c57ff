// Package storage wraps the Qdrant vector database: collection lifecycle and
// point upsert, search and delete.
package storage

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/logger"
)

const (
	defaultGRPCPort = 6334
	restPort        = 6333
)

// indexedFields get keyword payload indexes on every collection.
var indexedFields = []string{FieldMongoID, FieldMerchantID}

// QdrantStorage is a long-lived Qdrant client shared by the indexer and the
// search layer. It adds no retries to data operations.
type QdrantStorage struct {
	client *qdrant.Client
	host   string
	port   int
	logger *zap.Logger
}

// Connect creates a Qdrant client for rawURL and waits for the server to
// report healthy, retrying with exponential backoff.
// Accepted forms: "http://host:6334", "https://host", "host:6334", "host".
func Connect(ctx context.Context, rawURL, apiKey string, log *zap.Logger) (*QdrantStorage, error) {
	host, port, useTLS, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, storeError("connect", "", err)
	}

	s := &QdrantStorage{
		client: client,
		host:   host,
		port:   port,
		logger: logger.OrNop(log),
	}

	if err := s.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, storeError("connect", "", err)
	}

	s.logger.Info("Connected to Qdrant", zap.String("host", host), zap.Int("port", port), zap.Bool("tls", useTLS))
	return s, nil
}

// ParseURL extracts the gRPC host, port and TLS setting from a Qdrant URL.
func ParseURL(rawURL string) (host string, port int, useTLS bool, err error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", 0, false, fmt.Errorf("%w: qdrant url is empty", ErrInvalidInput)
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, false, fmt.Errorf("%w: parse qdrant url: %v", ErrInvalidInput, err)
	}

	switch u.Scheme {
	case "http", "grpc":
	case "https", "grpcs":
		useTLS = true
	default:
		return "", 0, false, fmt.Errorf("%w: unsupported qdrant url scheme %q", ErrInvalidInput, u.Scheme)
	}

	host = u.Hostname()
	if host == "" {
		return "", 0, false, fmt.Errorf("%w: qdrant url has no host", ErrInvalidInput)
	}

	port = defaultGRPCPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("%w: invalid qdrant port %q", ErrInvalidInput, p)
		}
	}
	// QDRANT_URL often names the REST port; this client speaks gRPC.
	if port == restPort {
		port = defaultGRPCPort
	}
	return host, port, useTLS, nil
}

// Addr returns host:port of the gRPC endpoint.
func (s *QdrantStorage) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return storeError("health", "", err)
	}
	if result == nil || result.GetTitle() == "" {
		return storeError("health", "", fmt.Errorf("health check returned invalid response"))
	}
	return nil
}

// EnsureCollection creates the collection with dim-sized cosine vectors and
// keyword indexes on mongoId and merchantId unless it already exists.
// Losing a creation race to another instance is not an error.
func (s *QdrantStorage) EnsureCollection(ctx context.Context, name string, dim int) error {
	if name == "" || dim <= 0 {
		return fmt.Errorf("%w: collection %q with dimension %d", ErrInvalidInput, name, dim)
	}

	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return storeError("list collections", name, err)
	}
	if slices.Contains(collections, name) {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		if isAlreadyExists(err) {
			s.logger.Debug("Collection created concurrently", zap.String("collection", name))
			return nil
		}
		return storeError("create collection", name, err)
	}

	if err := s.createPayloadIndexes(ctx, name); err != nil {
		return err
	}

	s.logger.Info("Created collection", zap.String("collection", name), zap.Int("dim", dim))
	return nil
}

// createPayloadIndexes indexes the fields every delete and search filters on.
func (s *QdrantStorage) createPayloadIndexes(ctx context.Context, collection string) error {
	for _, field := range indexedFields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil && !isAlreadyExists(err) {
			return storeError("create index "+field, collection, err)
		}
	}
	return nil
}

// Upsert writes points, overwriting any point with the same id, and waits
// for the write to be applied.
func (s *QdrantStorage) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		if p.ID == "" || len(p.Vector) == 0 {
			return fmt.Errorf("%w: point %d has no id or vector", ErrInvalidInput, i)
		}
		payload, err := toPayload(p.Payload)
		if err != nil {
			return fmt.Errorf("point %s: %w", p.ID, err)
		}
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return storeError("upsert", collection, err)
	}
	return nil
}

// Search returns up to q.Limit points nearest to q.Vector, best first.
func (s *QdrantStorage) Search(ctx context.Context, collection string, q SearchQuery) ([]ScoredPoint, error) {
	if len(q.Vector) == 0 || q.Limit <= 0 {
		return nil, fmt.Errorf("%w: search needs a vector and a positive limit", ErrInvalidInput)
	}
	filter, err := toFilter(q.Filter)
	if err != nil {
		return nil, err
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(q.Vector...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(q.Limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, storeError("search", collection, err)
	}

	points := make([]ScoredPoint, 0, len(results))
	for _, r := range results {
		points = append(points, ScoredPoint{
			ID:      pointIDString(r.GetId()),
			Score:   float64(r.GetScore()),
			Payload: fromPayload(r.GetPayload()),
		})
	}
	return points, nil
}

// Delete removes every point matching the filter. An empty filter is
// rejected rather than clearing the collection.
func (s *QdrantStorage) Delete(ctx context.Context, collection string, f Filter) error {
	if f.IsEmpty() {
		return fmt.Errorf("%w: delete requires at least one condition", ErrInvalidInput)
	}
	filter, err := toFilter(&f)
	if err != nil {
		return err
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return storeError("delete", collection, err)
	}
	return nil
}

// DeletePoints removes points by id.
func (s *QdrantStorage) DeletePoints(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return storeError("delete points", collection, err)
	}
	return nil
}

// CollectionInfo retrieves collection statistics.
func (s *QdrantStorage) CollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error) {
	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return nil, storeError("collection info", collection, err)
	}
	return &CollectionInfo{
		Name:        collection,
		PointsCount: info.GetPointsCount(),
	}, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
