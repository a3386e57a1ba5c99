package storage

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bull/pdf-rag/internal/metadata"
)

const (
	payloadText     = "text"
	payloadMetadata = "metadata"

	upsertBatchSize = 100
)

// QdrantConfig locates a Qdrant instance and the collection to bind to.
type QdrantConfig struct {
	// URL is the gRPC endpoint, e.g. http://localhost:6334. An https
	// scheme enables TLS.
	URL        string
	APIKey     string
	Collection string
}

// QdrantStore wraps the Qdrant client with connection management and health checks.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

var _ VectorStore = (*QdrantStore)(nil)

// NewQdrantStore creates a Qdrant client with health validation.
// It retries the health check on startup and fails fast if Qdrant stays unreachable.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &QdrantStore{client: client, collection: collection}

	if err := s.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}

	return s, nil
}

func parseQdrantURL(raw string) (host string, port int, useTLS bool, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("invalid qdrant url %q", raw)
	}

	host = u.Hostname()
	port = 6334
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid qdrant port %q: %w", p, err)
		}
	}
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		host = "[" + host + "]"
	}

	return host, port, u.Scheme == "https", nil
}

func retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(b, ctx)
}

func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, retryPolicy(ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

func (s *QdrantStore) CollectionExists(ctx context.Context) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection: %w", err)
	}
	return exists, nil
}

// EnsureCollection creates the collection with a single unnamed cosine
// vector of the given dimension. Idempotent.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension %d", ErrDimensionMismatch, dimension)
	}

	exists, err := s.CollectionExists(ctx)
	if err != nil {
		return err
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("failed to get collection: %w", err)
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != 0 && size != uint64(dimension) {
			return fmt.Errorf("%w: collection %s has %d dimensions, embeddings have %d",
				ErrDimensionMismatch, s.collection, size, dimension)
		}
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

func (s *QdrantStore) Count(ctx context.Context) (uint64, error) {
	exists, err := s.CollectionExists(ctx)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrCollectionNotFound
	}

	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", mapQdrantError(err))
	}
	return n, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// upsertWithRetry performs upsert operation with exponential backoff retry.
func (s *QdrantStore) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if status.Code(err) == codes.NotFound || status.Code(err) == codes.InvalidArgument {
			return backoff.Permanent(mapQdrantError(err))
		}
		return err
	}

	return backoff.Retry(operation, retryPolicy(ctx))
}

// Upsert stores records in batches of 100. All vectors must share one dimension.
func (s *QdrantStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := checkDimensions(records); err != nil {
		return err
	}

	for i := 0; i < len(records); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(records))

		batch := records[i:end]
		points := make([]*qdrant.PointStruct, len(batch))
		for j, rec := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(rec.ID),
				Vectors: qdrant.NewVectors(rec.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					payloadText:     rec.Text,
					payloadMetadata: map[string]any(rec.Metadata),
				}),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// Query performs a cosine similarity search. Qdrant reports similarity,
// so distance is 1 - score.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", mapQdrantError(err))
	}

	results := make([]Result, 0, len(points))
	for _, p := range points {
		results = append(results, Result{
			ID:       p.GetId().GetUuid(),
			Text:     p.GetPayload()[payloadText].GetStringValue(),
			Metadata: metadataFromPayload(p.GetPayload()[payloadMetadata]),
			Distance: 1 - float64(p.GetScore()),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	return results, nil
}

func metadataFromPayload(v *qdrant.Value) metadata.Flat {
	fields := v.GetStructValue().GetFields()
	raw := make(map[string]any, len(fields))
	for key, field := range fields {
		switch kind := field.GetKind().(type) {
		case *qdrant.Value_StringValue:
			raw[key] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			raw[key] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			raw[key] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			raw[key] = kind.BoolValue
		}
	}
	return metadata.Normalize(raw)
}

func mapQdrantError(err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %v", ErrCollectionNotFound, err)
	}
	return err
}

func checkDimensions(records []Record) error {
	dim := len(records[0].Vector)
	if dim == 0 {
		return fmt.Errorf("%w: record %s has an empty vector", ErrDimensionMismatch, records[0].ID)
	}
	for i, rec := range records {
		if len(rec.Vector) != dim {
			return fmt.Errorf("%w: record %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(rec.Vector), dim)
		}
	}
	return nil
}
