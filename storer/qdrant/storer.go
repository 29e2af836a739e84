package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/w-h-a/medimate/storer"
	getsafe "github.com/w-h-a/medimate/util/get_safe"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// pointSpace seeds the UUIDv5 point ids so (namespace, id) always maps to
// the same point.
var pointSpace = uuid.MustParse("6f1c2a4e-93b5-4d1e-8a57-0c2b9f4e7d11")

type qdrantStorer struct {
	options storer.Options
	client  *http.Client
}

func (s *qdrantStorer) Upsert(ctx context.Context, namespace string, records []storer.Record) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	points := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		metadata := rec.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		points = append(points, map[string]any{
			"id":     PointId(namespace, rec.Id),
			"vector": rec.Embedding,
			"payload": map[string]any{
				"chunk_id":   rec.Id,
				"namespace":  namespace,
				"owner_id":   rec.OwnerId,
				"content":    rec.Content,
				"metadata":   metadata,
				"created_at": now,
			},
		})
	}

	req := map[string]any{
		"points": points,
	}

	var rsp qdrantEnvelope[json.RawMessage]

	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(s.options.Collection))

	if err := s.do(ctx, http.MethodPut, path, req, &rsp); err != nil {
		return err
	}

	if !strings.EqualFold(rsp.Status.State, "ok") && len(rsp.Status.Error) > 0 {
		return errors.New(rsp.Status.Error)
	}

	return nil
}

func (s *qdrantStorer) Search(ctx context.Context, namespace string, vector []float32, limit int, filter map[string]string) ([]storer.Record, error) {
	if limit < 1 {
		return nil, nil
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_vector":  true,
		"with_payload": true,
		"filter":       buildFilter(namespace, filter),
	}

	var rsp qdrantEnvelope[[]qdrantPointResult]

	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(s.options.Collection))

	if err := s.do(ctx, http.MethodPost, path, req, &rsp); err != nil {
		return nil, err
	}

	results := make([]storer.Record, 0, len(rsp.Result))

	for _, point := range rsp.Result {
		payload := point.Payload

		createdAt, _ := time.Parse(time.RFC3339Nano, getsafe.String(payload, "created_at"))

		results = append(results, storer.Record{
			Id:        getsafe.String(payload, "chunk_id"),
			Namespace: getsafe.String(payload, "namespace"),
			OwnerId:   getsafe.String(payload, "owner_id"),
			Content:   getsafe.String(payload, "content"),
			Metadata:  getsafe.StringMap(payload, "metadata"),
			Embedding: point.Vector,
			Score:     float32(point.Score),
			CreatedAt: createdAt,
		})
	}

	return results, nil
}

func (s *qdrantStorer) Delete(ctx context.Context, namespace string, filter map[string]string) error {
	req := map[string]any{
		"filter": buildFilter(namespace, filter),
	}

	var rsp qdrantEnvelope[json.RawMessage]

	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", url.PathEscape(s.options.Collection))

	if err := s.do(ctx, http.MethodPost, path, req, &rsp); err != nil {
		return err
	}

	if !strings.EqualFold(rsp.Status.State, "ok") && len(rsp.Status.Error) > 0 {
		return errors.New(rsp.Status.Error)
	}

	return nil
}

func (s *qdrantStorer) do(ctx context.Context, method string, path string, req any, rsp any) error {
	u := s.options.Location + path
	var buf io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, u, buf)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")

	if len(s.options.ApiKey) > 0 {
		request.Header.Set("api-key", s.options.ApiKey)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if response.StatusCode == http.StatusNotFound {
		return errNotFound
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("qdrant http %d: %s", response.StatusCode, string(payload))
	}

	if rsp != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, rsp); err != nil {
			return err
		}
	}

	return nil
}

var errNotFound = errors.New("qdrant: not found")

func (s *qdrantStorer) configure(ctx context.Context) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return s.createCollection(ctx)
}

func (s *qdrantStorer) collectionExists(ctx context.Context) (bool, error) {
	path := fmt.Sprintf("/collections/%s", url.PathEscape(s.options.Collection))

	var rsp qdrantEnvelope[json.RawMessage]

	err := s.do(ctx, http.MethodGet, path, nil, &rsp)
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return strings.EqualFold(rsp.Status.State, "ok"), nil
}

func (s *qdrantStorer) createCollection(ctx context.Context) error {
	distance := s.options.Distance
	if len(distance) == 0 {
		distance = "Cosine"
	}
	req := map[string]any{
		"vectors": map[string]any{
			"size":     s.options.VectorSize,
			"distance": distance,
		},
	}

	path := fmt.Sprintf("/collections/%s", url.PathEscape(s.options.Collection))

	var rsp qdrantEnvelope[json.RawMessage]

	if err := s.do(ctx, http.MethodPut, path, req, &rsp); err != nil {
		return err
	}

	if !strings.EqualFold(rsp.Status.State, "ok") {
		return errors.New(rsp.Status.Error)
	}

	return nil
}

// PointId derives the qdrant point id for a chunk.
func PointId(namespace string, id string) string {
	return uuid.NewSHA1(pointSpace, []byte(namespace+"/"+id)).String()
}

func NewStorer(opts ...storer.Option) storer.Storer {
	options := storer.NewOptions(opts...)

	if len(options.Location) == 0 ||
		len(options.Collection) == 0 ||
		options.VectorSize == 0 {
		panic("missing location, collection, or vector size for qdrant storer")
	}

	client := options.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	s := &qdrantStorer{
		options: options,
		client:  client,
	}

	if err := s.configure(context.Background()); err != nil {
		panic(err)
	}

	return s
}
