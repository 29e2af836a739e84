package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/medimate/storer"
)

type fakeQdrant struct {
	mtx      sync.Mutex
	created  bool
	bodies   map[string]map[string]any
	requests []string
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.bodies[r.Method+" "+r.URL.Path] = body

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/collections/chunks":
		if !f.created {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"ok","result":{}}`))
	case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks":
		f.created = true
		w.Write([]byte(`{"status":"ok","result":true}`))
	case strings.HasSuffix(r.URL.Path, "/points/search"):
		w.Write([]byte(`{"status":"ok","result":[{"id":"x","score":0.9,"vector":[1,0],"payload":{"chunk_id":"a-0","namespace":"prescriptions","owner_id":"a","content":"Date: today","metadata":{"prescription_id":"a"}}}]}`))
	default:
		w.Write([]byte(`{"status":"ok","result":{}}`))
	}
}

func TestQdrantStorer(t *testing.T) {
	fake := &fakeQdrant{bodies: map[string]map[string]any{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewStorer(
		storer.WithLocation(srv.URL),
		storer.WithCollection("chunks"),
		storer.WithVectorSize(2),
		storer.WithHTTPClient(srv.Client()),
	)

	assert.True(t, fake.created)

	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "prescriptions", []storer.Record{
		{Id: "a-0", OwnerId: "a", Content: "Date: today", Metadata: map[string]string{"prescription_id": "a"}, Embedding: []float32{1, 0}},
	}))

	upsert := fake.bodies["PUT /collections/chunks/points"]
	points := upsert["points"].([]any)
	require.Len(t, points, 1)
	assert.Equal(t, PointId("prescriptions", "a-0"), points[0].(map[string]any)["id"])

	got, err := s.Search(ctx, "prescriptions", []float32{1, 0}, 3, map[string]string{"prescription_id": "a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a-0", got[0].Id)
	assert.Equal(t, "a", got[0].Metadata["prescription_id"])
	assert.InDelta(t, 0.9, got[0].Score, 1e-6)

	search := fake.bodies["POST /collections/chunks/points/search"]
	must := search["filter"].(map[string]any)["must"].([]any)
	assert.Len(t, must, 2)

	require.NoError(t, s.Delete(ctx, "prescriptions", nil))
}

func TestPointIdIsDeterministic(t *testing.T) {
	assert.Equal(t, PointId("prescriptions", "a-0"), PointId("prescriptions", "a-0"))
	assert.NotEqual(t, PointId("prescriptions", "a-0"), PointId("otc_medicines", "a-0"))
}
