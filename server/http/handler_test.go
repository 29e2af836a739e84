package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/medimate"
	localcache "github.com/w-h-a/medimate/cache/local"
	"github.com/w-h-a/medimate/embedder/hash"
	jsonextractor "github.com/w-h-a/medimate/extractor/json"
	"github.com/w-h-a/medimate/generator"
	"github.com/w-h-a/medimate/memory/local"
	memorystorer "github.com/w-h-a/medimate/storer/memory"
	vectorstore "github.com/w-h-a/medimate/vector_store"
)

type MockGenerator struct {
	GenerateFunc      func(ctx context.Context, prompt string, opts ...generator.GenerateOption) (string, error)
	GenerateCallCount int32
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts ...generator.GenerateOption) (string, error) {
	atomic.AddInt32(&m.GenerateCallCount, 1)
	return m.GenerateFunc(ctx, prompt, opts...)
}

const rxDocument = `{"medicines":[{"name":"Paracetamol","frequency":"twice daily"},{"name":"Amoxicillin","duration":"7 days"}]}`

func newTestHandler(t *testing.T, gen generator.Generator) http.Handler {
	t.Helper()

	vectors := vectorstore.New(
		vectorstore.WithStorer(memorystorer.NewStorer()),
		vectorstore.WithEmbedder(hash.NewEmbedder()),
	)

	kit := medimate.New(local.NewStore(), vectors, gen, jsonextractor.NewExtractor(), medimate.WithCache(localcache.NewCache()))
	require.NoError(t, kit.Start(context.Background()))

	return NewHandler(kit, 1<<20)
}

func do(t *testing.T, h http.Handler, method, path, user string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	if body == nil {
		body = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, body)
	if len(user) > 0 {
		req.Header.Set(userHeader, user)
	}
	if len(contentType) > 0 {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func upload(t *testing.T, h http.Handler, user, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return do(t, h, http.MethodPost, "/api/v1/prescriptions", user, body, w.FormDataContentType())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))

	return v
}

func TestUploadAskAndSafety(t *testing.T) {
	gen := &MockGenerator{
		GenerateFunc: func(ctx context.Context, prompt string, opts ...generator.GenerateOption) (string, error) {
			if generator.NewGenerateOptions(opts...).JSON {
				return `{"otc_medicines":[{"name":"Paracetamol","reason":"analgesic"}],"consult_medicines":[{"name":"Amoxicillin","reason":"antibiotic"}]}`, nil
			}
			return "Twice daily.", nil
		},
	}

	h := newTestHandler(t, gen)

	rec := upload(t, h, "u1", "rx.json", rxDocument)
	require.Equal(t, http.StatusCreated, rec.Code)
	up := decode[medimate.Upload](t, rec)
	assert.NotEmpty(t, up.SessionId)

	rec = upload(t, h, "u1", "rx.json", rxDocument)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[medimate.Upload](t, rec).Existing)

	rec = do(t, h, http.MethodGet, "/api/v1/prescriptions", "u1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), up.PrescriptionId)

	q := bytes.NewBufferString(`{"question":"How often do I take Paracetamol?"}`)
	rec = do(t, h, http.MethodPost, "/api/v1/prescriptions/"+up.PrescriptionId+"/questions", "u1", q, "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	reply := decode[medimate.Reply](t, rec)
	assert.Equal(t, "Twice daily.", reply.Answer)
	assert.Equal(t, up.SessionId, reply.SessionId)

	rec = do(t, h, http.MethodGet, "/api/v1/sessions/"+up.SessionId+"/messages", "u1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	messages := decode[struct {
		Messages []map[string]any `json:"messages"`
	}](t, rec)
	assert.Len(t, messages.Messages, 2)

	rec = do(t, h, http.MethodPost, "/api/v1/sessions/"+up.SessionId+"/safety", "u1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"otc_medicines"`)
	assert.Contains(t, rec.Body.String(), "Amoxicillin")
}

func TestUserHeaderRequired(t *testing.T) {
	h := newTestHandler(t, &MockGenerator{})

	rec := do(t, h, http.MethodGet, "/api/v1/prescriptions", "", nil, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), userHeader)
}

func TestOtherUsersSessionIsHidden(t *testing.T) {
	h := newTestHandler(t, &MockGenerator{})

	up := decode[medimate.Upload](t, upload(t, h, "u1", "rx.json", rxDocument))

	rec := do(t, h, http.MethodGet, "/api/v1/sessions/"+up.SessionId, "u2", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/sessions/"+up.SessionId+"/safety", "u2", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/sessions/"+up.SessionId, "u1", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQuestionOnAnotherUsersPrescriptionIsHidden(t *testing.T) {
	gen := &MockGenerator{
		GenerateFunc: func(ctx context.Context, prompt string, opts ...generator.GenerateOption) (string, error) {
			return "Twice daily.", nil
		},
	}

	h := newTestHandler(t, gen)

	up := decode[medimate.Upload](t, upload(t, h, "u1", "rx.json", rxDocument))

	q := bytes.NewBufferString(`{"question":"What is in it?"}`)
	rec := do(t, h, http.MethodPost, "/api/v1/prescriptions/"+up.PrescriptionId+"/questions", "u2", q, "application/json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Paracetamol")
	assert.Equal(t, int32(0), atomic.LoadInt32(&gen.GenerateCallCount))

	rec = do(t, h, http.MethodGet, "/api/v1/prescriptions", "u2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), up.PrescriptionId)
}

func TestErrorsDoNotLeakCause(t *testing.T) {
	gen := &MockGenerator{
		GenerateFunc: func(ctx context.Context, prompt string, opts ...generator.GenerateOption) (string, error) {
			return "", errors.New("upstream secret dsn=postgres://admin:hunter2")
		},
	}

	h := newTestHandler(t, gen)

	up := decode[medimate.Upload](t, upload(t, h, "u1", "rx.json", rxDocument))

	rec := do(t, h, http.MethodPost, "/api/v1/sessions/"+up.SessionId+"/safety", "u1", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.Contains(t, rec.Body.String(), "Safety check failed")

	q := bytes.NewBufferString(`{"question":"Dose?"}`)
	rec = do(t, h, http.MethodPost, "/api/v1/prescriptions/"+up.PrescriptionId+"/questions", "u1", q, "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[medimate.Reply](t, rec).Failed)
	assert.NotContains(t, rec.Body.String(), "hunter2")

	rec = upload(t, h, "u1", "broken.json", "not json")
	assert.GreaterOrEqual(t, rec.Code, http.StatusBadRequest)
	assert.False(t, strings.Contains(rec.Body.String(), "invalid character"))
}

func TestReferenceDrugSearch(t *testing.T) {
	h := newTestHandler(t, &MockGenerator{})

	rec := do(t, h, http.MethodGet, "/api/v1/reference-drugs?q=paracetamol&limit=3", "u1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	drugs := decode[struct {
		Drugs []map[string]any `json:"drugs"`
	}](t, rec)
	assert.NotEmpty(t, drugs.Drugs)
	assert.LessOrEqual(t, len(drugs.Drugs), 3)
}

func TestMiddlewareOrder(t *testing.T) {
	var order []string

	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	vectors := vectorstore.New(
		vectorstore.WithStorer(memorystorer.NewStorer()),
		vectorstore.WithEmbedder(hash.NewEmbedder()),
	)
	kit := medimate.New(local.NewStore(), vectors, &MockGenerator{}, jsonextractor.NewExtractor())

	h := NewHandler(kit, 1<<20, mw("outer"), mw("inner"))

	rec := do(t, h, http.MethodGet, "/healthz", "", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"outer", "inner"}, order)
}
