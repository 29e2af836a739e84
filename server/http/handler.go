package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/w-h-a/medimate"
	"github.com/w-h-a/medimate/memory"
	"github.com/w-h-a/medimate/util/apperr"
)

const userHeader = "X-User-Id"

// Kit is what the handlers need from medimate.Kit.
type Kit interface {
	Upload(ctx context.Context, userId string, filename string, r io.Reader) (medimate.Upload, error)
	ListPrescriptions(ctx context.Context, userId string) ([]memory.PrescriptionRef, error)
	OpenSession(ctx context.Context, userId string, prescriptionId string) (memory.Session, error)
	Session(ctx context.Context, sessionId string) (memory.Session, error)
	History(ctx context.Context, sessionId string, limit int) ([]memory.Turn, error)
	Ask(ctx context.Context, q medimate.Question) (medimate.Reply, error)
	CheckSafety(ctx context.Context, sessionId string) (memory.SafetyReport, error)
	SearchReferenceDrugs(ctx context.Context, query string, limit int) ([]memory.ReferenceDrug, error)
}

var _ Kit = (*medimate.Kit)(nil)

type handler struct {
	kit            Kit
	maxUploadBytes int64
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	userId := r.Header.Get(userHeader)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperr.E(apperr.CodeInvalidArgument, "upload", "a file field is required", err))
		return
	}
	defer file.Close()

	up, err := h.kit.Upload(r.Context(), userId, header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if up.Existing {
		status = http.StatusOK
	}

	writeJSON(w, status, up)
}

func (h *handler) listPrescriptions(w http.ResponseWriter, r *http.Request) {
	refs, err := h.kit.ListPrescriptions(r.Context(), r.Header.Get(userHeader))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"prescriptions": refs})
}

func (h *handler) openSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.kit.OpenSession(r.Context(), r.Header.Get(userHeader), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *handler) ask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Question  string `json:"question"`
		SessionId string `json:"session_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, apperr.E(apperr.CodeInvalidArgument, "ask", "invalid json body", err))
		return
	}

	reply, err := h.kit.Ask(r.Context(), medimate.Question{
		UserId:         r.Header.Get(userHeader),
		PrescriptionId: mux.Vars(r)["id"],
		SessionId:      body.SessionId,
		Question:       body.Question,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	turns, err := h.kit.History(r.Context(), sess.Id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": turns})
}

func (h *handler) checkSafety(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	report, err := h.kit.CheckSafety(r.Context(), sess.Id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *handler) referenceDrugs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	drugs, err := h.kit.SearchReferenceDrugs(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"drugs": drugs})
}

// ownedSession loads the session in the path and hides sessions of other
// users behind a 404.
func (h *handler) ownedSession(w http.ResponseWriter, r *http.Request) (memory.Session, bool) {
	sess, err := h.kit.Session(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return memory.Session{}, false
	}

	if sess.UserId != r.Header.Get(userHeader) {
		writeError(w, r, apperr.E(apperr.CodeNotFound, "session", "session not found", nil))
		return memory.Session{}, false
	}

	return sess, true
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(strings.TrimSpace(r.Header.Get(userHeader))) == 0 {
			writeError(w, r, apperr.E(apperr.CodeInvalidArgument, "auth", userHeader+" header is required", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.InfoContext(r.Context(), "request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError never exposes the cause, only the safe message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)

	var ae *apperr.AppError
	if !errors.As(err, &ae) || status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, map[string]string{
		"error": apperr.SafeMessage(err, http.StatusText(status)),
	})
}

func NewHandler(kit Kit, maxUploadBytes int64, ms ...func(h http.Handler) http.Handler) http.Handler {
	h := &handler{
		kit:            kit,
		maxUploadBytes: maxUploadBytes,
	}

	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(requireUser)

	api.HandleFunc("/prescriptions", h.upload).Methods(http.MethodPost)
	api.HandleFunc("/prescriptions", h.listPrescriptions).Methods(http.MethodGet)
	api.HandleFunc("/prescriptions/{id}/session", h.openSession).Methods(http.MethodPost)
	api.HandleFunc("/prescriptions/{id}/questions", h.ask).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", h.getSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/messages", h.listMessages).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/safety", h.checkSafety).Methods(http.MethodPost)
	api.HandleFunc("/reference-drugs", h.referenceDrugs).Methods(http.MethodGet)

	var wrapped http.Handler = router
	for i := len(ms) - 1; i >= 0; i-- {
		wrapped = ms[i](wrapped)
	}

	return logRequests(wrapped)
}
