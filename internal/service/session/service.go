package session

import (
	"context"
	"errors"
	"strings"

	"github.com/w-h-a/medimate/memory"
	"github.com/w-h-a/medimate/util/apperr"
)

const unavailable = "Your history is unavailable right now. Please try again."

type Service struct {
	store memory.Store
}

func (s *Service) ListPrescriptions(ctx context.Context, userId string) ([]memory.PrescriptionRef, error) {
	if len(strings.TrimSpace(userId)) == 0 {
		return nil, apperr.E(apperr.CodeInvalidArgument, "Service.ListPrescriptions", "user is required", nil)
	}

	refs, err := s.store.ListPrescriptions(ctx, userId)
	if err != nil {
		return nil, apperr.Upstream("Service.ListPrescriptions", unavailable, err)
	}

	return refs, nil
}

// Open returns the user's session for a prescription they uploaded.
func (s *Service) Open(ctx context.Context, userId string, prescriptionId string) (memory.Session, error) {
	const op = "Service.Open"

	if len(strings.TrimSpace(userId)) == 0 || len(strings.TrimSpace(prescriptionId)) == 0 {
		return memory.Session{}, apperr.E(apperr.CodeInvalidArgument, op, "user and prescription are required", nil)
	}

	sessionId, err := memory.OpenSession(ctx, s.store, userId, prescriptionId)
	if errors.Is(err, memory.ErrNotFound) {
		return memory.Session{}, apperr.E(apperr.CodeNotFound, op, "prescription not found", err)
	}
	if err != nil {
		return memory.Session{}, apperr.Upstream(op, unavailable, err)
	}

	return s.Get(ctx, sessionId)
}

func (s *Service) Get(ctx context.Context, sessionId string) (memory.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionId)
	if errors.Is(err, memory.ErrNotFound) {
		return memory.Session{}, apperr.E(apperr.CodeNotFound, "Service.Get", "session not found", err)
	}
	if err != nil {
		return memory.Session{}, apperr.Upstream("Service.Get", unavailable, err)
	}

	return sess, nil
}

func (s *Service) Details(ctx context.Context, sessionId string) (string, error) {
	sess, err := s.Get(ctx, sessionId)
	if err != nil {
		return "", err
	}

	return sess.Details, nil
}

// History lists the session's turns oldest first. limit <= 0 returns all.
func (s *Service) History(ctx context.Context, sessionId string, limit int) ([]memory.Turn, error) {
	turns, err := s.store.ListTurns(ctx, sessionId, memory.WithTurnLimit(limit))
	if errors.Is(err, memory.ErrNotFound) {
		return nil, apperr.E(apperr.CodeNotFound, "Service.History", "session not found", err)
	}
	if err != nil {
		return nil, apperr.Upstream("Service.History", unavailable, err)
	}

	return turns, nil
}

func New(
	store memory.Store,
) *Service {
	return &Service{
		store: store,
	}
}
