package local

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/w-h-a/medimate/memory"
	"github.com/w-h-a/medimate/prescription"
)

type pair struct {
	userId string
	key    string
}

type localStore struct {
	options         memory.Options
	counter         atomic.Uint64
	prescriptions   map[string]prescription.Prescription
	byFilename      map[pair]string
	sessions        map[string]memory.Session
	byPrescription  map[pair]string
	sessionOrder    []string
	turns           map[string][]memory.Turn
	reports         map[string]memory.SafetyReport
	referenceDrugs  []memory.ReferenceDrug
	referenceSchema int
	mtx             sync.RWMutex
}

func (s *localStore) SavePrescription(ctx context.Context, p prescription.Prescription) (string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	k := pair{p.UserId, p.Filename}

	if id, ok := s.byFilename[k]; ok {
		return id, nil
	}

	if len(p.Id) == 0 {
		p.Id = fmt.Sprintf("prescription-%d", s.counter.Add(1))
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	s.prescriptions[p.Id] = p
	s.byFilename[k] = p.Id

	return p.Id, nil
}

func (s *localStore) GetPrescription(ctx context.Context, prescriptionId string) (prescription.Prescription, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	p, ok := s.prescriptions[prescriptionId]
	if !ok {
		return prescription.Prescription{}, memory.ErrNotFound
	}

	return p, nil
}

func (s *localStore) GetPrescriptionByFilename(ctx context.Context, userId string, filename string) (string, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	id, ok := s.byFilename[pair{userId, filename}]
	if !ok {
		return "", memory.ErrNotFound
	}

	return id, nil
}

func (s *localStore) GetOrCreateSession(ctx context.Context, userId string, prescriptionId string, opts ...memory.SessionOption) (string, error) {
	options := memory.NewSessionOptions(opts...)

	s.mtx.Lock()
	defer s.mtx.Unlock()

	k := pair{userId, prescriptionId}

	if id, ok := s.byPrescription[k]; ok {
		return id, nil
	}

	id := fmt.Sprintf("session-%d", s.counter.Add(1))

	s.sessions[id] = memory.Session{
		Id:             id,
		UserId:         userId,
		PrescriptionId: prescriptionId,
		Title:          options.Title,
		Filename:       options.Filename,
		Details:        options.Details,
		CreatedAt:      time.Now().UTC(),
	}
	s.byPrescription[k] = id
	s.sessionOrder = append(s.sessionOrder, id)
	s.turns[id] = []memory.Turn{}

	return id, nil
}

func (s *localStore) ListPrescriptions(ctx context.Context, userId string) ([]memory.PrescriptionRef, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	refs := []memory.PrescriptionRef{}

	for _, id := range s.sessionOrder {
		sess := s.sessions[id]
		if sess.UserId != userId {
			continue
		}
		refs = append(refs, memory.PrescriptionRef{Id: sess.PrescriptionId, Title: sess.Title})
	}

	return refs, nil
}

func (s *localStore) GetSession(ctx context.Context, sessionId string) (memory.Session, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	sess, ok := s.sessions[sessionId]
	if !ok {
		return memory.Session{}, memory.ErrNotFound
	}

	return sess, nil
}

func (s *localStore) GetSessionDetails(ctx context.Context, sessionId string) (string, error) {
	sess, err := s.GetSession(ctx, sessionId)
	if err != nil {
		return "", err
	}

	return sess.Details, nil
}

func (s *localStore) AppendTurn(ctx context.Context, sessionId string, role memory.Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.sessions[sessionId]; !ok {
		return memory.ErrNotFound
	}

	s.turns[sessionId] = append(s.turns[sessionId], memory.Turn{
		SessionId: sessionId,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})

	return nil
}

func (s *localStore) ListTurns(ctx context.Context, sessionId string, opts ...memory.ListTurnsOption) ([]memory.Turn, error) {
	options := memory.NewListTurnsOptions(opts...)

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	history, ok := s.turns[sessionId]
	if !ok {
		return nil, memory.ErrNotFound
	}

	return slices.Clone(memory.Recent(history, options.Limit)), nil
}

func (s *localStore) GetSafetyReport(ctx context.Context, sessionId string) (memory.SafetyReport, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	report, ok := s.reports[sessionId]
	if !ok {
		return memory.SafetyReport{}, memory.ErrNotFound
	}

	return report, nil
}

func (s *localStore) SaveSafetyReport(ctx context.Context, sessionId string, report memory.SafetyReport) (memory.SafetyReport, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if existing, ok := s.reports[sessionId]; ok {
		return existing, nil
	}

	report = report.Normalize()
	s.reports[sessionId] = report

	return report, nil
}

func (s *localStore) ReferenceSchemaVersion(ctx context.Context) (int, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.referenceSchema, nil
}

func (s *localStore) ListReferenceDrugs(ctx context.Context) ([]memory.ReferenceDrug, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	drugs := make([]memory.ReferenceDrug, 0, len(s.referenceDrugs))
	for _, d := range s.referenceDrugs {
		drugs = append(drugs, memory.ReferenceDrug{Name: d.Name, Metadata: maps.Clone(d.Metadata)})
	}

	return drugs, nil
}

func (s *localStore) ReplaceReferenceDrugs(ctx context.Context, drugs []memory.ReferenceDrug, version int) error {
	copied := make([]memory.ReferenceDrug, 0, len(drugs))
	for _, d := range drugs {
		copied = append(copied, memory.ReferenceDrug{Name: d.Name, Metadata: maps.Clone(d.Metadata)})
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.referenceDrugs = copied
	s.referenceSchema = version

	return nil
}

func (s *localStore) Close(ctx context.Context) error {
	return nil
}

// Seed loads a reference list and schema version as if an earlier process
// had written them.
func Seed(drugs []memory.ReferenceDrug, version int) memory.Option {
	return func(o *memory.Options) {
		o.Context = context.WithValue(o.Context, seedKey{}, seed{drugs: drugs, version: version})
	}
}

type seedKey struct{}

type seed struct {
	drugs   []memory.ReferenceDrug
	version int
}

func NewStore(opts ...memory.Option) memory.Store {
	options := memory.NewOptions(opts...)

	s := &localStore{
		options:        options,
		prescriptions:  map[string]prescription.Prescription{},
		byFilename:     map[pair]string{},
		sessions:       map[string]memory.Session{},
		byPrescription: map[pair]string{},
		sessionOrder:   []string{},
		turns:          map[string][]memory.Turn{},
		reports:        map[string]memory.SafetyReport{},
		mtx:            sync.RWMutex{},
	}

	if sd, ok := options.Context.Value(seedKey{}).(seed); ok {
		s.referenceDrugs = sd.drugs
		s.referenceSchema = sd.version
	}

	return s
}
