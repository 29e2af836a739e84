// Package memorytest holds the behaviour every memory.Store backend shares.
// Backends run it from their own tests; ids are unique per run so the suite
// can point at a database that outlives it.
package memorytest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/medimate/memory"
	"github.com/w-h-a/medimate/prescription"
)

func Run(t *testing.T, s memory.Store) {
	t.Run("SavePrescriptionInsertIfAbsent", func(t *testing.T) { savePrescriptionInsertIfAbsent(t, s) })
	t.Run("ConcurrentSavePrescriptionYieldsOneId", func(t *testing.T) { concurrentSavePrescription(t, s) })
	t.Run("SessionFirstWriteWins", func(t *testing.T) { sessionFirstWriteWins(t, s) })
	t.Run("ConcurrentSessionCreationYieldsOneSession", func(t *testing.T) { concurrentSessionCreation(t, s) })
	t.Run("ListPrescriptionsInCreationOrder", func(t *testing.T) { listPrescriptionsInOrder(t, s) })
	t.Run("TurnsAreOrderedAndLimited", func(t *testing.T) { turnsOrderedAndLimited(t, s) })
	t.Run("SafetyReportKeepsFirst", func(t *testing.T) { safetyReportKeepsFirst(t, s) })
	t.Run("ConcurrentSafetyReportsAgree", func(t *testing.T) { concurrentSafetyReports(t, s) })
	t.Run("ReplaceReferenceDrugs", func(t *testing.T) { replaceReferenceDrugs(t, s) })
}

func unique(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func savePrescriptionInsertIfAbsent(t *testing.T, s memory.Store) {
	ctx := context.Background()
	u1, u2 := unique("u"), unique("u")
	rx1, rx2, rx3 := unique("rx"), unique("rx"), unique("rx")

	first, err := s.SavePrescription(ctx, prescription.Prescription{Id: rx1, UserId: u1, Filename: "a.png", Title: "Rx: A"})
	require.NoError(t, err)
	second, err := s.SavePrescription(ctx, prescription.Prescription{Id: rx2, UserId: u1, Filename: "a.png", Title: "Rx: B"})
	require.NoError(t, err)
	other, err := s.SavePrescription(ctx, prescription.Prescription{Id: rx3, UserId: u2, Filename: "a.png"})
	require.NoError(t, err)

	assert.Equal(t, rx1, first)
	assert.Equal(t, rx1, second)
	assert.Equal(t, rx3, other)

	id, err := s.GetPrescriptionByFilename(ctx, u1, "a.png")
	require.NoError(t, err)
	assert.Equal(t, rx1, id)

	p, err := s.GetPrescription(ctx, rx1)
	require.NoError(t, err)
	assert.Equal(t, "Rx: A", p.Title)
	assert.Equal(t, u1, p.UserId)

	_, err = s.GetPrescription(ctx, rx2)
	assert.ErrorIs(t, err, memory.ErrNotFound)

	_, err = s.GetPrescriptionByFilename(ctx, u1, "b.png")
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func concurrentSavePrescription(t *testing.T, s memory.Store) {
	ctx := context.Background()
	user := unique("u")

	var wg sync.WaitGroup
	ids := make([]string, 8)

	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.SavePrescription(ctx, prescription.Prescription{Id: unique("rx"), UserId: user, Filename: "same.png"})
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}

	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func sessionFirstWriteWins(t *testing.T, s memory.Store) {
	ctx := context.Background()
	user, rx := unique("u"), unique("rx")

	id1, err := s.GetOrCreateSession(ctx, user, rx, memory.WithTitle("Rx: A"), memory.WithFilename("a.png"), memory.WithDetails("- A"))
	require.NoError(t, err)
	id2, err := s.GetOrCreateSession(ctx, user, rx, memory.WithTitle("Rx: B"))
	require.NoError(t, err)

	assert.Equal(t, id1, id2)

	sess, err := s.GetSession(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "Rx: A", sess.Title)
	assert.Equal(t, "a.png", sess.Filename)
	assert.Equal(t, rx, sess.PrescriptionId)
	assert.Equal(t, user, sess.UserId)

	details, err := s.GetSessionDetails(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "- A", details)

	_, err = s.GetSession(ctx, unique("missing"))
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func concurrentSessionCreation(t *testing.T, s memory.Store) {
	ctx := context.Background()
	user, rx := unique("u"), unique("rx")

	var wg sync.WaitGroup
	ids := make([]string, 16)

	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.GetOrCreateSession(ctx, user, rx, memory.WithTitle(fmt.Sprintf("Rx: %d", i)))
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}

	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	refs, err := s.ListPrescriptions(ctx, user)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func listPrescriptionsInOrder(t *testing.T, s memory.Store) {
	ctx := context.Background()
	user := unique("u")

	var want []memory.PrescriptionRef
	for i := 0; i < 3; i++ {
		rx := unique("rx")
		_, err := s.GetOrCreateSession(ctx, user, rx, memory.WithTitle(fmt.Sprintf("Rx: %d", i)))
		require.NoError(t, err)
		want = append(want, memory.PrescriptionRef{Id: rx, Title: fmt.Sprintf("Rx: %d", i)})
	}

	_, err := s.GetOrCreateSession(ctx, unique("u"), unique("rx"))
	require.NoError(t, err)

	refs, err := s.ListPrescriptions(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, want, refs)

	empty, err := s.ListPrescriptions(ctx, unique("nobody"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func turnsOrderedAndLimited(t *testing.T, s memory.Store) {
	ctx := context.Background()

	sid, err := s.GetOrCreateSession(ctx, unique("u"), unique("rx"))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendTurn(ctx, sid, memory.RoleUser, fmt.Sprintf("q%d", i)))
		require.NoError(t, s.AppendTurn(ctx, sid, memory.RoleAssistant, fmt.Sprintf("a%d", i)))
	}

	all, err := s.ListTurns(ctx, sid)
	require.NoError(t, err)
	require.Len(t, all, 10)
	assert.Equal(t, "q0", all[0].Content)
	assert.Equal(t, memory.RoleUser, all[0].Role)
	assert.Equal(t, "a4", all[9].Content)
	assert.Equal(t, memory.RoleAssistant, all[9].Role)

	recent, err := s.ListTurns(ctx, sid, memory.WithTurnLimit(3))
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"a3", "q4", "a4"}, []string{recent[0].Content, recent[1].Content, recent[2].Content})

	assert.ErrorIs(t, s.AppendTurn(ctx, unique("missing"), memory.RoleUser, "x"), memory.ErrNotFound)
	assert.Error(t, s.AppendTurn(ctx, sid, memory.Role("system"), "x"))

	_, err = s.ListTurns(ctx, unique("missing"))
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func safetyReportKeepsFirst(t *testing.T, s memory.Store) {
	ctx := context.Background()

	sid, err := s.GetOrCreateSession(ctx, unique("u"), unique("rx"))
	require.NoError(t, err)

	_, err = s.GetSafetyReport(ctx, sid)
	assert.ErrorIs(t, err, memory.ErrNotFound)

	first := memory.SafetyReport{OTC: []memory.Verdict{{Name: "Paracetamol", Reason: "OTC analgesic"}}}
	second := memory.SafetyReport{Consult: []memory.Verdict{{Name: "Paracetamol", Reason: "changed"}}}

	got, err := s.SaveSafetyReport(ctx, sid, first)
	require.NoError(t, err)
	assert.Equal(t, first.OTC, got.OTC)
	assert.NotNil(t, got.Consult)

	got, err = s.SaveSafetyReport(ctx, sid, second)
	require.NoError(t, err)
	assert.Equal(t, first.OTC, got.OTC)
	assert.Empty(t, got.Consult)

	stored, err := s.GetSafetyReport(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func concurrentSafetyReports(t *testing.T, s memory.Store) {
	ctx := context.Background()

	sid, err := s.GetOrCreateSession(ctx, unique("u"), unique("rx"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	reports := make([]memory.SafetyReport, 8)

	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := s.SaveSafetyReport(ctx, sid, memory.SafetyReport{
				OTC: []memory.Verdict{{Name: fmt.Sprintf("Drug %d", i), Reason: "writer"}},
			})
			assert.NoError(t, err)
			reports[i] = r
		}(i)
	}

	wg.Wait()

	for _, r := range reports {
		assert.Equal(t, reports[0], r)
	}
}

func replaceReferenceDrugs(t *testing.T, s memory.Store) {
	ctx := context.Background()

	require.NoError(t, s.ReplaceReferenceDrugs(ctx, []memory.ReferenceDrug{
		{Name: "Aspirin", Metadata: map[string]string{"type": "Analgesic"}},
		{Name: "Cetirizine", Metadata: map[string]string{"type": "Antihistamine"}},
	}, 7))

	require.NoError(t, s.ReplaceReferenceDrugs(ctx, []memory.ReferenceDrug{
		{Name: "Loratadine", Metadata: map[string]string{"type": "Antihistamine"}},
		{Name: "Aspirin", Metadata: map[string]string{"type": "Analgesic"}},
	}, 8))

	v, err := s.ReferenceSchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, v)

	drugs, err := s.ListReferenceDrugs(ctx)
	require.NoError(t, err)
	require.Len(t, drugs, 2)
	assert.Equal(t, "Loratadine", drugs[0].Name)
	assert.Equal(t, "Antihistamine", drugs[0].Category())
	assert.Equal(t, "Aspirin", drugs[1].Name)
	assert.True(t, memory.ValidReferenceDrugs(drugs))
}
