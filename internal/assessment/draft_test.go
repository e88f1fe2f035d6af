package assessment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment/entity"
)

func TestEditSession_BeginThenCancelLeavesRecordUnchanged(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, fields("Maria", entity.NewDate(2024, time.March, 1)))
	require.NoError(t, err)
	before, err := svc.Get(ctx, id)
	require.NoError(t, err)

	es := NewEditSession(svc)
	draft, err := es.BeginEdit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.Fields, draft)

	draft.PatientName = "Changed"
	require.NoError(t, es.SetDraft(draft))
	require.NoError(t, es.Cancel())

	state, _ := es.State()
	assert.Equal(t, Idle, state)
	after, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEditSession_CommitTouchesOnlyEditedRecord(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	id1, err := svc.Create(ctx, fields("Maria", entity.NewDate(2024, time.March, 1)))
	require.NoError(t, err)
	id2, err := svc.Create(ctx, fields("Pedro", entity.NewDate(2024, time.March, 1)))
	require.NoError(t, err)
	other, err := svc.Get(ctx, id2)
	require.NoError(t, err)

	es := NewEditSession(svc)
	draft, err := es.BeginEdit(ctx, id1)
	require.NoError(t, err)
	draft.BehaviorNote = "calmo"
	require.NoError(t, es.Commit(ctx, draft))

	state, _ := es.State()
	assert.Equal(t, Idle, state)

	got, err := svc.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "calmo", got.BehaviorNote)

	unchanged, err := svc.Get(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, other, unchanged)
}

func TestEditSession_BeginEditMissingRecord(t *testing.T) {
	es := NewEditSession(setupService(t))
	_, err := es.BeginEdit(context.Background(), 12)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	state, _ := es.State()
	assert.Equal(t, Idle, state)
}

func TestEditSession_CommitAfterConcurrentDeleteReturnsToIdle(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, fields("Maria", entity.NewDate(2024, time.March, 1)))
	require.NoError(t, err)

	es := NewEditSession(svc)
	draft, err := es.BeginEdit(ctx, id)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, id))

	assert.ErrorIs(t, es.Commit(ctx, draft), apperr.ErrNotFound)
	state, _ := es.State()
	assert.Equal(t, Idle, state)
}

func TestEditSession_FailedCommitKeepsDraft(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, fields("Maria", entity.NewDate(2024, time.March, 1)))
	require.NoError(t, err)

	es := NewEditSession(svc)
	draft, err := es.BeginEdit(ctx, id)
	require.NoError(t, err)

	bad := draft
	bad.PatientName = ""
	assert.ErrorIs(t, es.Commit(ctx, bad), apperr.ErrValidation)

	state, editing := es.State()
	assert.Equal(t, Editing, state)
	assert.Equal(t, id, editing)
	_, kept, err := es.Draft()
	require.NoError(t, err)
	assert.Equal(t, draft, kept)
}

func TestEditSession_CreateAndEditAreExclusive(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	es := NewEditSession(svc)
	id, err := es.Create(ctx, fields("Maria", entity.NewDate(2024, time.March, 1)))
	require.NoError(t, err)

	_, err = es.BeginEdit(ctx, id)
	require.NoError(t, err)

	_, err = es.Create(ctx, fields("Pedro", entity.NewDate(2024, time.March, 1)))
	assert.ErrorIs(t, err, apperr.ErrDraftActive)
	_, err = es.BeginEdit(ctx, id)
	assert.ErrorIs(t, err, apperr.ErrDraftActive)

	require.NoError(t, es.Cancel())
	_, err = es.Create(ctx, fields("Pedro", entity.NewDate(2024, time.March, 1)))
	assert.NoError(t, err)
}

func TestEditSession_IdleOperations(t *testing.T) {
	es := NewEditSession(setupService(t))
	assert.ErrorIs(t, es.Cancel(), apperr.ErrNoDraft)
	assert.ErrorIs(t, es.Commit(context.Background(), entity.Fields{}), apperr.ErrNoDraft)
	assert.ErrorIs(t, es.SetDraft(entity.Fields{}), apperr.ErrNoDraft)
	_, _, err := es.Draft()
	assert.ErrorIs(t, err, apperr.ErrNoDraft)
}

func TestDrafts_PerSession(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	id, err := svc.Create(ctx, fields("Maria", entity.NewDate(2024, time.March, 1)))
	require.NoError(t, err)

	d := NewDrafts(svc)
	_, err = d.For("a", time.Time{}).BeginEdit(ctx, id)
	require.NoError(t, err)

	sa, _ := d.For("a", time.Time{}).State()
	sb, _ := d.For("b", time.Time{}).State()
	assert.Equal(t, Editing, sa)
	assert.Equal(t, Idle, sb)

	d.Drop("a")
	sa, _ = d.For("a", time.Time{}).State()
	assert.Equal(t, Idle, sa)
}

func TestDrafts_ExpiredSessionsAreEvicted(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	id, err := svc.Create(ctx, fields("Maria", entity.NewDate(2024, time.March, 1)))
	require.NoError(t, err)

	now := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	d := NewDrafts(svc)
	d.now = func() time.Time { return now }

	_, err = d.For("short", now.Add(time.Minute)).BeginEdit(ctx, id)
	require.NoError(t, err)
	_, err = d.For("long", now.Add(time.Hour)).BeginEdit(ctx, id)
	require.NoError(t, err)
	d.For("forever", time.Time{})
	assert.Equal(t, 3, d.Len())

	now = now.Add(2 * time.Minute)
	st, _ := d.For("long", now.Add(time.Hour)).State()
	assert.Equal(t, Editing, st)
	assert.Equal(t, 2, d.Len())

	// the expired session's draft is gone
	st, _ = d.For("short", now.Add(time.Hour)).State()
	assert.Equal(t, Idle, st)
}
