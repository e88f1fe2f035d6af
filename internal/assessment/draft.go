package assessment

import (
	"context"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment/entity"
)

// DraftState is the state of an EditSession.
type DraftState int

const (
	Idle DraftState = iota
	Editing
)

func (s DraftState) String() string {
	if s == Editing {
		return "editing"
	}
	return "idle"
}

// EditSession holds at most one uncommitted draft for a single caller.
// Creating a record and editing one are mutually exclusive within a session.
type EditSession struct {
	svc *Service

	mu    sync.Mutex
	state DraftState
	id    int64
	draft entity.Fields
}

func NewEditSession(svc *Service) *EditSession {
	return &EditSession{svc: svc}
}

// State returns the current state and, when editing, the record id.
func (e *EditSession) State() (DraftState, int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.id
}

// BeginEdit loads record id into a fresh draft.
func (e *EditSession) BeginEdit(ctx context.Context, id int64) (entity.Fields, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Editing {
		return entity.Fields{}, apperr.ErrDraftActive
	}
	a, err := e.svc.Get(ctx, id)
	if err != nil {
		return entity.Fields{}, err
	}
	e.state, e.id, e.draft = Editing, id, a.Fields.Clone()
	return e.draft.Clone(), nil
}

// Draft returns a copy of the draft being edited.
func (e *EditSession) Draft() (int64, entity.Fields, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing {
		return 0, entity.Fields{}, apperr.ErrNoDraft
	}
	return e.id, e.draft.Clone(), nil
}

// SetDraft replaces the in-memory draft without touching the store.
func (e *EditSession) SetDraft(f entity.Fields) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing {
		return apperr.ErrNoDraft
	}
	e.draft = f.Clone()
	return nil
}

// Cancel discards the draft.
func (e *EditSession) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing {
		return apperr.ErrNoDraft
	}
	e.reset()
	return nil
}

// Commit writes f over the record being edited. On success, or when the
// record has vanished in the meantime, the session returns to Idle. Any
// other failure leaves the draft as it was.
func (e *EditSession) Commit(ctx context.Context, f entity.Fields) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing {
		return apperr.ErrNoDraft
	}
	err := e.svc.Update(ctx, e.id, f)
	if err == nil || IsNotFound(err) {
		e.reset()
	}
	return err
}

// Create stores a new record; refused while a draft is open.
func (e *EditSession) Create(ctx context.Context, f entity.Fields) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Editing {
		return 0, apperr.ErrDraftActive
	}
	return e.svc.Create(ctx, f)
}

func (e *EditSession) reset() {
	e.state, e.id, e.draft = Idle, 0, entity.Fields{}
}

// Drafts maps caller sessions to their EditSession. An entry lives until
// its session logs out or its token expires.
type Drafts struct {
	svc *Service
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*draftEntry
}

type draftEntry struct {
	es      *EditSession
	expires time.Time
}

func NewDrafts(svc *Service) *Drafts {
	return &Drafts{svc: svc, now: time.Now, sessions: map[string]*draftEntry{}}
}

// For returns the EditSession of sessionID, creating an idle one on first use.
// expires is when the session token stops being valid; zero never expires.
// Entries of expired sessions are dropped on the way.
func (d *Drafts) For(sessionID string, expires time.Time) *EditSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.evictLocked()
	e, ok := d.sessions[sessionID]
	if !ok {
		e = &draftEntry{es: NewEditSession(d.svc)}
		d.sessions[sessionID] = e
	}
	e.expires = expires
	return e.es
}

// Drop forgets a session, discarding any draft it held.
func (d *Drafts) Drop(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, sessionID)
}

// Len is the number of tracked sessions.
func (d *Drafts) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *Drafts) evictLocked() {
	now := d.now()
	for id, e := range d.sessions {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(d.sessions, id)
		}
	}
}
