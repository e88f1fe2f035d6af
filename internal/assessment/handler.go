package assessment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment/entity"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/document"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/export"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/session"
)

// Handler exposes HTTP endpoints for assessments, their documents and the
// per-session edit draft.
type Handler struct {
	svc    *Service
	drafts *Drafts
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, drafts *Drafts, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, drafts: drafts, logger: logger}
}

// CreatedResponse response body containing the new record id.
type CreatedResponse struct {
	ID int64 `json:"id"`
}

// DraftResponse is the draft being edited.
type DraftResponse struct {
	ID     int64         `json:"id"`
	Fields entity.Fields `json:"fields"`
}

// PatientDate is one selectable creation date of a patient.
type PatientDate struct {
	Date  entity.Date `json:"date"`
	Label string      `json:"label"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.FilterByName(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if items == nil {
		items = []*entity.Assessment{}
	}
	h.writeJSON(w, http.StatusOK, items)
}

// Create stores a new record. Refused while the caller's session holds a draft.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	f, err := DecodeFields(r.Body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	id, err := h.session(r).Create(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, a)
}

// Update replaces every field of the record.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	f, err := DecodeFields(r.Body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.svc.Update(r.Context(), id, f); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Lookup resolves ?name=&date=YYYY-MM-DD to one record.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := entity.ParseDate(q.Get("date"))
	if err != nil {
		h.writeError(w, apperr.Validation("%v", err))
		return
	}
	a, err := h.svc.FindByNameAndDate(r.Context(), q.Get("name"), date)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, a)
}

func (h *Handler) Patients(w http.ResponseWriter, r *http.Request) {
	names, err := h.svc.PatientNames(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, names)
}

func (h *Handler) PatientDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.svc.DatesForPatient(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]PatientDate, 0, len(dates))
	for _, d := range dates {
		out = append(out, PatientDate{Date: d, Label: d.BR()})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// Document renders the record as json (default), text or pdf.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	doc := document.Render(a)
	var buf bytes.Buffer
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		h.writeJSON(w, http.StatusOK, doc)
		return
	case "text":
		if err := document.WriteText(&buf, doc); err != nil {
			h.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	case "pdf":
		if err := document.WritePDF(&buf, doc); err != nil {
			h.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", attachment(document.FileName(a)))
	default:
		h.writeError(w, apperr.Validation("unsupported document format %q", format))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Export downloads the (optionally name-filtered) listing as csv or xlsx.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = export.FormatCSV
	}
	items, err := h.svc.FilterByName(r.Context(), q.Get("name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, items); err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", attachment(export.FileName(format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// BeginEditRequest selects the record to load into the draft.
type BeginEditRequest struct {
	ID int64 `json:"id"`
}

func (h *Handler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	var req BeginEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID <= 0 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	f, err := h.session(r).BeginEdit(r.Context(), req.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, DraftResponse{ID: req.ID, Fields: f})
}

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	id, f, err := h.session(r).Draft()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, DraftResponse{ID: id, Fields: f})
}

// SaveDraft replaces the draft in memory without writing the record.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	f, err := DecodeFields(r.Body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.session(r).SetDraft(f); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CancelDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.session(r).Cancel(); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CommitDraft(w http.ResponseWriter, r *http.Request) {
	f, err := DecodeFields(r.Body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.session(r).Commit(r.Context(), f); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// session returns the caller's EditSession; the auth middleware guarantees
// a principal on every route that reaches here.
func (h *Handler) session(r *http.Request) *EditSession {
	p, _ := session.PrincipalFrom(r.Context())
	var expires time.Time
	if p.Claims != nil && p.Claims.ExpiresAt != nil {
		expires = p.Claims.ExpiresAt.Time
	}
	return h.drafts.For(p.SessionID, expires)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func attachment(name string) string {
	return fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(name))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("assessment request failed", "err", err)
		h.writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
