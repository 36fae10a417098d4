// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/seminars/internal/bagbuilder"
	"github.com/Shivanand-hulikatti/seminars/internal/model"
	"github.com/Shivanand-hulikatti/seminars/internal/pricing"
	"github.com/Shivanand-hulikatti/seminars/internal/queue"
	"github.com/Shivanand-hulikatti/seminars/internal/repository"
	"github.com/Shivanand-hulikatti/seminars/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventService is the part of service.EventService the handlers use.
type EventService interface {
	ListEvents(ctx context.Context, q service.ListQuery) (*service.EventPage, error)
	GetEvent(ctx context.Context, uid int64) (*service.EventDetail, error)
	Prices(ctx context.Context, uid int64) ([]pricing.Price, error)
	CheckSeats(ctx context.Context, uid int64, requested string) (*service.SeatCheck, error)
	RequiredTopics(ctx context.Context, uid int64) ([]*model.Event, error)
	DependingTopics(ctx context.Context, uid int64) ([]*model.Event, error)
	MissingTopics(ctx context.Context, uid, userUID int64) ([]*model.Event, error)
	Categories(ctx context.Context, uid int64) ([]*model.Category, error)
	RemoveRegistration(ctx context.Context, ref uuid.UUID) (*queue.Removal, error)
	DueReminders(ctx context.Context, kind service.ReminderKind, days int) ([]*model.Event, error)
	MarkReminderSent(ctx context.Context, kind service.ReminderKind, uid int64) error
}

// EventHandler holds all HTTP handlers for the seminar API.
type EventHandler struct {
	svc EventService
	log *zap.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc EventService, log *zap.Logger) *EventHandler {
	return &EventHandler{svc: svc, log: log}
}

// Routes mounts the API on r.
func (h *EventHandler) Routes(r chi.Router) {
	r.Get("/health", HealthCheck)

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Route("/{uid}", func(r chi.Router) {
			r.Get("/", h.GetEvent)
			r.Get("/prices", h.Prices)
			r.Get("/seats", h.Seats)
			r.Get("/required-topics", h.RequiredTopics)
			r.Get("/depending-topics", h.DependingTopics)
			r.Get("/missing-topics", h.MissingTopics)
			r.Get("/categories", h.Categories)
			r.Post("/reminders/{kind}", h.MarkReminderSent)
		})
	})
	r.Get("/reminders/{kind}", h.DueReminders)
	r.Delete("/registrations/{ref}", h.RemoveRegistration)
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps service errors to status codes. Unexpected errors
// are logged and reported without detail.
func (h *EventHandler) writeServiceError(w http.ResponseWriter, r *http.Request, what string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	default:
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to load "+what)
	}
}

func pathUID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "uid")
	uid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || uid <= 0 {
		return 0, model.InvalidArgument("invalid event uid %q", raw)
	}
	return uid, nil
}

// ListEvents handles GET /events
// Returns one page of events matching the query parameters.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.svc.ListEvents(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, "events", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetEvent handles GET /events/{uid}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	detail, err := h.svc.GetEvent(r.Context(), uid)
	if err != nil {
		h.writeServiceError(w, r, "event", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Prices handles GET /events/{uid}/prices
// Returns the prices that apply now.
func (h *EventHandler) Prices(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	prices, err := h.svc.Prices(r.Context(), uid)
	if err != nil {
		h.writeServiceError(w, r, "event", err)
		return
	}
	writeJSON(w, http.StatusOK, prices)
}

// Seats handles GET /events/{uid}/seats?seats=N
// An absent seats parameter asks for one seat.
func (h *EventHandler) Seats(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	check, err := h.svc.CheckSeats(r.Context(), uid, r.URL.Query().Get("seats"))
	if err != nil {
		h.writeServiceError(w, r, "event", err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (h *EventHandler) writeTopics(w http.ResponseWriter, r *http.Request, list func(uid int64) ([]*model.Event, error)) {
	uid, err := pathUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	topics, err := list(uid)
	if err != nil {
		h.writeServiceError(w, r, "event", err)
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

// RequiredTopics handles GET /events/{uid}/required-topics
func (h *EventHandler) RequiredTopics(w http.ResponseWriter, r *http.Request) {
	h.writeTopics(w, r, func(uid int64) ([]*model.Event, error) {
		return h.svc.RequiredTopics(r.Context(), uid)
	})
}

// DependingTopics handles GET /events/{uid}/depending-topics
func (h *EventHandler) DependingTopics(w http.ResponseWriter, r *http.Request) {
	h.writeTopics(w, r, func(uid int64) ([]*model.Event, error) {
		return h.svc.DependingTopics(r.Context(), uid)
	})
}

// MissingTopics handles GET /events/{uid}/missing-topics?user=U
// Returns the required topics the user has not attended.
func (h *EventHandler) MissingTopics(w http.ResponseWriter, r *http.Request) {
	user, err := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
	if err != nil || user <= 0 {
		writeError(w, http.StatusBadRequest, "user must be a positive uid")
		return
	}
	h.writeTopics(w, r, func(uid int64) ([]*model.Event, error) {
		return h.svc.MissingTopics(r.Context(), uid, user)
	})
}

// Categories handles GET /events/{uid}/categories
func (h *EventHandler) Categories(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	categories, err := h.svc.Categories(r.Context(), uid)
	if err != nil {
		h.writeServiceError(w, r, "event", err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// RemoveRegistration handles DELETE /registrations/{ref}
// Hides the registration and reports the registration promoted from the queue, if any.
func (h *EventHandler) RemoveRegistration(w http.ResponseWriter, r *http.Request) {
	ref, err := uuid.Parse(chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid registration reference")
		return
	}
	removal, err := h.svc.RemoveRegistration(r.Context(), ref)
	if err != nil {
		h.writeServiceError(w, r, "registration", err)
		return
	}
	writeJSON(w, http.StatusOK, removal)
}

// DueReminders handles GET /reminders/{kind}?days=N
func (h *EventHandler) DueReminders(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be a number")
			return
		}
		days = n
	}
	events, err := h.svc.DueReminders(r.Context(), service.ReminderKind(chi.URLParam(r, "kind")), days)
	if err != nil {
		h.writeServiceError(w, r, "events", err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// MarkReminderSent handles POST /events/{uid}/reminders/{kind}
func (h *EventHandler) MarkReminderSent(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.MarkReminderSent(r.Context(), service.ReminderKind(chi.URLParam(r, "kind")), uid); err != nil {
		h.writeServiceError(w, r, "event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseListQuery reads the listing filters from the URL query.
func parseListQuery(r *http.Request) (service.ListQuery, error) {
	v := r.URL.Query()
	q := service.ListQuery{
		StoragePIDs:   v.Get("pids"),
		TimeFrame:     bagbuilder.TimeFrame(v.Get("timeframe")),
		Topics:        v.Get("topics") == "1" || v.Get("topics") == "true",
		Cities:        splitList(v.Get("cities")),
		Countries:     splitList(v.Get("countries")),
		Languages:     splitList(v.Get("languages")),
		Search:        v.Get("search"),
		OnlyVacancies: v.Get("vacancies") == "1" || v.Get("vacancies") == "true",
		OrderBy:       v.Get("order"),
		Limit:         v.Get("limit"),
	}

	var err error
	ids := []struct {
		param string
		dst   *[]int64
	}{
		{"categories", &q.Categories},
		{"places", &q.Places},
		{"organizers", &q.Organizers},
		{"target_groups", &q.TargetGroups},
		{"event_types", &q.EventTypes},
	}
	for _, id := range ids {
		if *id.dst, err = parseUIDs(id.param, v.Get(id.param)); err != nil {
			return q, err
		}
	}

	if raw := v.Get("recursion"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return q, fmt.Errorf("recursion must be a non-negative number")
		}
		depth := uint(n)
		q.Recursion = &depth
	}
	if raw := v.Get("status"); raw != "" {
		status, ok := model.ParseStatus(raw)
		if !ok {
			return q, fmt.Errorf("unknown status %q", raw)
		}
		q.Status = &status
	}
	for _, n := range []struct {
		param string
		dst   *int64
	}{{"owner", &q.Owner}, {"manager", &q.Manager}} {
		if raw := v.Get(n.param); raw != "" {
			if *n.dst, err = strconv.ParseInt(raw, 10, 64); err != nil {
				return q, fmt.Errorf("%s must be a uid", n.param)
			}
		}
	}
	if raw := v.Get("age"); raw != "" {
		if q.Age, err = strconv.Atoi(raw); err != nil {
			return q, fmt.Errorf("age must be a number")
		}
	}
	for _, p := range []struct {
		param string
		dst   *float64
	}{{"min_price", &q.MinPrice}, {"max_price", &q.MaxPrice}} {
		if raw := v.Get(p.param); raw != "" {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return q, fmt.Errorf("%s must be a finite number", p.param)
			}
			*p.dst = f
		}
	}
	for _, d := range []struct {
		param string
		dst   *time.Time
	}{{"earliest_begin", &q.EarliestBegin}, {"latest_begin", &q.LatestBegin}} {
		if raw := v.Get(d.param); raw != "" {
			if *d.dst, err = time.Parse(time.RFC3339, raw); err != nil {
				return q, fmt.Errorf("%s must be an RFC 3339 timestamp", d.param)
			}
		}
	}
	return q, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func parseUIDs(param, raw string) ([]int64, error) {
	var uids []int64
	for _, part := range splitList(raw) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		uid, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a comma-separated list of uids", param)
		}
		uids = append(uids, uid)
	}
	return uids, nil
}
