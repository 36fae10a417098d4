package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Shivanand-hulikatti/seminars/internal/bagbuilder"
	"github.com/Shivanand-hulikatti/seminars/internal/model"
	"github.com/Shivanand-hulikatti/seminars/internal/pricing"
	"github.com/Shivanand-hulikatti/seminars/internal/queue"
	"github.com/Shivanand-hulikatti/seminars/internal/repository"
	"github.com/Shivanand-hulikatti/seminars/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockEventService is a mock implementation of EventService.
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) ListEvents(ctx context.Context, q service.ListQuery) (*service.EventPage, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.EventPage), args.Error(1)
}

func (m *MockEventService) GetEvent(ctx context.Context, uid int64) (*service.EventDetail, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.EventDetail), args.Error(1)
}

func (m *MockEventService) Prices(ctx context.Context, uid int64) ([]pricing.Price, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pricing.Price), args.Error(1)
}

func (m *MockEventService) CheckSeats(ctx context.Context, uid int64, requested string) (*service.SeatCheck, error) {
	args := m.Called(ctx, uid, requested)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SeatCheck), args.Error(1)
}

func (m *MockEventService) topics(args mock.Arguments) ([]*model.Event, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Event), args.Error(1)
}

func (m *MockEventService) RequiredTopics(ctx context.Context, uid int64) ([]*model.Event, error) {
	return m.topics(m.Called(ctx, uid))
}

func (m *MockEventService) DependingTopics(ctx context.Context, uid int64) ([]*model.Event, error) {
	return m.topics(m.Called(ctx, uid))
}

func (m *MockEventService) MissingTopics(ctx context.Context, uid, userUID int64) ([]*model.Event, error) {
	return m.topics(m.Called(ctx, uid, userUID))
}

func (m *MockEventService) Categories(ctx context.Context, uid int64) ([]*model.Category, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Category), args.Error(1)
}

func (m *MockEventService) RemoveRegistration(ctx context.Context, ref uuid.UUID) (*queue.Removal, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Removal), args.Error(1)
}

func (m *MockEventService) DueReminders(ctx context.Context, kind service.ReminderKind, days int) ([]*model.Event, error) {
	return m.topics(m.Called(ctx, kind, days))
}

func (m *MockEventService) MarkReminderSent(ctx context.Context, kind service.ReminderKind, uid int64) error {
	return m.Called(ctx, kind, uid).Error(0)
}

func newRouter(svc EventService) http.Handler {
	r := chi.NewRouter()
	NewEventHandler(svc, zap.NewNop()).Routes(r)
	return r
}

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestHealthCheck(t *testing.T) {
	rec := serve(t, newRouter(new(MockEventService)), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListEvents_ParsesQuery(t *testing.T) {
	svc := new(MockEventService)
	status := model.StatusConfirmed
	depth := uint(2)
	want := service.ListQuery{
		StoragePIDs: "4,5",
		Recursion:   &depth,
		TimeFrame:   bagbuilder.Upcoming,
		Categories:  []int64{1, 2},
		Cities:      []string{"Bonn"},
		Status:      &status,
		MaxPrice:    49.5,
		Search:      "sales training",
		OrderBy:     "title",
		Limit:       "10,20",
	}
	svc.On("ListEvents", mock.Anything, want).Return(&service.EventPage{Events: []*service.EventSummary{}, Total: 0}, nil)

	rec := serve(t, newRouter(svc), http.MethodGet,
		"/events?pids=4,5&recursion=2&timeframe=upcoming&categories=1,2&cities=Bonn&status=confirmed&max_price=49.5&search=sales+training&order=title&limit=10,20")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"events":[],"total":0}`, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestListEvents_BadQuery(t *testing.T) {
	h := newRouter(new(MockEventService))
	for _, target := range []string{
		"/events?categories=1,x",
		"/events?status=postponed",
		"/events?max_price=cheap",
		"/events?max_price=NaN",
		"/events?min_price=Inf",
		"/events?max_price=-Inf",
		"/events?earliest_begin=tomorrow",
		"/events?recursion=-1",
	} {
		rec := serve(t, h, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestListEvents_ServiceErrors(t *testing.T) {
	svc := new(MockEventService)
	svc.On("ListEvents", mock.Anything, mock.MatchedBy(func(q service.ListQuery) bool { return q.OrderBy == "price" })).
		Return(nil, model.InvalidArgument("unknown order %q", "price"))
	svc.On("ListEvents", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	h := newRouter(svc)

	rec := serve(t, h, http.MethodGet, "/events?order=price")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "unknown order")

	rec = serve(t, h, http.MethodGet, "/events")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to load events", decodeError(t, rec))
}

func TestGetEvent(t *testing.T) {
	svc := new(MockEventService)
	detail := &service.EventDetail{EventSummary: &service.EventSummary{Event: &model.Event{ID: 7}, Title: "Coaching"}}
	svc.On("GetEvent", mock.Anything, int64(7)).Return(detail, nil)
	svc.On("GetEvent", mock.Anything, int64(8)).Return(nil, repository.ErrNotFound)
	h := newRouter(svc)

	rec := serve(t, h, http.MethodGet, "/events/7")
	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Coaching", body["title"])
	assert.Equal(t, float64(7), body["uid"])

	rec = serve(t, h, http.MethodGet, "/events/8")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "event not found", decodeError(t, rec))

	rec = serve(t, h, http.MethodGet, "/events/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPricesAndSeats(t *testing.T) {
	svc := new(MockEventService)
	svc.On("Prices", mock.Anything, int64(3)).Return([]pricing.Price{{Kind: pricing.Regular, Amount: 0}}, nil)
	free := 2
	svc.On("CheckSeats", mock.Anything, int64(3), "").Return(&service.SeatCheck{Vacancies: &free, HasVacancy: true, CanRegister: true}, nil)
	h := newRouter(svc)

	rec := serve(t, h, http.MethodGet, "/events/3/prices")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"kind":"regular","amount":0}]`, rec.Body.String())

	rec = serve(t, h, http.MethodGet, "/events/3/seats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"requested":"","vacancies":2,"unlimited":false,"has_vacancy":true,"queue":false,"can_register":true}`, rec.Body.String())
}

func TestTopicsEndpoints(t *testing.T) {
	svc := new(MockEventService)
	svc.On("RequiredTopics", mock.Anything, int64(5)).Return([]*model.Event{{ID: 1, Variant: model.VariantTopic}}, nil)
	svc.On("DependingTopics", mock.Anything, int64(5)).Return(nil, model.ErrInvalidVariant)
	svc.On("MissingTopics", mock.Anything, int64(5), int64(9)).Return([]*model.Event{}, nil)
	h := newRouter(svc)

	rec := serve(t, h, http.MethodGet, "/events/5/required-topics")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, h, http.MethodGet, "/events/5/depending-topics")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h, http.MethodGet, "/events/5/missing-topics?user=9")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(t, h, http.MethodGet, "/events/5/missing-topics")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "MissingTopics", mock.Anything, int64(5), int64(0))
}

func TestCategories(t *testing.T) {
	svc := new(MockEventService)
	svc.On("Categories", mock.Anything, int64(5)).Return([]*model.Category{{ID: 1, Title: "Finance"}}, nil)

	rec := serve(t, newRouter(svc), http.MethodGet, "/events/5/categories")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"uid":1,"title":"Finance"}]`, rec.Body.String())
}

func TestRemoveRegistration(t *testing.T) {
	svc := new(MockEventService)
	ref := uuid.New()
	missing := uuid.New()
	removal := &queue.Removal{
		Removed:  &model.Registration{ID: 1, Ref: ref, Hidden: true},
		Promoted: &model.Registration{ID: 2},
	}
	svc.On("RemoveRegistration", mock.Anything, ref).Return(removal, nil)
	svc.On("RemoveRegistration", mock.Anything, missing).Return(nil, repository.ErrNotFound)
	h := newRouter(svc)

	rec := serve(t, h, http.MethodDelete, "/registrations/"+ref.String())
	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Promoted struct {
			ID int64 `json:"uid"`
		} `json:"promoted"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(2), body.Promoted.ID)

	rec = serve(t, h, http.MethodDelete, "/registrations/"+missing.String())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "registration not found", decodeError(t, rec))

	rec = serve(t, h, http.MethodDelete, "/registrations/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReminders(t *testing.T) {
	svc := new(MockEventService)
	svc.On("DueReminders", mock.Anything, service.TakesPlaceReminder, 3).Return([]*model.Event{{ID: 4}}, nil)
	svc.On("MarkReminderSent", mock.Anything, service.TakesPlaceReminder, int64(4)).Return(nil)
	h := newRouter(svc)

	rec := serve(t, h, http.MethodGet, "/reminders/takes-place?days=3")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, h, http.MethodPost, "/events/4/reminders/takes-place")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, h, http.MethodGet, "/reminders/takes-place?days=soon")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}
