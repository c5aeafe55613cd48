package mail

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maltedev/price-notifier/internal/config"
	"github.com/maltedev/price-notifier/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockEventDispatcher struct {
	mock.Mock
}

func (m *MockEventDispatcher) DispatchEvent(ctx context.Context, ev Event) error {
	return m.Called(ctx, ev).Error(0)
}

func push(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/pubsub/push", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestPushHandler(t *testing.T) {
	const envelope = `{
		"message": {"data": "eyJ0byI6ImFAZXhhbXBsZS5jb20iLCJib2R5IjoiYiJ9", "messageId": "42", "attributes": {"k": "v"}},
		"subscription": "projects/p/subscriptions/email"
	}`
	want := Event{Data: "eyJ0byI6ImFAZXhhbXBsZS5jb20iLCJib2R5IjoiYiJ9"}

	t.Run("handled message is acknowledged", func(t *testing.T) {
		d := new(MockEventDispatcher)
		d.On("DispatchEvent", mock.Anything, want).Return(nil)
		router := NewRouter(NewPushHandler(d, logging.Discard()), config.ServerConfig{})

		rr := push(router, envelope)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		d.AssertExpectations(t)
	})

	t.Run("dispatch failure asks for redelivery", func(t *testing.T) {
		d := new(MockEventDispatcher)
		d.On("DispatchEvent", mock.Anything, want).Return(errors.New("smtp down"))
		router := NewRouter(NewPushHandler(d, logging.Discard()), config.ServerConfig{})

		rr := push(router, envelope)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("malformed envelope", func(t *testing.T) {
		d := new(MockEventDispatcher)
		router := NewRouter(NewPushHandler(d, logging.Discard()), config.ServerConfig{})

		rr := push(router, `{"message":`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		d.AssertNotCalled(t, "DispatchEvent", mock.Anything, mock.Anything)
	})

	t.Run("envelope without data is passed through", func(t *testing.T) {
		d := new(MockEventDispatcher)
		d.On("DispatchEvent", mock.Anything, Event{}).Return(nil)
		router := NewRouter(NewPushHandler(d, logging.Discard()), config.ServerConfig{})

		rr := push(router, `{"message": {"messageId": "1"}}`)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		d.AssertExpectations(t)
	})

	t.Run("only POST is routed", func(t *testing.T) {
		router := NewRouter(NewPushHandler(new(MockEventDispatcher), logging.Discard()), config.ServerConfig{})
		req := httptest.NewRequest(http.MethodGet, "/pubsub/push", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}

func TestPushEndToEnd(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, SendRequest{To: "a@example.com", Body: "b"}).Return(nil)
	router := NewRouter(NewPushHandler(NewDispatcher(sender, logging.Discard()), logging.Discard()), config.ServerConfig{})

	rr := push(router, `{"message": {"data": "eyJ0byI6ImFAZXhhbXBsZS5jb20iLCJib2R5IjoiYiJ9"}}`)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	sender.AssertExpectations(t)
}

func TestEmailRouterHealth(t *testing.T) {
	router := NewRouter(NewPushHandler(new(MockEventDispatcher), logging.Discard()), config.ServerConfig{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
