package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"

	httpctrl "github.com/0xhatsume/tg-agentic-rag-dash/pkg/controller/http"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/repository/memory"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/usecase"
)

type mockSession struct {
	fn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return s.fn(ctx, input...)
}

func (s *mockSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockSession) History() (*gollem.History, error) { return nil, nil }

func (s *mockSession) AppendHistory(*gollem.History) error { return nil }

func (s *mockSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

type mockClient struct{}

func (c *mockClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return &mockSession{fn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
		var p string
		if len(input) > 0 {
			if text, ok := input[0].(gollem.Text); ok {
				p = string(text)
			}
		}
		if strings.Contains(p, "The available options are [RESPOND]") {
			return &gollem.Response{Texts: []string{"[RESPOND]"}}, nil
		}
		return &gollem.Response{Texts: []string{`{"user": "t", "text": "hello from the agent", "action": "NONE"}`}}, nil
	}}, nil
}

func (c *mockClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	out := make([][]float64, len(input))
	for i := range input {
		out[i] = []float64{1, 0, 0}
	}
	return out, nil
}

func newTestServer(t *testing.T, opts ...httpctrl.Options) *httpctrl.Server {
	t.Helper()
	repo := memory.New(3)
	rt, err := usecase.New(repo, &mockClient{}, &model.Character{ID: "agent-1", Name: "Thera"}, 3)
	gt.NoError(t, err).Required()
	return httpctrl.New(rt, opts...)
}

func postJSON(t *testing.T, srv http.Handler, path string, body map[string]any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	gt.NoError(t, err).Required()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.True(t, strings.Contains(rec.Body.String(), "ok"))
}

func TestMessageEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv, "/v1/messages", map[string]any{
		"messageId":  "tg-1001",
		"roomId":     "chat-42",
		"userId":     "tg-user-7",
		"senderName": "Ada",
		"text":       "hi, what can you do",
	}, nil)

	gt.Value(t, rec.Code).Equal(http.StatusOK)

	var resp struct {
		Replied bool           `json:"replied"`
		Content *model.Content `json:"content"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
	gt.True(t, resp.Replied)
	gt.Value(t, resp.Content.Text).Equal("hello from the agent")
}

func TestMessageEndpointValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv, "/v1/messages", map[string]any{"text": "missing ids"}, nil)
	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
}

func TestFactEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv, "/v1/facts", map[string]any{
		"roomId": "chat-42",
		"text":   "the archive migration finished last week",
	}, nil)

	gt.Value(t, rec.Code).Equal(http.StatusCreated)

	var resp struct {
		ID     string `json:"id"`
		Unique bool   `json:"unique"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
	gt.False(t, resp.ID == "")
	gt.True(t, resp.Unique)
}

func TestBearerAuth(t *testing.T) {
	srv := newTestServer(t, httpctrl.WithAuthToken("sekrit"))

	body := map[string]any{"roomId": "r", "userId": "u", "text": "hello"}

	rec := postJSON(t, srv, "/v1/messages", body, nil)
	gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)

	rec = postJSON(t, srv, "/v1/messages", body, map[string]string{"Authorization": "Bearer sekrit"})
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	// health stays open
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	gt.Value(t, w.Code).Equal(http.StatusOK)
}
