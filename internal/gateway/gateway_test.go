package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bellavista/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeService(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, WithTimeout(2*time.Second))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestExtractAction(t *testing.T) {
	text := `Great choice! {"action": "add", "items": [{"name": "Margherita Pizza", "quantity": 2}]}`

	action, rest, ok := ExtractAction(text)
	require.True(t, ok)
	assert.Equal(t, models.ActionAdd, action.Kind)
	require.Len(t, action.Items, 1)
	assert.Equal(t, "Margherita Pizza", action.Items[0].Name)
	assert.Equal(t, 2, action.Items[0].Quantity)
	assert.Equal(t, "Great choice! ", rest)
}

func TestExtractAction_SkipsBlocksWithoutAction(t *testing.T) {
	text := `Note {"hint": "x"} then {"action": "show_menu"} done`

	action, rest, ok := ExtractAction(text)
	require.True(t, ok)
	assert.Equal(t, models.ActionShowMenu, action.Kind)
	assert.Equal(t, `Note {"hint": "x"} then  done`, rest)
}

func TestExtractAction_BracesInsideStrings(t *testing.T) {
	text := `Here {"action": "add", "items": ["Pizza {special}"], "note": "say \"}\" twice"} ok`

	action, rest, ok := ExtractAction(text)
	require.True(t, ok)
	require.Len(t, action.Items, 1)
	assert.Equal(t, "Pizza {special}", action.Items[0].Name)
	assert.Equal(t, "Here  ok", rest)
}

func TestExtractAction_AfterUnbalancedBrace(t *testing.T) {
	tests := []struct {
		in   string
		kind models.ActionKind
		rest string
	}{
		{`Sure {thing, here you go: {"action": "add", "items": ["Tiramisu"]}`, models.ActionAdd, `Sure {thing, here you go: `},
		{`a { b { {"action": "show_cart"} c`, models.ActionShowCart, `a { b {  c`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			action, rest, ok := ExtractAction(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.kind, action.Kind)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestExtractAction_NoBlock(t *testing.T) {
	for _, text := range []string{"plain text", `broken {"action": "add"`, `{"items": []}`} {
		_, rest, ok := ExtractAction(text)
		assert.False(t, ok, text)
		assert.Equal(t, text, rest)
	}
}

func TestCleanDisplayText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Adding it! ```json\n\n```", "Adding it!"},
		{"Sure thing, updating now.", "Sure thing"},
		{"Got it! Please hold on...", "Got it!"},
		{"Here you go json", "Here you go"},
		{"Plenty   of    spaces", "Plenty of spaces"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanDisplayText(tt.in))
		})
	}
}

func TestNormalizeReply(t *testing.T) {
	t.Run("structured action", func(t *testing.T) {
		reply := NormalizeReply(ChatResponse{
			Success:    true,
			Response:   "Here's our menu with all the good stuff.",
			ActionData: json.RawMessage(`{"action": "show_menu", "response_delay": 500}`),
		})
		assert.Equal(t, models.ActionShowMenu, reply.Action.Kind)
		assert.Equal(t, 500, reply.Action.ResponseDelay)
	})

	t.Run("embedded action", func(t *testing.T) {
		reply := NormalizeReply(ChatResponse{
			Success:  true,
			Response: "Great choice! ```json\n{\"action\": \"add\", \"items\": [{\"name\": \"Tiramisu\", \"quantity\": 1}]}\n```",
		})
		assert.Equal(t, models.ActionAdd, reply.Action.Kind)
		assert.Equal(t, "Great choice!", reply.Text)
	})

	t.Run("no action stays text", func(t *testing.T) {
		reply := NormalizeReply(ChatResponse{Success: true, Response: "We open at noon every day."})
		assert.Equal(t, models.ActionText, reply.Action.Kind)
		assert.Equal(t, "We open at noon every day.", reply.Text)
	})

	t.Run("unrecognized action", func(t *testing.T) {
		reply := NormalizeReply(ChatResponse{
			Success:    true,
			Response:   "Let me do a little dance for you!",
			ActionData: json.RawMessage(`{"action": "dance"}`),
		})
		assert.Equal(t, models.ActionUnrecognized, reply.Action.Kind)
		assert.Equal(t, "dance", reply.Action.Name())
		assert.Equal(t, "Let me do a little dance for you!", reply.Text)
	})

	t.Run("short text uses default", func(t *testing.T) {
		reply := NormalizeReply(ChatResponse{
			Success:    true,
			Response:   "Ok!",
			ActionData: json.RawMessage(`{"action": "clear_cart"}`),
		})
		assert.Equal(t, "Your cart has been cleared.", reply.Text)
	})

	t.Run("invalid action data falls back to text", func(t *testing.T) {
		reply := NormalizeReply(ChatResponse{
			Success:    true,
			Response:   "Something went sideways here.",
			ActionData: json.RawMessage(`"oops"`),
		})
		assert.Equal(t, models.ActionText, reply.Action.Kind)
	})

	t.Run("emotion and fallback copied", func(t *testing.T) {
		mood := &models.Mood{Emotion: models.EmotionNegative, Intensity: models.IntensityHigh}
		reply := NormalizeReply(ChatResponse{Success: true, Response: "So sorry about that, friend.", EmotionalState: mood, FallbackMode: true})
		assert.Equal(t, mood, reply.Emotion)
		assert.True(t, reply.Fallback)
	})
}

func TestClient_Send(t *testing.T) {
	var got ChatRequest
	client := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"response": `Great choice! {"action": "add", "items": [{"name": "Margherita Pizza", "quantity": 2}]}`,
		})
	})

	cart := models.NewCartSnapshot([]models.CartLine{{ID: "5", Name: "Tiramisu", Price: 8.99, Quantity: 1, TotalPrice: 8.99}})
	reply, err := client.Send(context.Background(), Request{
		Message:      "2 margherita please",
		SessionID:    "s1",
		Cart:         cart,
		EmpathyLevel: models.EmpathyStandard,
	})
	require.NoError(t, err)

	assert.Equal(t, "2 margherita please", got.Message)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, []CartItem{{Name: "Tiramisu", Quantity: 1, Price: 8.99, Total: 8.99}}, got.CartItems)

	assert.Equal(t, models.ActionAdd, reply.Action.Kind)
	require.Len(t, reply.Action.Items, 1)
	assert.Equal(t, 2, reply.Action.Items[0].Quantity)
	assert.Equal(t, "Great choice!", reply.Text)
}

func TestClient_SendUnavailable(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
		},
		"success false": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "error": "quota"})
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
		},
	}

	for name, handler := range tests {
		t.Run(name, func(t *testing.T) {
			client := newFakeService(t, handler)
			_, err := client.Send(context.Background(), Request{Message: "hi", SessionID: "s1"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnavailable))
		})
	}
}

func TestClient_SendTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := client.Send(context.Background(), Request{Message: "hi", SessionID: "s1"})
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestClient_SendTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var endpoints []string
	client := NewClient(url, WithTimeout(time.Second), WithObserver(func(endpoint string, err error, _ time.Duration) {
		endpoints = append(endpoints, endpoint)
		assert.Error(t, err)
	}))
	_, err := client.Send(context.Background(), Request{Message: "hi"})
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, []string{"chat"}, endpoints)
}

func TestClient_Health(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    map[string]string
		want    Status
		wantErr bool
	}{
		{"ok", http.StatusOK, map[string]string{"ai_status": "ok"}, StatusConnected, false},
		{"rate limited", http.StatusOK, map[string]string{"ai_status": "rate_limited"}, StatusRateLimited, false},
		{"other status", http.StatusOK, map[string]string{"ai_status": "degraded"}, StatusConnected, false},
		{"down", http.StatusServiceUnavailable, map[string]string{"ai_status": "error"}, StatusDisconnected, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/health", r.URL.Path)
				writeJSON(w, tt.status, tt.body)
			})
			status, err := client.Health(context.Background())
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestClient_ClearSession(t *testing.T) {
	var got ClearSessionRequest
	client := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Session cleared"})
	})

	msg, err := client.ClearSession(context.Background(), "s42")
	require.NoError(t, err)
	assert.Equal(t, "Session cleared", msg)
	assert.Equal(t, "s42", got.SessionID)
}
