package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Sd3mir06/iguardian/internal/engine"
)

func TestWebhookDelivers(t *testing.T) {
	received := make(chan engine.Notification, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n engine.Notification
		require.NoError(t, json.NewDecoder(r.Body).Decode(&n))
		received <- n
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, 2*time.Second, zerolog.Nop())
	wh.Notify(engine.Notification{Title: "Threat level alert", Body: "score 55", Severity: "alert"})

	select {
	case n := <-received:
		require.Equal(t, "Threat level alert", n.Title)
		require.Equal(t, "alert", n.Severity)
	case <-time.After(3 * time.Second):
		t.Fatal("notification never arrived")
	}
}

func TestWebhookDisabledWithoutURL(t *testing.T) {
	wh := NewWebhook("", time.Second, zerolog.Nop())
	require.NotPanics(t, func() {
		wh.Notify(engine.Notification{Title: "dropped"})
	})
}

func TestWebhookSurvivesDeadEndpoint(t *testing.T) {
	wh := NewWebhook("http://127.0.0.1:1", 200*time.Millisecond, zerolog.Nop())
	require.NotPanics(t, func() {
		wh.Notify(engine.Notification{Title: "undeliverable"})
	})
	// Give the async attempt time to fail and log.
	time.Sleep(300 * time.Millisecond)
}
