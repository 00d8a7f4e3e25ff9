package e2e

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/newsmelody/api/internal/model"
)

const validSessionBody = `{
	"title": "Renewable target raised to 40 percent",
	"body": "The government announced a new renewable energy target for 2030.",
	"source": "national wire",
	"date": "2026-01-10"
}`

func TestCreateSession(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/sessions/", validSessionBody)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)

	body := parseJSON(t, resp)
	if body["sessionId"] == "" || body["sessionId"] == nil {
		t.Error("expected sessionId in response")
	}
	if body["status"] != string(model.StatusCreated) {
		t.Errorf("expected status created, got %v", body["status"])
	}
}

func TestCreateSession_Unauthorized(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/sessions/", validSessionBody, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestCreateSession_Validation(t *testing.T) {
	ta := setupApp(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"missing title", `{"body":"b","source":"s","date":"2026-01-10"}`},
		{"bad date", `{"title":"t","body":"b","source":"s","date":"10/01/2026"}`},
		{"malformed json", `{"title":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/sessions/", tt.body)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			assertStatus(t, resp, http.StatusBadRequest)
		})
	}
}

func TestGetSession(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/sessions/", validSessionBody)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	created := parseJSON(t, resp)
	id := created["sessionId"].(string)

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/sessions/"+id, "")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["id"] != id {
		t.Errorf("expected id %s, got %v", id, body["id"])
	}
	news, ok := body["news"].(map[string]interface{})
	if !ok || news["title"] == "" {
		t.Error("expected news snapshot in session record")
	}
}

func TestGetSession_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/sessions/20260101_000000_deadbeef", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestListSessions(t *testing.T) {
	ta := setupApp(t)

	for i := 0; i < 3; i++ {
		resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/sessions/", validSessionBody)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		assertStatus(t, resp, http.StatusCreated)
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/sessions/", "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["count"].(float64) != 3 {
		t.Errorf("expected 3 sessions, got %v", body["count"])
	}

	// Unknown status filter is rejected.
	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/sessions/?status=bogus", "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestAdvanceSession(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/sessions/", validSessionBody)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	created := parseJSON(t, resp)
	id := created["sessionId"].(string)

	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/sessions/"+id+"/advance", "")
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	body := parseJSON(t, resp)
	if body["enqueued"] != true {
		t.Error("expected enqueued=true")
	}

	// With all clients mocked the inline run parks at lyrics_ready waiting
	// for the audio artifact.
	waitForStatus(t, ta, id, model.StatusLyricsReady)
}

func TestAdvanceSession_WaitingForAudio(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/sessions/", validSessionBody)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	created := parseJSON(t, resp)
	id := created["sessionId"].(string)

	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/sessions/"+id+"/advance", "")
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	readBody(t, resp)
	waitForStatus(t, ta, id, model.StatusLyricsReady)

	// Advancing again before the audio upload reports the wait instead of
	// queueing another run.
	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/sessions/"+id+"/advance", "")
	if err != nil {
		t.Fatalf("second advance failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	errDetail, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	if errDetail["code"] != "NOT_YET_READY" {
		t.Errorf("expected code NOT_YET_READY, got %v", errDetail["code"])
	}
}

func TestAdvanceSession_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/sessions/20260101_000000_deadbeef/advance", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

// waitForStatus polls the store until the session reaches the wanted status.
func waitForStatus(t *testing.T, ta *testApp, id string, want model.SessionStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		session, err := ta.store.Get(context.Background(), id)
		if err == nil && session.Status == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	session, _ := ta.store.Get(context.Background(), id)
	t.Fatalf("session never reached %s, last status: %+v", want, session.Status)
}
