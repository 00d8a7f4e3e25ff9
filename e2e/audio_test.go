package e2e

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/newsmelody/api/internal/model"
)

// createAndAdvance creates a session and runs it to lyrics_ready via mocks.
func createAndAdvance(t *testing.T, ta *testApp) string {
	t.Helper()

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/sessions/", validSessionBody)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	id := parseJSON(t, resp)["sessionId"].(string)

	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/sessions/"+id+"/advance", "")
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	waitForStatus(t, ta, id, model.StatusLyricsReady)
	return id
}

func doAudioUpload(t *testing.T, ta *testApp, id, contentType string, payload []byte) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="audio.mp3"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	w.Close()

	req, err := http.NewRequest(http.MethodPut, "/api/sessions/"+id+"/audio", &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+generateToken(t))

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestAudioUpload(t *testing.T) {
	ta := setupApp(t)
	id := createAndAdvance(t, ta)

	resp := doAudioUpload(t, ta, id, "audio/mpeg", []byte("fake-mp3-bytes"))
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["sessionId"] != id {
		t.Errorf("expected sessionId %s, got %v", id, body["sessionId"])
	}
	if body["path"] == "" || body["path"] == nil {
		t.Error("expected stored path in response")
	}
}

func TestAudioUpload_WrongState(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/sessions/", validSessionBody)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	id := parseJSON(t, resp)["sessionId"].(string)

	// Session is still at created; audio is only accepted at lyrics_ready.
	resp2 := doAudioUpload(t, ta, id, "audio/mpeg", []byte("fake-mp3-bytes"))
	assertStatus(t, resp2, http.StatusConflict)
}

func TestAudioUpload_InvalidType(t *testing.T) {
	ta := setupApp(t)
	id := createAndAdvance(t, ta)

	resp := doAudioUpload(t, ta, id, "video/mp4", []byte("not-audio"))
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestAudioUpload_MissingFile(t *testing.T) {
	ta := setupApp(t)
	id := createAndAdvance(t, ta)

	resp, err := doAuthRequest(t, ta.app, http.MethodPut, "/api/sessions/"+id+"/audio", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}
