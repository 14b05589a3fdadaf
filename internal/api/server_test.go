package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"edugen/internal/config"
	"edugen/internal/models"
	"edugen/internal/transport"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Config{
		APIAddr:          ":0",
		DataInRoot:       t.TempDir(),
		WebhookURL:       "http://localhost:5678/webhook/edugen-process",
		RequestTimeoutMs: 60000,
		DemoMode:         true,
		DemoScenario:     "fast-success",
		RunHistoryLimit:  50,
		MaxUploadBytes:   25 << 20,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s := NewServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	t.Cleanup(s.Close)
	return s
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func uploadPDF(t *testing.T, h http.Handler, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func stubPDF() []byte {
	pad := bytes.Repeat([]byte("0123456789"), 4000)
	return append([]byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"), pad...)
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["ok"])
}

func TestStateDefaults(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	rec := doJSON(t, h, http.MethodGet, "/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	pipelineState := body["pipeline"].(map[string]any)
	require.Equal(t, "idle", pipelineState["status"])
	require.Equal(t, "Waiting", pipelineState["currentStep"])
	require.Len(t, pipelineState["steps"].([]any), 7)
	require.Equal(t, "Idle", body["statusLabel"])
	require.Empty(t, body["warnings"])
	require.Empty(t, body["logs"])
	require.Nil(t, body["document"])
}

func TestGenerateWithoutDocument(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	rec := doJSON(t, h, http.MethodPost, "/generate", map[string]string{"style": "storia"})
	require.Equal(t, http.StatusConflict, rec.Code)

	errBody := decodeBody(t, rec)["error"].(map[string]any)
	require.Equal(t, "EG-API-4009", errBody["code"])
}

func TestUploadRejectsNonPDF(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	rec := uploadPDF(t, h, "notes.txt", []byte("plain text"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errBody := decodeBody(t, rec)["error"].(map[string]any)
	require.Equal(t, "EG-API-4001", errBody["code"])
	require.Contains(t, errBody["message"], "PDF")
}

func TestUploadAndDemoRun(t *testing.T) {
	server := newTestServer(t, nil)
	h := server.Routes()

	rec := uploadPDF(t, h, "capitolo_storia.pdf", stubPDF())
	require.Equal(t, http.StatusCreated, rec.Code)
	doc := decodeBody(t, rec)
	require.Equal(t, "capitolo_storia.pdf", doc["name"])
	require.Equal(t, "Storia", doc["subject"])

	rec = doJSON(t, h, http.MethodPost, "/generate", map[string]string{"style": "storia", "videoPreset": "didattico"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/generate", map[string]string{"style": "storia"})
	require.Equal(t, http.StatusConflict, rec.Code)

	require.Eventually(t, func() bool {
		state := decodeBody(t, doJSON(t, h, http.MethodGet, "/state", nil))
		return state["pipeline"].(map[string]any)["status"] == "complete"
	}, 15*time.Second, 50*time.Millisecond)

	state := decodeBody(t, doJSON(t, h, http.MethodGet, "/state", nil))
	stats := state["stats"].(map[string]any)
	require.Equal(t, float64(6), stats["scenesGenerated"])
	require.NotNil(t, state["lastRequestPayload"])
	require.NotNil(t, state["lastResponsePayload"])

	output := state["output"].(map[string]any)
	scenes, ok := output["storyboard"].([]any)
	require.True(t, ok, "storyboard encodes as a scene array")
	require.Len(t, scenes, 6)
}

func TestDeleteDocumentResetsState(t *testing.T) {
	h := newTestServer(t, nil).Routes()

	rec := uploadPDF(t, h, "capitolo_storia.pdf", stubPDF())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/documents", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	state := decodeBody(t, doJSON(t, h, http.MethodGet, "/state", nil))
	require.Nil(t, state["document"])

	rec = doJSON(t, h, http.MethodPost, "/generate", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestPutSettingsSanitizes(t *testing.T) {
	server := newTestServer(t, nil)
	h := server.Routes()

	rec := doJSON(t, h, http.MethodPut, "/settings", models.Settings{
		WebhookURL:       "http://example.test/hook",
		RequestTimeoutMs: 1000,
		DemoMode:         true,
		DemoScenario:     "bogus",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	saved := decodeBody(t, rec)
	require.Equal(t, float64(5000), saved["requestTimeoutMs"])
	require.Equal(t, "fast-success", saved["demoScenario"])
	require.Equal(t, "http://example.test/hook", saved["webhookUrl"])

	settings := server.Settings()
	require.Equal(t, 5000, settings.RequestTimeoutMs)

	_, err := os.Stat(filepath.Join(server.cfg.DataInRoot, "settings.json"))
	require.NoError(t, err)
}

func TestPutSettingsRejectsBadURL(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	rec := doJSON(t, h, http.MethodPut, "/settings", models.Settings{WebhookURL: "notaurl"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsPersistAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	server := newTestServer(t, func(cfg *config.Config) { cfg.DataInRoot = dir })
	rec := doJSON(t, server.Routes(), http.MethodPut, "/settings", models.Settings{
		WebhookURL:       "http://example.test/hook",
		RequestTimeoutMs: 30000,
		DemoScenario:     "slow-success",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	reloaded := newTestServer(t, func(cfg *config.Config) { cfg.DataInRoot = dir })
	settings := reloaded.Settings()
	require.Equal(t, "http://example.test/hook", settings.WebhookURL)
	require.Equal(t, 30000, settings.RequestTimeoutMs)
	require.Equal(t, "slow-success", settings.DemoScenario)
}

func TestTestConnectionHealthyBackend(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"healthy":true,"success":true}`))
	}))
	defer backend.Close()

	h := newTestServer(t, nil).Routes()
	rec := doJSON(t, h, http.MethodPost, "/test-connection", map[string]any{
		"webhookUrl":       backend.URL,
		"requestTimeoutMs": 2000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, transport.ConnSuccess, decodeBody(t, rec)["state"])
}

func TestNarrationAsset(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	rec := doJSON(t, h, http.MethodGet, "/demo/narration.wav", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(rec.Body.String(), "RIFF"))
}

func TestRunsWithoutDatabase(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	rec := doJSON(t, h, http.MethodGet, "/runs", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	errBody := decodeBody(t, rec)["error"].(map[string]any)
	require.Equal(t, "EG-API-5030", errBody["code"])
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	rec := doJSON(t, h, http.MethodOptions, "/state", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
