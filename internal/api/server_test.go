package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anamnesis-symptom-engine/internal/catalog"
	"github.com/anamnesis-symptom-engine/internal/domain"
	"github.com/anamnesis-symptom-engine/internal/extraction"
	"github.com/anamnesis-symptom-engine/internal/service"
	"github.com/anamnesis-symptom-engine/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, withStore bool) *Server {
	t.Helper()

	c, err := catalog.New("test-1", []domain.Symptom{
		domain.NewSymptom("температура", [][]string{{"температура"}}),
		domain.NewSymptom("кашель", [][]string{{"кашель"}}),
		domain.NewSymptom("насморк", [][]string{{"насморк"}}),
	})
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	var patients store.Store
	if withStore {
		s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "patients.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		patients = s
	}

	svc := service.NewAnamnesisService(logger, c, extraction.NewSubstringExtractor(c), patients, nil, nil, service.Options{Concurrency: 2})
	return NewServer(domain.ServerConfig{Host: "127.0.0.1", Port: 8080}, svc, logger)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" && !strings.HasPrefix(path, "/api/v1/metrics") {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	w := doRequest(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test-1", body["catalog_version"])
	assert.Equal(t, float64(3), body["symptoms"])
	assert.Equal(t, false, body["patient_store"])
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestListSymptoms(t *testing.T) {
	s := newTestServer(t, false)
	w := doRequest(s, http.MethodGet, "/api/v1/symptoms", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Version  string           `json:"version"`
		Symptoms []domain.Symptom `json:"symptoms"`
	}
	decode(t, w, &body)
	assert.Equal(t, "test-1", body.Version)
	require.Len(t, body.Symptoms, 3)
	assert.Equal(t, "температура", body.Symptoms[0].Name)
}

func TestExtract(t *testing.T) {
	s := newTestServer(t, false)
	w := doRequest(s, http.MethodPost, "/api/v1/extract", `{"text":"у меня температура и кашель"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body RecordResponse
	decode(t, w, &body)
	assert.Equal(t, []int{1, 1, 3}, body.Vector)
	assert.Equal(t, domain.YES, body.Statuses["температура"])
	assert.Equal(t, domain.NO_INFO, body.Statuses["насморк"])
	require.Len(t, body.Symptoms, 3)
	assert.Equal(t, "кашель", body.Symptoms[1].Symptom)
}

func TestExtract_InvalidBody(t *testing.T) {
	s := newTestServer(t, false)
	w := doRequest(s, http.MethodPost, "/api/v1/extract", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var apiErr domain.APIError
	decode(t, w, &apiErr)
	assert.Equal(t, domain.ErrInvalidInput, apiErr.Code)
	assert.Equal(t, w.Header().Get("X-Correlation-ID"), apiErr.RequestID)
}

func TestExtractBatch(t *testing.T) {
	s := newTestServer(t, false)
	w := doRequest(s, http.MethodPost, "/api/v1/extract/batch", `{"texts":["насморк","ничего","кашель, температура"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Results []BatchItem `json:"results"`
	}
	decode(t, w, &body)
	require.Len(t, body.Results, 3)
	assert.Equal(t, []int{3, 3, 1}, body.Results[0].Record.Vector)
	assert.Equal(t, []int{3, 3, 3}, body.Results[1].Record.Vector)
	assert.Equal(t, []int{1, 1, 3}, body.Results[2].Record.Vector)
	assert.Equal(t, 2, body.Results[2].Index)
}

func TestMerge(t *testing.T) {
	s := newTestServer(t, false)

	w := doRequest(s, http.MethodPost, "/api/v1/merge",
		`{"records":[{"температура":"YES","кашель":"NO"},{"температура":"NO","насморк":"YES"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body RecordResponse
	decode(t, w, &body)
	assert.Equal(t, []int{4, 2, 1}, body.Vector)

	w = doRequest(s, http.MethodPost, "/api/v1/merge", `{"records":[{"сыпь":"YES"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var apiErr domain.APIError
	decode(t, w, &apiErr)
	assert.Equal(t, domain.ErrValidation, apiErr.Code)

	w = doRequest(s, http.MethodPost, "/api/v1/merge", `{"records":[{"кашель":"MAYBE"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExplain(t *testing.T) {
	s := newTestServer(t, false)

	w := doRequest(s, http.MethodPost, "/api/v1/explain",
		`{"statuses":{"температура":"YES","кашель":"YES","насморк":"NO"},"prediction":{"disease":"ОРВИ","probability":0.83}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Наблюдается ОРВИ с вероятностью 83%")

	w = doRequest(s, http.MethodPost, "/api/v1/explain", `{"statuses":{"температура":"YES"}}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doRequest(s, http.MethodPost, "/api/v1/explain",
		`{"statuses":{},"prediction":{"disease":"ОРВИ","probability":1.5}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, false)
	doc := "case_id,case,marked_a,marked_b,extractor_a,extractor_b\n1,x,1,0,1,0\n2,y,-1,0,0,0\n"

	w := doRequest(s, http.MethodPost, "/api/v1/metrics", doc)
	require.Equal(t, http.StatusOK, w.Code)
	var report struct {
		Cases    int                `json:"cases"`
		Excluded []string           `json:"excluded"`
		Rates    map[string]float64 `json:"rates"`
	}
	decode(t, w, &report)
	assert.Equal(t, 2, report.Cases)
	assert.Equal(t, []string{"b"}, report.Excluded)
	assert.Equal(t, 0.5, report.Rates["VALID"])
	assert.Equal(t, 0.5, report.Rates["VALIDATE_EXTRACTOR"])

	w = doRequest(s, http.MethodPost, "/api/v1/metrics?format=csv", doc)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "symptom,VALID,INVALID,VALIDATE_EXTRACTOR,VALIDATE_MARKER,UNDEFINED,UNSCORED\na,1,0,1,0,0,0\n", w.Body.String())

	w = doRequest(s, http.MethodPost, "/api/v1/metrics?encoding=binary", doc)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(s, http.MethodPost, "/api/v1/metrics", "case_id\n1\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPatients(t *testing.T) {
	s := newTestServer(t, true)

	w := doRequest(s, http.MethodPost, "/api/v1/patients/p-1/messages", `{"text":"температура"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var msg MessageResponse
	decode(t, w, &msg)
	assert.Equal(t, "p-1", msg.Patient.PatientID)
	assert.Equal(t, 1, msg.Patient.MessageCount)
	assert.Equal(t, []int{1, 3, 3}, msg.Patient.Record.Vector)

	w = doRequest(s, http.MethodPost, "/api/v1/patients/p-1/messages", `{"text":"кашель"}`)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &msg)
	assert.Equal(t, 2, msg.Patient.MessageCount)
	assert.Equal(t, []int{3, 1, 3}, msg.Message.Vector)
	assert.Equal(t, []int{1, 1, 3}, msg.Patient.Record.Vector)

	w = doRequest(s, http.MethodGet, "/api/v1/patients/p-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var patient PatientResponse
	decode(t, w, &patient)
	assert.Equal(t, "test-1", patient.CatalogVersion)
	assert.Equal(t, []int{1, 1, 3}, patient.Record.Vector)

	w = doRequest(s, http.MethodGet, "/api/v1/patients?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = doRequest(s, http.MethodGet, "/api/v1/patients?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(s, http.MethodDelete, "/api/v1/patients/p-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/patients/p-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var apiErr domain.APIError
	decode(t, w, &apiErr)
	assert.Equal(t, domain.ErrNotFoundCode, apiErr.Code)

	w = doRequest(s, http.MethodDelete, "/api/v1/patients/p-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(s, http.MethodPost, "/api/v1/patients/p-2/messages", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPatients_NoStore(t *testing.T) {
	s := newTestServer(t, false)
	w := doRequest(s, http.MethodPost, "/api/v1/patients/p-1/messages", `{"text":"кашель"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/patients/p-1/stream", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPatientStream(t *testing.T) {
	s := newTestServer(t, true)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/patients/p-9/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.NoError(t, conn.WriteJSON(StreamMessage{Text: "насморк"}))
	var reply StreamReply
	require.NoError(t, conn.ReadJSON(&reply))
	require.Empty(t, reply.Error)
	assert.Equal(t, []int{3, 3, 1}, reply.Patient.Record.Vector)

	require.NoError(t, conn.WriteJSON(StreamMessage{Text: "кашель"}))
	reply = StreamReply{}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, 2, reply.Patient.MessageCount)
	assert.Equal(t, []int{3, 1, 1}, reply.Patient.Record.Vector)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
}
