package mcp

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anamnesis-symptom-engine/internal/catalog"
	"github.com/anamnesis-symptom-engine/internal/domain"
	"github.com/anamnesis-symptom-engine/internal/extraction"
	"github.com/anamnesis-symptom-engine/internal/service"
	"github.com/anamnesis-symptom-engine/internal/store"
)

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

	svc := service.NewAnamnesisService(logger, c, extraction.NewSubstringExtractor(c), patients, nil, nil, service.Options{})
	return NewServer(domain.MCPConfig{ToolTimeout: 5 * time.Second}, svc, logger)
}

func TestNewServer(t *testing.T) {
	server := newTestServer(t, false)
	assert.NotNil(t, server.mcpServer)
	assert.Equal(t, "anamnesis-symptom-engine", server.config.ServerName)
	assert.Equal(t, "1.0.0", server.config.ServerVersion)
	assert.NotNil(t, server.Handler())
}

func TestListSymptomsTool(t *testing.T) {
	server := newTestServer(t, false)
	_, out, err := server.handleListSymptoms(context.Background(), nil, ListSymptomsInput{})
	require.NoError(t, err)
	assert.Equal(t, "test-1", out.Version)
	require.Len(t, out.Symptoms, 3)
	assert.Equal(t, "кашель", out.Symptoms[1].Name)
	assert.Equal(t, [][]string{{"кашель"}}, out.Symptoms[1].Patterns)
}

func TestExtractSymptomsTool(t *testing.T) {
	server := newTestServer(t, false)
	_, out, err := server.handleExtractSymptoms(context.Background(), nil, ExtractInput{Text: "кашель и насморк"})
	require.NoError(t, err)

	assert.Equal(t, []int{3, 1, 1}, out.Vector)
	assert.Equal(t, "YES", out.Statuses["кашель"])
	assert.Equal(t, "NO_INFO", out.Statuses["температура"])
	assert.Equal(t, []string{"кашель", "насморк"}, out.Present)
	assert.Equal(t, []string{}, out.Absent)
}

func TestMergeRecordsTool(t *testing.T) {
	server := newTestServer(t, false)

	_, out, err := server.handleMergeRecords(context.Background(), nil, MergeInput{Records: []map[string]string{
		{"температура": "yes", "кашель": "NO"},
		{"температура": "NO"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2, 3}, out.Vector)
	assert.Equal(t, []string{"температура"}, out.Confused)

	_, _, err = server.handleMergeRecords(context.Background(), nil, MergeInput{Records: []map[string]string{
		{"кашель": "maybe"},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestExplainRecordTool(t *testing.T) {
	server := newTestServer(t, false)

	result, out, err := server.handleExplainRecord(context.Background(), nil, ExplainInput{
		Statuses:    map[string]string{"температура": "YES", "насморк": "NO"},
		Disease:     "ОРВИ",
		Probability: 0.5,
	})
	require.NoError(t, err)
	assert.Contains(t, out.Text, "Наблюдается ОРВИ с вероятностью 50%")
	assert.Equal(t, []string{"температура"}, out.Present)
	assert.Equal(t, []string{"насморк"}, out.Absent)

	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, out.Text, text.Text)

	_, _, err = server.handleExplainRecord(context.Background(), nil, ExplainInput{Disease: "", Probability: 0.5})
	assert.Error(t, err)
}

func TestEvaluateShowcaseTool(t *testing.T) {
	server := newTestServer(t, false)

	_, out, err := server.handleEvaluateShowcase(context.Background(), nil, EvaluateInput{
		CSV:      "marked_a,extractor_a\n1,1\n3,2\n",
		Encoding: "codes",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Cases)
	assert.Equal(t, 0.5, out.Rates["VALID"])
	assert.Equal(t, 0.5, out.Rates["VALIDATE_MARKER"])
	assert.Equal(t, "symptom,VALID,INVALID,VALIDATE_EXTRACTOR,VALIDATE_MARKER,UNDEFINED,UNSCORED\na,1,0,0,1,0,0\n", out.Table)

	_, _, err = server.handleEvaluateShowcase(context.Background(), nil, EvaluateInput{CSV: "x\n", Encoding: "bits"})
	assert.Error(t, err)
}

func TestPatientTools(t *testing.T) {
	server := newTestServer(t, true)
	ctx := context.Background()

	_, out, err := server.handleAddPatientMessage(ctx, nil, PatientMessageInput{PatientID: "p-1", Text: "температура"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.MessageCount)

	_, out, err = server.handleAddPatientMessage(ctx, nil, PatientMessageInput{PatientID: "p-1", Text: "насморк"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.MessageCount)
	assert.Equal(t, []int{1, 3, 1}, out.Record.Vector)

	_, out, err = server.handleGetPatientRecord(ctx, nil, PatientInput{PatientID: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, "p-1", out.PatientID)
	assert.Equal(t, []int{1, 3, 1}, out.Record.Vector)

	_, _, err = server.handleGetPatientRecord(ctx, nil, PatientInput{PatientID: "unknown"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
