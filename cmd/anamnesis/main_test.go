package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anamnesis-symptom-engine/internal/anamnesis"
	"github.com/anamnesis-symptom-engine/internal/catalog"
	"github.com/anamnesis-symptom-engine/internal/domain"
)

func TestReadTexts(t *testing.T) {
	texts, err := readTexts([]string{"болит", "горло"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"болит горло"}, texts)

	texts, err = readTexts(nil, "")
	require.NoError(t, err)
	assert.Empty(t, texts)

	path := filepath.Join(t.TempDir(), "messages.txt")
	require.NoError(t, os.WriteFile(path, []byte("кашель\n\n  насморк  \n"), 0644))
	texts, err = readTexts(nil, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"кашель", "насморк"}, texts)

	_, err = readTexts(nil, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestFormatVector(t *testing.T) {
	c, err := catalog.New("test-1", []domain.Symptom{
		domain.NewSymptom("кашель", [][]string{{"кашель"}}),
		domain.NewSymptom("насморк", [][]string{{"насморк"}}),
	})
	require.NoError(t, err)

	r, err := anamnesis.FromStatuses(c, map[string]domain.SymptomStatus{"насморк": domain.NO})
	require.NoError(t, err)
	assert.Equal(t, "3,2", formatVector(r))
}

func TestMetricsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "showcase.csv")
	require.NoError(t, os.WriteFile(path, []byte("marked_a,extractor_a\n1,1\n3,2\n"), 0644))

	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{
			name:     "csv report",
			args:     []string{"metrics", path, "--encoding", "codes", "--format", "csv"},
			contains: []string{"symptom,VALID,INVALID,VALIDATE_EXTRACTOR,VALIDATE_MARKER,UNDEFINED,UNSCORED\na,1,0,0,1,0,0\n"},
		},
		{
			name:     "human report",
			args:     []string{"metrics", path, "--encoding", "codes", "--format", "human"},
			contains: []string{"Cases: 2", "VALID", "50.00%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetArgs(tt.args)
			require.NoError(t, rootCmd.Execute())
			for _, want := range tt.contains {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestMetricsCommandRejectsEncoding(t *testing.T) {
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"metrics", "showcase.csv", "--encoding", "bits"})
	assert.Error(t, rootCmd.Execute())
}
