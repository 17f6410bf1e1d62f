package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"capital-stack-lab/internal/domain"
)

func TestLoadProject_RoundTripSample(t *testing.T) {
	data, err := json.MarshalIndent(SampleProject(), "", "  ")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "project.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p, err := LoadProject(path)
	require.NoError(t, err)
	require.Equal(t, "northern-lights", p.Name)
	require.True(t, p.Budget.Equal(SampleProject().Budget))
	require.Equal(t, 10, p.Revenue.Len())
	require.True(t, p.Revenue.Total().Equal(SampleProject().Revenue.Total()))
	require.Equal(t, []string{"ca-fed", "ca-on"}, p.Jurisdictions)
}

func TestParseProject(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
	}{
		{
			name: "minimal",
			json: `{"name":"short","budget":"1000000","qualifying_spend":"800000",
				"revenue":{"periods":[{"index":0,"revenue":"250000"},{"index":1,"revenue":"900000"}]}}`,
		},
		{
			name:    "unknown field",
			json:    `{"name":"short","budget":"1000000","genre":"drama"}`,
			wantErr: true,
		},
		{
			name:    "zero budget",
			json:    `{"name":"short","budget":"0"}`,
			wantErr: true,
		},
		{
			name:    "negative revenue",
			json:    `{"name":"short","budget":"10","revenue":{"periods":[{"index":0,"revenue":"-1"}]}}`,
			wantErr: true,
		},
		{
			name:    "malformed",
			json:    `{"name":`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProject([]byte(tt.json))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseProject() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadProject_Missing(t *testing.T) {
	_, err := LoadProject(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestParseProject_ValidationError(t *testing.T) {
	_, err := ParseProject([]byte(`{"name":"","budget":"5"}`))
	require.ErrorIs(t, err, domain.ErrValidation)
}
