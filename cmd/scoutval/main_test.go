package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr string
	}{
		{
			name: "season from event key",
			args: []string{"-event", "2025txhou"},
			want: options{eventKey: "2025txhou", season: 2025},
		},
		{
			name: "single match with explicit season",
			args: []string{"-event", "txhou", "-season", "2024", "-match", "txhou_qm3", "-migrate"},
			want: options{eventKey: "txhou", matchKey: "txhou_qm3", season: 2024, migrate: true},
		},
		{
			name:    "missing event",
			args:    []string{"-season", "2025"},
			wantErr: "-event is required",
		},
		{
			name:    "no year prefix",
			args:    []string{"-event", "txhou"},
			wantErr: "-season is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args, io.Discard)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
