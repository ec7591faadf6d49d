package extractor

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/nfrund/scripthost/internal/script"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_ExtractScripts(t *testing.T) {
	fs := afero.NewMemMapFs()
	var out bytes.Buffer

	written, err := NewExtractor(fs, false, &out).ExtractScripts("/srv/scripts")
	require.NoError(t, err)

	names, err := StarterScripts()
	require.NoError(t, err)
	require.Len(t, written, len(names))
	for _, name := range names {
		exists, err := afero.Exists(fs, filepath.Join("/srv/scripts", name))
		require.NoError(t, err)
		assert.True(t, exists, name)
	}
	assert.Contains(t, out.String(), "Created target directory")
	assert.Contains(t, out.String(), "chat_filter.lua")
}

func TestExtractor_prepareTargetDirectory(t *testing.T) {
	tests := []struct {
		name      string
		force     bool
		existing  bool
		wantError error
	}{
		{name: "new directory"},
		{name: "existing directory without force", existing: true, wantError: ErrTargetExists},
		{name: "existing directory with force", existing: true, force: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if tt.existing {
				require.NoError(t, fs.MkdirAll("/scripts", 0o755))
			}

			err := NewExtractor(fs, tt.force, nil).prepareTargetDirectory("/scripts")
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
			isDir, err := afero.IsDir(fs, "/scripts")
			require.NoError(t, err)
			assert.True(t, isDir)
		})
	}
}

func TestStarterScriptsLoadCleanly(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := NewExtractor(fs, false, nil).ExtractScripts("/scripts")
	require.NoError(t, err)

	registry := script.NewRegistry(script.NewFactory(script.GetDefaultSecurityLimits()), script.WithFs(fs))
	report := registry.LoadAll("/scripts")
	assert.Equal(t, 0, report.Failed(), "%v", report.Failures)
	assert.Equal(t, 4, report.Succeeded)

	snapshot := registry.Snapshot()
	assert.Len(t, snapshot.Handlers(script.EventChatMessage), 1)
	assert.Len(t, snapshot.Handlers(script.EventGameAwake), 1)
	assert.Len(t, snapshot.Handlers(script.EventPlayerLogin), 1)
	assert.Len(t, snapshot.Handlers(script.EventPlayerSpawnedInWorld), 1)
}
