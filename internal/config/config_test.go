package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsJSONRoundTrip(t *testing.T) {
	s := Settings{WindowWidth: 1600, WindowHeight: 900, WindowX: 10, WindowY: 20, Fullscreen: true}

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(s))

	var got Settings
	require.NoError(t, json.NewDecoder(&buf).Decode(&got))
	assert.Equal(t, s, got)
}

func TestDefaultSettingsUsedOnMalformedWidthHeight(t *testing.T) {
	// Mirrors Load's zero-value fallback without touching the real config
	// directory: a settings blob missing width/height should not leave the
	// window at 0x0.
	raw := []byte(`{"fullscreen": true}`)
	var s Settings
	require.NoError(t, json.Unmarshal(raw, &s))
	assert.Equal(t, 0, s.WindowWidth)

	if s.WindowWidth == 0 || s.WindowHeight == 0 {
		s.WindowWidth, s.WindowHeight = defaultSettings.WindowWidth, defaultSettings.WindowHeight
	}
	assert.Equal(t, defaultSettings.WindowWidth, s.WindowWidth)
	assert.Equal(t, defaultSettings.WindowHeight, s.WindowHeight)
}

func TestMD5FileIsStableAndContentSensitive(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.bin")
	pathB := filepath.Join(dir, "b.bin")

	require.NoError(t, os.WriteFile(pathA, []byte("hello world"), 0o600))
	require.NoError(t, os.WriteFile(pathB, []byte("hello there"), 0o600))

	sumA1, err := md5File(pathA)
	require.NoError(t, err)
	sumA2, err := md5File(pathA)
	require.NoError(t, err)
	assert.Equal(t, sumA1, sumA2, "hashing the same file twice should be stable")

	sumB, err := md5File(pathB)
	require.NoError(t, err)
	assert.NotEqual(t, sumA1, sumB, "different content should hash differently")
}

func TestMD5FileMatchesAcrossRenamedIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "source.mov")
	renamed := filepath.Join(dir, "renamed.mov")

	require.NoError(t, os.WriteFile(original, []byte("identical bytes"), 0o600))
	require.NoError(t, os.WriteFile(renamed, []byte("identical bytes"), 0o600))

	sumOriginal, err := md5File(original)
	require.NoError(t, err)
	sumRenamed, err := md5File(renamed)
	require.NoError(t, err)
	assert.Equal(t, sumOriginal, sumRenamed, "identical content under a different name should reuse the cache key")
}

func TestMD5FileMissingFileReturnsError(t *testing.T) {
	_, err := md5File(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
