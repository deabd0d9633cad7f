package cmd

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/onepiece-offline/pkg/config"
	"github.com/kerbaras/onepiece-offline/pkg/data"
)

func TestParseChapters(t *testing.T) {
	numbers, err := parseChapters([]string{"1100", "7", "1"})
	require.NoError(t, err)
	assert.Equal(t, []int{1100, 7, 1}, numbers)

	for _, bad := range []string{"0", "-3", "abc", "1.5"} {
		_, err := parseChapters([]string{"1", bad})
		assert.Error(t, err, bad)
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "nicht verfügbar", describe(errors.Wrap(data.ErrNotAvailable, "chapter 9")))
	assert.Equal(t, "nicht heruntergeladen", describe(errors.Wrap(data.ErrNotFound, "chapter 9")))
	assert.Contains(t, describe(data.Transient(errors.New("timeout"), "chapter 9")), "Netzwerkfehler")
	assert.Equal(t, "boom", describe(errors.New("boom")))
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.PathEnv, filepath.Join(dir, "missing.yaml"))
	t.Setenv("OPO_DATA_DIR", dir)
	configPath = ""
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestDeleteMissingChapter(t *testing.T) {
	err := execute(t, "delete", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 chapters could not be deleted")
}

func TestExportUnknownFormat(t *testing.T) {
	err := execute(t, "export", "5", "--format", "mobi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestExportMissingChapter(t *testing.T) {
	err := execute(t, "export", "5", "--format", "cbz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, data.ErrNotFound))
}

func TestDownloadRejectsBadNumbers(t *testing.T) {
	err := execute(t, "download", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid chapter number")
}
