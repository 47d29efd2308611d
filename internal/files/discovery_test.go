package files

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("WREC"), 0644))
}

func TestFindWellFiles(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		expected []string
	}{
		{
			name:     "flat directory",
			files:    []string{"A1.wrec", "B1.wrec", "notes.txt"},
			expected: []string{"A1.wrec", "B1.wrec"},
		},
		{
			name:     "nested platform folders",
			files:    []string{"plate/A1.wrec", "plate/sub/A2.xlsx", "__MACOSX/plate/._A1.wrec", "__MACOSX/plate/A1.wrec"},
			expected: []string{"A1.wrec", "A2.xlsx"},
		},
		{
			name:     "lock and resource fork files",
			files:    []string{"~$A1.xlsx", "._B1.wrec", "C1.WREC"},
			expected: []string{"C1.WREC"},
		},
		{
			name:     "empty directory",
			files:    nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				touch(t, filepath.Join(dir, f))
			}

			found, err := NewDiscovery(dir).FindWellFiles(".")
			require.NoError(t, err)

			var names []string
			for _, f := range found {
				names = append(names, f.Name)
				assert.Equal(t, int64(4), f.Size)
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestFindWellFilesMissingDir(t *testing.T) {
	_, err := NewDiscovery("").FindWellFiles(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestExtractWellFiles(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "plate.zip")
	writeZip(t, archive, map[string]string{
		"MA20123456/A1.wrec":            "WREC-a1",
		"MA20123456/B1.wrec":            "WREC-b1",
		"MA20123456/readme.txt":         "ignore",
		"__MACOSX/MA20123456/._A1.wrec": "fork",
		"__MACOSX/MA20123456/A1.wrec":   "fork",
		"Downloads/MA20123456/A2.wrec":  "WREC-a2",
	})

	m := NewManager("")
	dir, err := m.ScratchDir("plate-*")
	require.NoError(t, err)

	found, err := ExtractWellFiles(archive, dir)
	require.NoError(t, err)

	var names []string
	for _, f := range found {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"A1.wrec", "B1.wrec", "A2.wrec"}, names)

	content, err := os.ReadFile(filepath.Join(dir, "MA20123456", "A1.wrec"))
	require.NoError(t, err)
	assert.Equal(t, "WREC-a1", string(content))

	require.NoError(t, m.Cleanup())
	assert.NoDirExists(t, dir)
	assert.NoError(t, m.Cleanup())
}

func TestExtractWellFilesRejectsTraversal(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.zip")
	writeZip(t, archive, map[string]string{"../../escape.wrec": "WREC"})

	_, err := ExtractWellFiles(archive, t.TempDir())
	assert.Error(t, err)
}

func TestExtractWellFilesSizeLimit(t *testing.T) {
	prev := maxEntryBytes
	maxEntryBytes = 8
	t.Cleanup(func() { maxEntryBytes = prev })

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "at the limit", body: "WREC-a1!"},
		{name: "one byte over", body: "WREC-a1!!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive := filepath.Join(t.TempDir(), "plate.zip")
			writeZip(t, archive, map[string]string{"A1.wrec": tt.body})
			dest := t.TempDir()

			found, err := ExtractWellFiles(archive, dest)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEntryTooLarge)
				assert.NoFileExists(t, filepath.Join(dest, "A1.wrec"))
				return
			}
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, int64(len(tt.body)), found[0].Size)
		})
	}
}

func TestPathHelpers(t *testing.T) {
	assert.True(t, IsArchive("plate.ZIP"))
	assert.False(t, IsArchive("plate.wrec"))
	assert.True(t, IsDirectory(t.TempDir()))
	assert.False(t, IsDirectory(filepath.Join(t.TempDir(), "absent")))
	assert.Equal(t, []string{"/a", "/b"}, Paths([]FileInfo{{Path: "/a"}, {Path: "/b"}}))

	nested := filepath.Join(t.TempDir(), "x", "y")
	require.NoError(t, EnsureDirectory(nested))
	assert.DirExists(t, nested)
}
