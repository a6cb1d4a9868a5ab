package shell

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aligator/fatnav"
)

func TestOpenFiles(t *testing.T) {
	files := NewOpenFiles()
	entry := fatnav.DirEntry{Name: "A.TXT", Cluster: 6, Size: 10}

	file, err := files.Open("/DOCS/A.TXT", entry)
	require.NoError(t, err)
	assert.Equal(t, "/DOCS/A.TXT", file.Path)
	assert.Equal(t, int64(0), file.Offset)

	_, err = files.Open("/docs/a.txt", entry)
	assert.ErrorIs(t, err, ErrAlreadyOpen)

	got, err := files.Get("/Docs/A.txt")
	require.NoError(t, err)
	got.Offset = 4

	list := files.List()
	require.Len(t, list, 1)
	assert.Equal(t, int64(4), list[0].Offset, "changes to Get results are kept")

	require.NoError(t, files.Close("/DOCS/A.TXT"))
	assert.ErrorIs(t, files.Close("/DOCS/A.TXT"), ErrNotOpen)
	_, err = files.Get("/DOCS/A.TXT")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.Equal(t, 0, files.Len())
}

func TestOpenFiles_Limit(t *testing.T) {
	files := NewOpenFiles()
	for i := 0; i < MaxOpenFiles; i++ {
		_, err := files.Open(fmt.Sprintf("/F%d.TXT", i), fatnav.DirEntry{})
		require.NoError(t, err)
	}

	_, err := files.Open("/ONE_MORE.TXT", fatnav.DirEntry{})
	assert.ErrorIs(t, err, ErrTooManyOpen)

	require.NoError(t, files.Close("/F3.TXT"))
	_, err = files.Open("/ONE_MORE.TXT", fatnav.DirEntry{})
	assert.NoError(t, err)

	names := make([]string, 0, MaxOpenFiles)
	for _, f := range files.List() {
		names = append(names, f.Path)
	}
	assert.Equal(t, "/ONE_MORE.TXT", names[len(names)-1], "files are kept in the order they were opened")

	files.CloseAll()
	assert.Equal(t, 0, files.Len())
}
