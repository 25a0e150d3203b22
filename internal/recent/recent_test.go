package recent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, cap int) Store {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	s, err := NewStore(cap)
	require.NoError(t, err)
	return s
}

func TestAddListNewestFirst(t *testing.T) {
	s := newTestStore(t, 10)

	_, err := s.Add("/tmp/a.pdf")
	require.NoError(t, err)
	_, err = s.Add("/tmp/b.pdf")
	require.NoError(t, err)

	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "/tmp/b.pdf", entries[0].Path)
	require.Equal(t, "b.pdf", entries[0].Name)
	require.Equal(t, "/tmp/a.pdf", entries[1].Path)
}

func TestAddDeduplicatesByPath(t *testing.T) {
	s := newTestStore(t, 10)

	_, err := s.Add("/tmp/a.pdf")
	require.NoError(t, err)
	_, err = s.Add("/tmp/b.pdf")
	require.NoError(t, err)
	_, err = s.Add("/tmp/a.pdf")
	require.NoError(t, err)

	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "/tmp/a.pdf", entries[0].Path)
	require.Equal(t, "/tmp/b.pdf", entries[1].Path)
}

func TestCapEvictsOldest(t *testing.T) {
	s := newTestStore(t, 3)

	for _, p := range []string{"/a", "/b", "/c", "/d"} {
		_, err := s.Add(p)
		require.NoError(t, err)
	}

	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "/d", entries[0].Path)
	require.Equal(t, "/b", entries[2].Path)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t, 10)

	id, err := s.Add("/tmp/a.pdf")
	require.NoError(t, err)
	_, err = s.Add("/tmp/b.pdf")
	require.NoError(t, err)

	require.NoError(t, s.Remove(id))

	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "/tmp/b.pdf", entries[0].Path)
}

func TestRename(t *testing.T) {
	s := newTestStore(t, 10)

	id, err := s.Add("/tmp/a.pdf")
	require.NoError(t, err)
	require.NoError(t, s.Rename(id, "contract draft"))

	entries, err := s.List()
	require.NoError(t, err)
	require.Equal(t, "contract draft", entries[0].Name)
	require.Equal(t, "/tmp/a.pdf", entries[0].Path)
}

func TestListEmptyStore(t *testing.T) {
	s := newTestStore(t, 10)

	entries, err := s.List()
	require.NoError(t, err)
	require.Empty(t, entries)
}
