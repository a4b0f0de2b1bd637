package slidedir

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/deck-narrator/internal/domain"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), "")
	require.NoError(t, err)
	return m
}

func TestManager_PrepareClearsPreviousRun(t *testing.T) {
	m := newTestManager(t)

	dir, err := m.Prepare("u1", "p1")
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir.Path, fmt.Sprintf("slide_%d.png", i)), []byte("x"), 0o644))
	}

	dir, err = m.Prepare("u1", "p1")
	require.NoError(t, err)
	entries, err := os.ReadDir(dir.Path)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, os.WriteFile(filepath.Join(dir.Path, "slide_1.png"), []byte("y"), 0o644))
	names, err := m.List("u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"slide_1.png"}, names)
}

func TestManager_PrepareDistinctKeysConcurrently(t *testing.T) {
	m := newTestManager(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dir, err := m.Prepare("u1", fmt.Sprintf("p%d", i))
			if err != nil {
				errs <- err
				return
			}
			errs <- os.WriteFile(filepath.Join(dir.Path, "slide_1.png"), []byte("x"), 0o644)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	for i := 0; i < 20; i++ {
		names, err := m.List("u1", fmt.Sprintf("p%d", i))
		require.NoError(t, err)
		assert.Len(t, names, 1)
	}
}

func TestManager_ExternalPath(t *testing.T) {
	m := newTestManager(t)
	dir, err := m.Prepare("user-7", "1700000000000_My_Deck.pptx")
	require.NoError(t, err)

	locator := dir.Locator("slide_3.png")
	assert.Equal(t, "user-7/1700000000000_My_Deck.pptx/slide_3.png", locator)
	assert.Equal(t, "/uploads/slides/user-7/1700000000000_My_Deck.pptx/slide_3.png", m.ExternalPath(locator))

	custom, err := NewManager(t.TempDir(), "static/slides/")
	require.NoError(t, err)
	assert.Equal(t, "/static/slides/a/b/slide_1.png", custom.ExternalPath("a/b/slide_1.png"))
}

func TestManager_ExternalPathEscapesSegments(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		name    string
		locator string
		want    string
	}{
		{"plain", "u1/p1/slide_1.png", "/uploads/slides/u1/p1/slide_1.png"},
		{"hash and query", "u1/1700_Q#3?.pdf/slide_1.png", "/uploads/slides/u1/1700_Q%233%3F.pdf/slide_1.png"},
		{"percent", "u1/50%_off.pptx/slide_2.png", "/uploads/slides/u1/50%25_off.pptx/slide_2.png"},
		{"space", "u 1/p1/slide_1.png", "/uploads/slides/u%201/p1/slide_1.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.ExternalPath(tt.locator)
			assert.Equal(t, tt.want, got)

			back, err := m.LocatorFromPath(got)
			require.NoError(t, err)
			assert.Equal(t, tt.locator, back)
		})
	}
}

func TestManager_LocatorFromPath_Rejects(t *testing.T) {
	m := newTestManager(t)

	_, err := m.LocatorFromPath("/elsewhere/u1/p1/slide_1.png")
	assert.Error(t, err)

	_, err = m.LocatorFromPath("/uploads/slides/u1/%zz/slide_1.png")
	assert.Error(t, err)
}

func TestManager_Resolve(t *testing.T) {
	m := newTestManager(t)

	p, err := m.Resolve("u1/p1/slide_1.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.Root(), "u1", "p1", "slide_1.png"), p)

	// Traversal is clamped to the root.
	p, err = m.Resolve("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.Root(), "etc", "passwd"), p)

	_, err = m.Resolve("")
	assert.Error(t, err)
	_, err = m.Resolve("/")
	assert.Error(t, err)
}

func TestManager_RejectsUnsafeKeys(t *testing.T) {
	m := newTestManager(t)

	for _, key := range []string{"", " ", ".", "..", "a/b", `a\b`} {
		t.Run(key, func(t *testing.T) {
			_, err := m.Prepare(key, "p1")
			assert.Equal(t, domain.ErrorTypeValidation, domain.TypeOf(err))
			_, err = m.Prepare("u1", key)
			assert.Equal(t, domain.ErrorTypeValidation, domain.TypeOf(err))
		})
	}
}

func TestManager_Remove(t *testing.T) {
	m := newTestManager(t)
	dir, err := m.Prepare("u1", "p1")
	require.NoError(t, err)

	require.NoError(t, m.Remove("u1", "p1"))
	_, err = os.Stat(dir.Path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, m.Remove("u1", "never-existed"))
}

func TestManager_ListNaturalOrder(t *testing.T) {
	m := newTestManager(t)
	dir, err := m.Prepare("u1", "p1")
	require.NoError(t, err)
	for _, n := range []int{10, 2, 1, 11, 3} {
		require.NoError(t, os.WriteFile(filepath.Join(dir.Path, fmt.Sprintf("slide_%d.png", n)), nil, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir.Path, "notes.txt"), nil, 0o644))

	names, err := m.List("u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"slide_1.png", "slide_2.png", "slide_3.png", "slide_10.png", "slide_11.png"}, names)
}
