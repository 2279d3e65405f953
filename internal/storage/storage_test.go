package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"go-time-archive/internal/model"
)

func newTestStorage(t *testing.T, users ...string) (*Storage, string) {
	t.Helper()

	root := t.TempDir()
	store, err := New(root)
	require.NoError(t, err)

	for _, user := range users {
		require.NoError(t, store.EnsureUser(user))
	}

	return store, root
}

func writeFile(t *testing.T, root string, user string, rel string, content string) {
	t.Helper()

	abs := filepath.Join(root, user, userFilesDir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestStorageTreeOperations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, root := newTestStorage(t, "alice")
	writeFile(t, root, "alice", "Projects/2023/report.pdf", "pdf")
	writeFile(t, root, "alice", "b.txt", "b")
	writeFile(t, root, "alice", "a.txt", "a")

	userRoot, err := store.UserRoot(ctx, "alice")
	require.NoError(t, err)
	require.True(t, userRoot.IsRoot())
	require.True(t, userRoot.IsFolder)
	require.False(t, userRoot.Deletable)

	t.Run("children are listed in name order", func(t *testing.T) {
		children, err := store.ListChildren(ctx, userRoot)
		require.NoError(t, err)
		require.Len(t, children, 3)
		require.Equal(t, []string{"Projects", "a.txt", "b.txt"}, []string{children[0].Name, children[1].Name, children[2].Name})
		require.Equal(t, "/a.txt", children[1].Path)
		require.Equal(t, "alice", children[1].OwnerID)
		require.True(t, children[1].Movable())
		require.Equal(t, FolderMimeType, children[0].MimeType)
	})

	t.Run("listing a file fails", func(t *testing.T) {
		file, err := store.Get(ctx, userRoot, "a.txt")
		require.NoError(t, err)
		_, err = store.ListChildren(ctx, file)
		require.ErrorIs(t, err, model.ErrNotAFolder)
	})

	t.Run("exists and get", func(t *testing.T) {
		ok, err := store.Exists(ctx, userRoot, "a.txt")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = store.Exists(ctx, userRoot, "missing.txt")
		require.NoError(t, err)
		require.False(t, ok)

		_, err = store.Get(ctx, userRoot, "missing.txt")
		require.ErrorIs(t, err, model.ErrNodeNotFound)
	})

	t.Run("create folder refuses existing names", func(t *testing.T) {
		created, err := store.CreateFolder(ctx, userRoot, model.ArchiveFolder)
		require.NoError(t, err)
		require.Equal(t, "/.archive", created.Path)
		require.True(t, created.IsFolder)

		_, err = store.CreateFolder(ctx, userRoot, "a.txt")
		require.ErrorIs(t, err, model.ErrPathConflict)
	})

	t.Run("move keeps id and never overwrites", func(t *testing.T) {
		file, err := store.Get(ctx, userRoot, "b.txt")
		require.NoError(t, err)

		_, err = store.Move(ctx, file, "/a.txt")
		require.ErrorIs(t, err, model.ErrPathConflict)

		moved, err := store.Move(ctx, file, "/.archive/b.txt")
		require.NoError(t, err)
		require.Equal(t, file.ID, moved.ID)
		require.Equal(t, "/.archive/b.txt", moved.Path)
		require.True(t, moved.InArchive())

		nodes, err := store.GetByID(ctx, "alice", file.ID)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		require.Equal(t, "/.archive/b.txt", nodes[0].Path)

		_, err = store.Move(ctx, file, "/.archive/again.txt")
		require.ErrorIs(t, err, model.ErrNodeNotFound)
	})

	t.Run("root cannot be moved", func(t *testing.T) {
		_, err := store.Move(ctx, userRoot, "/elsewhere")
		require.ErrorIs(t, err, model.ErrNotPermitted)
	})
}

func TestStorageGetByIDWalksTree(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, root := newTestStorage(t, "alice", "bob")
	writeFile(t, root, "alice", "Projects/2023/report.pdf", "pdf")

	userRoot, err := store.UserRoot(ctx, "alice")
	require.NoError(t, err)
	projects, err := store.Get(ctx, userRoot, "Projects")
	require.NoError(t, err)
	year, err := store.Get(ctx, projects, "2023")
	require.NoError(t, err)
	report, err := store.Get(ctx, year, "report.pdf")
	require.NoError(t, err)

	nodes, err := store.GetByID(ctx, "alice", report.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, "/Projects/2023/report.pdf", nodes[0].Path)

	nodes, err = store.GetByID(ctx, "bob", report.ID)
	require.NoError(t, err)
	require.Empty(t, nodes)

	mounts, err := store.MountsForFile(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, mounts)
}

func TestStorageForEachUser(t *testing.T) {
	t.Parallel()

	store, root := newTestStorage(t, "carol", "alice")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "no-files-dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644))

	var seen []string
	err := store.ForEachUser(context.Background(), func(_ context.Context, userID string) error {
		seen = append(seen, userID)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "carol"}, seen)
}

func TestStorageUnknownUser(t *testing.T) {
	t.Parallel()

	store, _ := newTestStorage(t)

	_, err := store.UserRoot(context.Background(), "ghost")
	require.ErrorIs(t, err, model.ErrUserNotFound)

	_, err = store.UserRoot(context.Background(), "../etc")
	require.ErrorIs(t, err, model.ErrUserNotFound)
}
