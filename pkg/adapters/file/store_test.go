package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft/pkg/adapters/file"
	contract "github.com/aretw0/weft/pkg/ports/tests"
)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	contract.RecordStoreContractTest(t, store)
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	rec := contract.NewRecord("wf", "r1", time.Now())
	require.NoError(t, store.Save(ctx, rec))
	require.NoError(t, store.Save(ctx, rec), "overwrite")

	_, err := os.Stat(filepath.Join(dir, "wf", "r1.json"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "wf"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	wfs, err := store.Workflows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"wf"}, wfs)
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	rec := contract.NewRecord("../escape", "r1", time.Now())
	assert.Error(t, store.Save(ctx, rec))

	_, err := store.Load(ctx, "wf", "a/b")
	assert.Error(t, err)
}
