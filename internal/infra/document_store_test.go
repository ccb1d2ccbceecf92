package infra

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

func TestJSONDocumentStore_OpenCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store := NewJSONDocumentStore(dir, nil)

	doc, existed, migrated, err := store.Open(context.Background(), "2024-03-09")
	require.NoError(t, err)

	assert.False(t, existed)
	assert.False(t, migrated)
	assert.Empty(t, doc.Activities)
	assert.NotNil(t, doc.Goals)
	assert.DirExists(t, dir)
}

func TestJSONDocumentStore_WriteAndRead(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONDocumentStore(dir, nil)
	ctx := context.Background()

	doc := domain.NewDayDocument()
	doc.Activities = append(doc.Activities, domain.Activity{
		Title:     "main.go",
		Owner:     domain.Owner{Name: "Editor", Path: "/usr/bin/editor"},
		Timestamp: 1710000000000,
		Duration:  3000,
	})
	doc.Goals = []string{"ship it"}

	require.NoError(t, store.Write(ctx, "2024-03-09", doc))
	assert.FileExists(t, filepath.Join(dir, "activity-2024-03-09.json"))

	got, exists, err := store.Read(ctx, "2024-03-09")
	require.NoError(t, err)
	require.True(t, exists)
	require.Len(t, got.Activities, 1)
	assert.Equal(t, int64(3000), got.Activities[0].Duration)
	assert.Equal(t, []string{"ship it"}, got.Goals)
}

func TestJSONDocumentStore_ReadMissing(t *testing.T) {
	store := NewJSONDocumentStore(t.TempDir(), nil)

	doc, exists, err := store.Read(context.Background(), "1999-01-01")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Nil(t, doc)
}

func TestJSONDocumentStore_OpenMigratesLegacyFile(t *testing.T) {
	dir := t.TempDir()
	legacy := `{"activities":[{"title":"a","owner":{"name":"A"},"timestamp":1710000000000,"duration":"oops"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "activity-2024-03-09.json"), []byte(legacy), 0644))

	store := NewJSONDocumentStore(dir, nil)
	doc, existed, migrated, err := store.Open(context.Background(), "2024-03-09")
	require.NoError(t, err)

	assert.True(t, existed)
	assert.True(t, migrated)
	assert.Equal(t, domain.CurrentSchemaVersion, doc.SchemaVersion)
	assert.Equal(t, []string{}, doc.Goals)
	require.Len(t, doc.Activities, 1)
	assert.Equal(t, int64(0), doc.Activities[0].Duration)
	assert.NotEmpty(t, doc.Activities[0].TimestampReadable)
}

func TestJSONDocumentStore_OpenMovesCorruptFileAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "activity-2024-03-09.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store := NewJSONDocumentStore(dir, nil)
	doc, existed, _, err := store.Open(context.Background(), "2024-03-09")
	require.NoError(t, err)

	assert.False(t, existed)
	assert.Empty(t, doc.Activities)
	assert.NoFileExists(t, path)

	matches, _ := filepath.Glob(path + ".corrupt-*")
	assert.Len(t, matches, 1)
}
