package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	proj, err := Create(ctx, root, "https://jenkins.example.com")
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(root), proj.Config.Project.Name)
	assert.Equal(t, "https://jenkins.example.com", proj.Config.Jenkins.URL)
	require.NotNil(t, proj.DB)
	require.NoError(t, proj.Close())

	sub := filepath.Join(root, "logs", "nested")
	require.NoError(t, os.MkdirAll(sub, 0755))

	found, err := Find(ctx, sub)
	require.NoError(t, err)
	defer found.Close()

	resolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	foundRoot, err := filepath.EvalSymlinks(found.Root)
	require.NoError(t, err)
	assert.Equal(t, resolved, foundRoot)
}

func TestCreate_AlreadyExists(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	proj, err := Create(ctx, root, "")
	require.NoError(t, err)
	require.NoError(t, proj.Close())

	_, err = Create(ctx, root, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestFind_NoProject(t *testing.T) {
	_, err := Find(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no project found")
}
