package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/api"
)

type stubModule struct {
	name string
}

func (m *stubModule) Metadata() api.Metadata { return api.Metadata{Name: m.name} }

func factoryFor(name string) api.Factory {
	return func() (api.Module, error) {
		return &stubModule{name: name}, nil
	}
}

func TestStaticDiscoverAndLoad(t *testing.T) {
	s := NewStatic()
	ctx := context.Background()

	s.Register("db", factoryFor("db"))
	s.Register("api", factoryFor("api"))

	names, err := s.Discover(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "db"}, names)

	factory, err := s.Load(ctx, "db")
	require.NoError(t, err)
	mod, err := factory()
	require.NoError(t, err)
	assert.Equal(t, "db", mod.Metadata().Name)

	_, err = s.Load(ctx, "ghost")
	assert.True(t, api.IsNotFound(err))
}

func writeManifest(t *testing.T, dir, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0644))
}

func TestFilesystemDiscover(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	writeManifest(t, dir, "db.yaml", "name: db\n")
	writeManifest(t, dir, "api.yaml", "name: api\ndescription: http frontend\n")
	writeManifest(t, dir, "legacy.yaml", "name: legacy\nenabled: false\n")
	writeManifest(t, dir, "orphan.yaml", "name: orphan\n")
	writeManifest(t, dir, "notes.txt", "not a manifest")

	f := NewFilesystem([]string{dir})
	f.Register("db", factoryFor("db"))
	f.Register("api", factoryFor("api"))
	f.Register("legacy", factoryFor("legacy"))
	// orphan has a manifest but no factory

	names, err := f.Discover(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "db"}, names)
}

func TestFilesystemLoad(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	writeManifest(t, dir, "db.yaml", "name: db\n")
	writeManifest(t, dir, "legacy.yaml", "name: legacy\nenabled: false\n")

	f := NewFilesystem([]string{dir})
	f.Register("db", factoryFor("db"))
	f.Register("legacy", factoryFor("legacy"))
	f.Register("unmanifested", factoryFor("unmanifested"))

	factory, err := f.Load(ctx, "db")
	require.NoError(t, err)
	mod, err := factory()
	require.NoError(t, err)
	assert.Equal(t, "db", mod.Metadata().Name)

	// Disabled manifests and factory-only modules are not loadable.
	_, err = f.Load(ctx, "legacy")
	assert.True(t, api.IsNotFound(err))
	_, err = f.Load(ctx, "unmanifested")
	assert.True(t, api.IsNotFound(err))
}

func TestFilesystemNameDefaultsToFileName(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	writeManifest(t, dir, "cache.yaml", "description: nameless manifest\n")

	f := NewFilesystem([]string{dir})
	f.Register("cache", factoryFor("cache"))

	names, err := f.Discover(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cache"}, names)
}

func TestFilesystemEarlierPathWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	ctx := context.Background()

	writeManifest(t, first, "db.yaml", "name: db\n")
	writeManifest(t, second, "db.yaml", "name: db\nenabled: false\n")

	f := NewFilesystem([]string{first, second})
	f.Register("db", factoryFor("db"))

	names, err := f.Discover(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"db"}, names)
}

func TestFilesystemMissingPathIsIgnored(t *testing.T) {
	f := NewFilesystem([]string{filepath.Join(t.TempDir(), "does-not-exist")})
	names, err := f.Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestModuleNameFromPath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/modules/db.yaml", "db"},
		{"/modules/api.yml", "api"},
		{"cache.yaml", "cache"},
	}
	for _, tt := range tests {
		if got := moduleNameFromPath(tt.path); got != tt.expected {
			t.Errorf("moduleNameFromPath(%q) = %q, want %q", tt.path, got, tt.expected)
		}
	}
}
