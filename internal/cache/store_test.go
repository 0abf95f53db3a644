package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type demo struct {
	Login string `json:"login"`
}

func TestStoreAndGetRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Store(ctx, "users", "jerry", demo{Login: "Jerry"}, 0))

	var got demo
	found, err := svc.Get(ctx, "users", "jerry", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, demo{Login: "Jerry"}, got)

	require.NoError(t, svc.Store(ctx, "misc", "list", []int{1, 2, 3}, 0))
	list, found, err := GetAs[[]int](ctx, svc, "misc", "list")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []int{1, 2, 3}, list)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	var got demo
	found, err := svc.Get(context.Background(), "users", "nobody", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, demo{}, got)
}

func TestStoreWritesLayout(t *testing.T) {
	svc, clock := newTestService(t)
	require.NoError(t, svc.Store(context.Background(), "users", "jerry", demo{Login: "Jerry"}, 5))

	dir := filepath.Join(svc.Root(), "app", "users")
	value, err := os.ReadFile(filepath.Join(dir, "jerry-cache.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"login":"Jerry"}`, string(value))

	raw, err := os.ReadFile(filepath.Join(dir, "jerry-cache-metadata.json"))
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Len(t, meta, 2)
	assert.EqualValues(t, 5, meta["ttl_secs"])
	assert.EqualValues(t, clock.Now().Unix(), meta["created_unixtime"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files must not be left behind")
}

func TestNewDoesNotTouchFilesystem(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not-yet")
	svc, err := New(root, "app", Options{})
	require.NoError(t, err)

	_, err = os.Stat(root)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	require.NoError(t, svc.Store(context.Background(), "ns", "k", "v", 0))
	assert.DirExists(t, filepath.Join(root, "app", "ns"))
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	testCases := []struct {
		name     string
		root     string
		instance string
	}{
		{"empty root", "", "app"},
		{"nul in root", "/tmp/ca\x00che", "app"},
		{"empty instance", "/tmp/cache", ""},
		{"traversal instance", "/tmp/cache", ".."},
		{"nested instance", "/tmp/cache", "a/b"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.root, tc.instance, Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInitialization)
		})
	}
}

func TestExpiration(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Store(ctx, "users", "jerry", demo{Login: "Jerry"}, 1))

	var got demo
	found, err := svc.Get(ctx, "users", "jerry", &got)
	require.NoError(t, err)
	require.True(t, found)

	clock.Advance(time.Second)
	found, err = svc.Get(ctx, "users", "jerry", &got)
	require.NoError(t, err)
	assert.False(t, found)

	paths, err := svc.Paths("users", "jerry")
	require.NoError(t, err)
	assert.FileExists(t, paths.Value, "get must not delete expired entries")
	assert.FileExists(t, paths.Metadata)
}

func TestZeroTTLNeverExpires(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Store(ctx, "users", "jerry", demo{Login: "Jerry"}, 0))

	clock.Advance(100 * 365 * 24 * time.Hour)
	got, found, err := GetAs[demo](ctx, svc, "users", "jerry")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Jerry", got.Login)
}

func TestOverwriteResetsClock(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Store(ctx, "users", "jerry", demo{Login: "first"}, 5))
	clock.Advance(3 * time.Second)
	require.NoError(t, svc.Store(ctx, "users", "jerry", demo{Login: "second"}, 5))
	clock.Advance(3 * time.Second)

	got, found, err := GetAs[demo](ctx, svc, "users", "jerry")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "second", got.Login)
}

func TestCorruptMetadata(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"not json", "definitely not json"},
		{"array", "[1,2]"},
		{"null", "null"},
		{"missing ttl", `{"created_unixtime":1}`},
		{"missing created", `{"ttl_secs":1}`},
		{"negative", `{"ttl_secs":-1,"created_unixtime":1}`},
		{"string field", `{"ttl_secs":"1","created_unixtime":1}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			ctx := context.Background()
			require.NoError(t, svc.Store(ctx, "users", "jerry", demo{Login: "Jerry"}, 0))

			paths, err := svc.Paths("users", "jerry")
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(paths.Metadata, []byte(tc.body), 0o644))

			var got demo
			found, err := svc.Get(ctx, "users", "jerry", &got)
			assert.False(t, found)
			assert.ErrorIs(t, err, ErrCorruptMetadata)

			_, err = svc.Stat(ctx, "users", "jerry")
			assert.ErrorIs(t, err, ErrCorruptMetadata)
		})
	}
}

func TestMetadataIgnoresUnknownFields(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Store(ctx, "users", "jerry", demo{Login: "Jerry"}, 0))

	paths, err := svc.Paths("users", "jerry")
	require.NoError(t, err)
	body := `{"ttl_secs":10,"created_unixtime":` + jsonInt(clock.Now().Unix()) + `,"version":2}`
	require.NoError(t, os.WriteFile(paths.Metadata, []byte(body), 0o644))

	_, found, err := GetAs[demo](ctx, svc, "users", "jerry")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestNamespaceIsolation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Store(ctx, "one", "key", "v1", 0))
	require.NoError(t, svc.Store(ctx, "two", "key", "v2", 0))

	v1, _, err := GetAs[string](ctx, svc, "one", "key")
	require.NoError(t, err)
	v2, _, err := GetAs[string](ctx, svc, "two", "key")
	require.NoError(t, err)
	assert.Equal(t, "v1", v1)
	assert.Equal(t, "v2", v2)
}

func TestInstancesShareRootWithoutCollision(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	a, err := New(root, "a", Options{})
	require.NoError(t, err)
	b, err := New(root, "b", Options{})
	require.NoError(t, err)

	require.NoError(t, a.Store(ctx, "ns", "key", "from-a", 0))
	_, found, err := GetAs[string](ctx, b, "ns", "key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidKeyRejected(t *testing.T) {
	parent := t.TempDir()
	svc, err := New(filepath.Join(parent, "root"), "app", Options{})
	require.NoError(t, err)
	ctx := context.Background()

	bad := []struct{ namespace, key string }{
		{"ns", "../escape"},
		{"ns", "a/b"},
		{"ns", `a\b`},
		{"ns", ""},
		{"ns", "."},
		{"ns", ".."},
		{"ns", "a\x00b"},
		{"..", "key"},
		{"", "key"},
		{"a/../..", "key"},
	}
	for _, tc := range bad {
		assert.ErrorIs(t, svc.Store(ctx, tc.namespace, tc.key, "v", 0), ErrInvalidKey, "%q/%q", tc.namespace, tc.key)
		_, err := svc.Get(ctx, tc.namespace, tc.key, new(string))
		assert.ErrorIs(t, err, ErrInvalidKey)
		assert.ErrorIs(t, svc.Delete(ctx, tc.namespace, tc.key), ErrInvalidKey)
	}

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected keys must not write anything")
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, "users", "never"))
	require.NoError(t, svc.Store(ctx, "users", "jerry", demo{Login: "Jerry"}, 0))
	require.NoError(t, svc.Delete(ctx, "users", "jerry"))
	require.NoError(t, svc.Delete(ctx, "users", "jerry"))

	paths, err := svc.Paths("users", "jerry")
	require.NoError(t, err)
	assert.NoFileExists(t, paths.Value)
	assert.NoFileExists(t, paths.Metadata)

	_, found, err := GetAs[demo](ctx, svc, "users", "jerry")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestValueWithoutMetadataIsMiss(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Store(ctx, "users", "jerry", demo{Login: "Jerry"}, 0))

	paths, err := svc.Paths("users", "jerry")
	require.NoError(t, err)
	require.NoError(t, os.Remove(paths.Metadata))

	_, found, err := GetAs[demo](ctx, svc, "users", "jerry")
	require.NoError(t, err)
	assert.False(t, found)

	info, err := svc.Stat(ctx, "users", "jerry")
	require.NoError(t, err)
	assert.Equal(t, StateAbsent, info.State)
	assert.True(t, info.Orphan)
}

func TestMissingValueWithLiveMetadataIsIOError(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Store(ctx, "users", "jerry", demo{Login: "Jerry"}, 0))

	paths, err := svc.Paths("users", "jerry")
	require.NoError(t, err)
	require.NoError(t, os.Remove(paths.Value))

	_, _, err = GetAs[demo](ctx, svc, "users", "jerry")
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDeserializationError(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Store(ctx, "users", "jerry", "just a string", 0))

	_, found, err := GetAs[demo](ctx, svc, "users", "jerry")
	assert.False(t, found)
	assert.ErrorIs(t, err, ErrDeserialization)
}

func TestSerializationErrorWritesNothing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Store(ctx, "users", "jerry", make(chan int), 0)
	assert.ErrorIs(t, err, ErrSerialization)
	assert.NoDirExists(t, filepath.Join(svc.Root(), "app"))
}

func TestStoreSurfacesIOError(t *testing.T) {
	root := t.TempDir()
	svc, err := New(root, "app", Options{Fs: afero.NewReadOnlyFs(afero.NewOsFs())})
	require.NoError(t, err)

	err = svc.Store(context.Background(), "users", "jerry", demo{Login: "Jerry"}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)

	var cacheErr *Error
	require.True(t, errors.As(err, &cacheErr))
	assert.NotEmpty(t, cacheErr.Path)
}

// deniedStatFs 对值文件的 Stat 返回权限错误。
type deniedStatFs struct {
	afero.Fs
}

func (d deniedStatFs) Stat(name string) (fs.FileInfo, error) {
	if strings.HasSuffix(name, valueSuffix) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrPermission}
	}
	return d.Fs.Stat(name)
}

func TestStatSurfacesValueStatError(t *testing.T) {
	svc, err := New(t.TempDir(), "app", Options{Fs: deniedStatFs{Fs: afero.NewOsFs()}})
	require.NoError(t, err)

	info, err := svc.Stat(context.Background(), "users", "jerry")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.Equal(t, EntryInfo{}, info)

	var cacheErr *Error
	require.True(t, errors.As(err, &cacheErr))
	assert.Equal(t, "stat", cacheErr.Op)
	assert.Equal(t, filepath.Join(svc.Root(), "app", "users", "jerry"+valueSuffix), cacheErr.Path)

	exists, err := svc.Exists(context.Background(), "users", "jerry")
	assert.ErrorIs(t, err, ErrIO)
	assert.False(t, exists)
}

func TestStatStates(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	info, err := svc.Stat(ctx, "users", "jerry")
	require.NoError(t, err)
	assert.Equal(t, StateAbsent, info.State)
	assert.Nil(t, info.Metadata)

	require.NoError(t, svc.Store(ctx, "users", "jerry", demo{Login: "Jerry"}, 10))
	info, err = svc.Stat(ctx, "users", "jerry")
	require.NoError(t, err)
	assert.Equal(t, StateLive, info.State)
	require.NotNil(t, info.ExpiresAt)
	assert.Equal(t, clock.Now().Add(10*time.Second).Unix(), info.ExpiresAt.Unix())

	live, err := svc.Exists(ctx, "users", "jerry")
	require.NoError(t, err)
	assert.True(t, live)

	clock.Advance(10 * time.Second)
	info, err = svc.Stat(ctx, "users", "jerry")
	require.NoError(t, err)
	assert.Equal(t, StateExpired, info.State)

	live, err = svc.Exists(ctx, "users", "jerry")
	require.NoError(t, err)
	assert.False(t, live)
}

func TestClockBehindCreationIsLive(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Store(ctx, "users", "jerry", demo{Login: "Jerry"}, 1))

	clock.Advance(-time.Hour)
	_, found, err := GetAs[demo](ctx, svc, "users", "jerry")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestClearRemovesNamespace(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Store(ctx, "users", "a", 1, 0))
	require.NoError(t, svc.Store(ctx, "users", "b", 2, 0))
	require.NoError(t, svc.Store(ctx, "other", "a", 3, 0))

	require.NoError(t, svc.Clear(ctx, "users"))
	require.NoError(t, svc.Clear(ctx, "users"))
	assert.ErrorIs(t, svc.Clear(ctx, ".."), ErrInvalidKey)

	_, found, err := GetAs[int](ctx, svc, "users", "a")
	require.NoError(t, err)
	assert.False(t, found)
	v, found, err := GetAs[int](ctx, svc, "other", "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, v)
}

func TestCanceledContext(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, svc.Store(ctx, "users", "jerry", 1, 0), context.Canceled)
	_, err := svc.Get(ctx, "users", "jerry", new(int))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, filepath.Join(svc.Root(), "app"))
}

func TestMemMapFsBackend(t *testing.T) {
	mem := afero.NewMemMapFs()
	svc, err := New("/cache", "app", Options{Fs: mem})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, svc.Store(ctx, "users", "jerry", demo{Login: "Jerry"}, 0))
	require.NoError(t, svc.Store(ctx, "users", "jerry", demo{Login: "Gerry"}, 0))

	ok, err := afero.Exists(mem, "/cache/app/users/jerry-cache-metadata.json")
	require.NoError(t, err)
	assert.True(t, ok)

	got, found, err := GetAs[demo](ctx, svc, "users", "jerry")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Gerry", got.Login)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// newTestService returns a Service rooted in a temporary directory with a
// controllable clock.
func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	svc, err := New(t.TempDir(), "app", Options{Now: clock.Now})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc, clock
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
