package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webglue/webglue/types"
)

func TestSessionStore_SaveLoadRoundTrip(t *testing.T) {
	store := NewSessionStore(t.TempDir())

	expires := cdp.TimeSinceEpoch(time.Unix(1700000000, 0))
	state := &StorageState{
		URL: "https://example.com/results?q=go",
		Cookies: []*network.CookieParam{
			{
				Name:     "sid",
				Value:    "abc123",
				Domain:   "example.com",
				Path:     "/",
				Secure:   true,
				HTTPOnly: true,
				Expires:  &expires,
			},
			{Name: "theme", Value: "dark", Domain: "example.com", Path: "/"},
		},
		LocalStorage:   map[string]string{"cart": `{"items":2}`},
		SessionStorage: map[string]string{"csrf": "tok"},
		SavedAt:        time.Now(),
	}

	require.NoError(t, store.Save("tok-1", state))

	loaded, err := store.Load("tok-1")
	require.NoError(t, err)
	assert.Equal(t, state.URL, loaded.URL)
	require.Len(t, loaded.Cookies, 2)
	assert.Equal(t, "sid", loaded.Cookies[0].Name)
	assert.Equal(t, "abc123", loaded.Cookies[0].Value)
	assert.True(t, loaded.Cookies[0].HTTPOnly)
	require.NotNil(t, loaded.Cookies[0].Expires)
	assert.Equal(t, int64(1700000000), time.Time(*loaded.Cookies[0].Expires).Unix())
	assert.Nil(t, loaded.Cookies[1].Expires)
	assert.Equal(t, state.LocalStorage, loaded.LocalStorage)
	assert.Equal(t, state.SessionStorage, loaded.SessionStorage)
	assert.WithinDuration(t, state.SavedAt, loaded.SavedAt, time.Second)
}

func TestSessionStore_SaveCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "sessions")
	store := NewSessionStore(dir)

	require.NoError(t, store.Save("tok", &StorageState{URL: "https://example.com"}))

	_, err := os.Stat(filepath.Join(dir, "tok.json"))
	assert.NoError(t, err)
}

func TestSessionStore_SaveOverwrites(t *testing.T) {
	store := NewSessionStore(t.TempDir())

	require.NoError(t, store.Save("tok", &StorageState{URL: "https://old.example.com"}))
	require.NoError(t, store.Save("tok", &StorageState{URL: "https://new.example.com"}))

	loaded, err := store.Load("tok")
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.com", loaded.URL)
}

func TestSessionStore_LoadNotFound(t *testing.T) {
	store := NewSessionStore(t.TempDir())

	_, err := store.Load("missing")
	require.Error(t, err)
	assert.Equal(t, types.ErrSessionNotFound, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "missing")
}

func TestSessionStore_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewSessionStore(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644))

	_, err := store.Load("bad")
	require.Error(t, err)
	assert.Equal(t, types.ErrSessionCorrupt, types.GetErrorCode(err))
}

func TestSessionStore_Paths(t *testing.T) {
	store := NewSessionStore("sessions")

	assert.Equal(t, filepath.Join("sessions", "tok.json"), store.StatePath("tok"))
	assert.Equal(t, filepath.Join("sessions", "tok.png"), store.ScreenshotPath("tok", ""))
	assert.Equal(t, filepath.Join("sessions", "tok_search.png"), store.ScreenshotPath("tok", "_search"))
}

func TestSessionStore_SaveScreenshot(t *testing.T) {
	dir := t.TempDir()
	store := NewSessionStore(dir)

	png := []byte{0x89, 'P', 'N', 'G'}
	require.NoError(t, store.SaveScreenshot("tok", "_search", png))

	got, err := os.ReadFile(filepath.Join(dir, "tok_search.png"))
	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestAutomator_SaveSessionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a, err := New(Config{SessionsDir: dir}, nil)
	require.NoError(t, err)

	state := &StorageState{
		URL: "https://example.com/page",
		Cookies: []*network.CookieParam{
			{Name: "sid", Value: "abc", Domain: "example.com", Path: "/"},
		},
		LocalStorage:   map[string]string{"cart": `{"items":1}`},
		SessionStorage: map[string]string{"csrf": "tok"},
		SavedAt:        time.Now(),
	}
	a.started = true
	a.tabCtx = context.Background()
	a.sessionID = "tok-save"
	a.snapshot = func(context.Context) (*StorageState, error) { return state, nil }

	token, err := a.SaveSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-save", token)

	// 新的存储实例从同一目录还原完整状态
	loaded, err := NewSessionStore(dir).Load(token)
	require.NoError(t, err)
	assert.Equal(t, state.URL, loaded.URL)
	require.Len(t, loaded.Cookies, 1)
	assert.Equal(t, "sid", loaded.Cookies[0].Name)
	assert.Equal(t, state.LocalStorage, loaded.LocalStorage)
	assert.Equal(t, state.SessionStorage, loaded.SessionStorage)
}

func TestAutomator_SaveSessionNotStarted(t *testing.T) {
	a, err := New(Config{SessionsDir: t.TempDir()}, nil)
	require.NoError(t, err)

	_, err = a.SaveSession(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrBrowserStartFailed, types.GetErrorCode(err))
}

func TestAutomator_SaveSessionSnapshotError(t *testing.T) {
	a, err := New(Config{SessionsDir: t.TempDir()}, nil)
	require.NoError(t, err)
	a.started = true
	a.tabCtx = context.Background()
	a.sessionID = "tok"
	a.snapshot = func(context.Context) (*StorageState, error) { return nil, assert.AnError }

	_, err = a.SaveSession(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrSessionSaveFailed, types.GetErrorCode(err))
}

func TestCookieParams(t *testing.T) {
	cookies := []*network.Cookie{
		{
			Name:     "sid",
			Value:    "v1",
			Domain:   ".example.com",
			Path:     "/",
			Expires:  1700000000,
			Secure:   true,
			HTTPOnly: true,
			SameSite: network.CookieSameSiteLax,
		},
		{
			// 会话 cookie：Expires 为 -1
			Name:    "tmp",
			Value:   "v2",
			Domain:  "example.com",
			Path:    "/",
			Expires: -1,
		},
	}

	params := cookieParams(cookies)
	require.Len(t, params, 2)

	assert.Equal(t, "sid", params[0].Name)
	assert.Equal(t, ".example.com", params[0].Domain)
	assert.True(t, params[0].Secure)
	assert.Equal(t, network.CookieSameSiteLax, params[0].SameSite)
	require.NotNil(t, params[0].Expires)
	assert.Equal(t, int64(1700000000), time.Time(*params[0].Expires).Unix())

	assert.Equal(t, "tmp", params[1].Name)
	assert.Nil(t, params[1].Expires)
}

func TestCookieParams_Empty(t *testing.T) {
	assert.Empty(t, cookieParams(nil))
}

func TestStorageInjectionJS(t *testing.T) {
	js, err := storageInjectionJS(
		map[string]string{"k1": `va"lue`},
		map[string]string{"k2": "v2"},
	)
	require.NoError(t, err)

	// 键值必须以 JSON 形式进入脚本，含引号的值已被转义
	assert.Contains(t, js, `{"k1":"va\"lue"}`)
	assert.Contains(t, js, `{"k2":"v2"}`)
	assert.Contains(t, js, "localStorage.setItem")
	assert.Contains(t, js, "sessionStorage.setItem")
}

func TestStorageInjectionJS_NilMaps(t *testing.T) {
	js, err := storageInjectionJS(nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, js, "null")
	assert.Contains(t, js, "{}")
}

func TestReadStorageJS(t *testing.T) {
	js := readStorageJS("localStorage")
	assert.Contains(t, js, "localStorage.length")
	assert.Contains(t, js, "localStorage.key(i)")
	assert.Contains(t, js, "localStorage.getItem(k)")
	assert.NotContains(t, js, "sessionStorage")
}
