package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/webglue/webglue/types"
)

// StorageState 会话的可持久化状态：最后访问的 URL、cookies 与
// 两种 Web Storage 的键值对。JSON 布局即磁盘格式，字段不可随意改名。
type StorageState struct {
	URL            string                 `json:"url"`
	Cookies        []*network.CookieParam `json:"cookies"`
	LocalStorage   map[string]string      `json:"local_storage"`
	SessionStorage map[string]string      `json:"session_storage"`
	SavedAt        time.Time              `json:"saved_at"`
}

// SessionStore 把会话状态与截图存进单个目录：
// <token>.json、<token>.png、<token>_search.png。
// 目录在首次写入时创建。
type SessionStore struct {
	dir string
}

// NewSessionStore 创建指向 dir 的存储，不做任何 IO。
func NewSessionStore(dir string) *SessionStore {
	return &SessionStore{dir: dir}
}

// Dir returns the backing directory.
func (s *SessionStore) Dir() string { return s.dir }

// StatePath 返回令牌对应的状态文件路径
func (s *SessionStore) StatePath(token string) string {
	return filepath.Join(s.dir, token+".json")
}

// ScreenshotPath 返回令牌对应的截图路径；suffix 区分动作（如 "_search"）。
func (s *SessionStore) ScreenshotPath(token, suffix string) string {
	return filepath.Join(s.dir, token+suffix+".png")
}

func (s *SessionStore) ensureDir() error {
	return os.MkdirAll(s.dir, 0o755)
}

// Save 序列化并写入会话状态，覆盖同令牌的旧状态。
func (s *SessionStore) Save(token string, state *StorageState) error {
	if err := s.ensureDir(); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	return os.WriteFile(s.StatePath(token), data, 0o644)
}

// SaveScreenshot 写入 PNG 截图
func (s *SessionStore) SaveScreenshot(token, suffix string, png []byte) error {
	if err := s.ensureDir(); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}
	return os.WriteFile(s.ScreenshotPath(token, suffix), png, 0o644)
}

// Load 读取令牌对应的会话状态。文件不存在返回 ErrSessionNotFound，
// 内容无法解析返回 ErrSessionCorrupt。
func (s *SessionStore) Load(token string) (*StorageState, error) {
	data, err := os.ReadFile(s.StatePath(token))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewErrorf(types.ErrSessionNotFound, "session %s not found", token)
		}
		return nil, types.NewErrorf(types.ErrSessionNotFound, "read session %s: %v", token, err).WithCause(err)
	}
	var state StorageState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, types.NewErrorf(types.ErrSessionCorrupt, "session %s is corrupt: %v", token, err).WithCause(err)
	}
	return &state, nil
}

// LoadSession 用存储的状态整体替换当前浏览上下文：丢弃工作页，
// 开新页、恢复 cookies、回到保存的 URL 并注入 Web Storage。
// 之后的动作都以该令牌继续持久化。
func (a *Automator) LoadSession(ctx context.Context, token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return types.NewError(types.ErrBrowserStartFailed, "browser not started")
	}

	state, err := a.store.Load(token)
	if err != nil {
		return err
	}

	a.tabCancel()
	tabCtx, tabCancel, err := a.newTab(a.browserCtx)
	if err != nil {
		return types.NewErrorf(types.ErrBrowserStartFailed, "open page: %v", err).WithCause(err)
	}
	a.tabCtx, a.tabCancel = tabCtx, tabCancel
	a.sessionID = token

	opCtx, cancel := a.opContext()
	defer cancel()

	if len(state.Cookies) > 0 {
		if err := chromedp.Run(opCtx, storage.SetCookies(state.Cookies)); err != nil {
			return types.NewErrorf(types.ErrSessionCorrupt, "restore cookies for %s: %v", token, err).WithCause(err)
		}
	}

	if state.URL != "" {
		idle := newIdleTracker(opCtx, a.cfg.IdleWindow)
		if err := chromedp.Run(opCtx, chromedp.Navigate(state.URL)); err != nil {
			return types.NewErrorf(types.ErrNavigationFailed, "restore session page %s: %v", state.URL, err).WithCause(err)
		}
		idle.Wait(opCtx)
	}

	if len(state.LocalStorage) > 0 || len(state.SessionStorage) > 0 {
		js, err := storageInjectionJS(state.LocalStorage, state.SessionStorage)
		if err != nil {
			return types.NewErrorf(types.ErrSessionCorrupt, "encode storage for %s: %v", token, err).WithCause(err)
		}
		if err := chromedp.Run(opCtx, chromedp.Evaluate(js, nil)); err != nil {
			return types.NewErrorf(types.ErrSessionCorrupt, "inject storage for %s: %v", token, err).WithCause(err)
		}
	}

	a.logger.Info("session restored",
		zap.String("session_id", token),
		zap.String("url", state.URL),
		zap.Int("cookies", len(state.Cookies)))
	return nil
}

// SaveSession 把当前页面状态立即写入 <token>.json 并返回会话令牌。
// Navigate / Search 等动作之后快照也会自动落盘，此方法供调用方
// 在不执行动作的情况下固化会话。
func (a *Automator) SaveSession(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return "", types.NewError(types.ErrBrowserStartFailed, "browser not started")
	}

	opCtx, cancel := a.opContext()
	defer cancel()

	state, err := a.snapshot(opCtx)
	if err != nil {
		return "", types.NewErrorf(types.ErrSessionSaveFailed, "snapshot session %s: %v", a.sessionID, err).WithCause(err)
	}
	if err := a.store.Save(a.sessionID, state); err != nil {
		return "", types.NewErrorf(types.ErrSessionSaveFailed, "persist session %s: %v", a.sessionID, err).WithCause(err)
	}

	a.logger.Info("session saved",
		zap.String("session_id", a.sessionID),
		zap.String("url", state.URL))
	return a.sessionID, nil
}

// snapshotState 抓取当前页的 URL、cookies 与 Web Storage。
// 调用方负责把错误映射到操作级错误码。
func (a *Automator) snapshotState(ctx context.Context) (*StorageState, error) {
	var currentURL string
	var cookies []*network.Cookie
	local := map[string]string{}
	session := map[string]string{}

	err := chromedp.Run(ctx,
		chromedp.Location(&currentURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
		chromedp.Evaluate(readStorageJS("localStorage"), &local),
		chromedp.Evaluate(readStorageJS("sessionStorage"), &session),
	)
	if err != nil {
		return nil, err
	}

	return &StorageState{
		URL:            currentURL,
		Cookies:        cookieParams(cookies),
		LocalStorage:   local,
		SessionStorage: session,
		SavedAt:        time.Now(),
	}, nil
}

// cookieParams 把 CDP 返回的 cookies 转成可重新写入的参数。
// Expires<=0 表示会话 cookie，不携带过期时间。
func cookieParams(cookies []*network.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if c.Expires > 0 {
			t := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &t
		}
		params = append(params, p)
	}
	return params
}

// readStorageJS 生成读取某个 Web Storage 全量键值的表达式。
// 不透明源（如 about:blank）上访问会抛 SecurityError，此时返回空对象。
func readStorageJS(kind string) string {
	return fmt.Sprintf(`(() => {
	try {
		const out = {};
		for (let i = 0; i < %[1]s.length; i++) {
			const k = %[1]s.key(i);
			out[k] = %[1]s.getItem(k);
		}
		return out;
	} catch (e) {
		return {};
	}
})()`, kind)
}

// storageInjectionJS 生成把键值对写回 localStorage/sessionStorage 的
// 表达式；键值通过 JSON 编码进脚本，避免拼接转义问题。
func storageInjectionJS(local, session map[string]string) (string, error) {
	if local == nil {
		local = map[string]string{}
	}
	if session == nil {
		session = map[string]string{}
	}
	localJSON, err := json.Marshal(local)
	if err != nil {
		return "", err
	}
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(() => {
	const local = %s;
	const session = %s;
	for (const [k, v] of Object.entries(local)) {
		localStorage.setItem(k, v);
	}
	for (const [k, v] of Object.entries(session)) {
		sessionStorage.setItem(k, v);
	}
})()`, localJSON, sessionJSON), nil
}
