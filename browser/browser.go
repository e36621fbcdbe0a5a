// Package browser drives a single headless Chrome session and persists
// its browsing state as restorable session files.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/webglue/webglue/config"
	"github.com/webglue/webglue/types"
)

// Config 浏览器自动化配置
type Config struct {
	Headless          bool
	Timeout           time.Duration
	WaitUntil         string // "load" | "domcontentloaded" | "networkidle"
	ViewportWidth     int
	ViewportHeight    int
	UserAgent         string
	ScreenshotQuality int
	TypingDelay       time.Duration
	IdleWindow        time.Duration
	SearchSelectors   []string
	SessionsDir       string
}

// ConfigFrom 把加载好的配置节映射成浏览器配置。
func ConfigFrom(bc config.BrowserConfig, sessionsDir string) Config {
	return Config{
		Headless:          bc.Headless,
		Timeout:           bc.Timeout,
		WaitUntil:         bc.WaitUntil,
		ViewportWidth:     bc.ViewportWidth,
		ViewportHeight:    bc.ViewportHeight,
		UserAgent:         bc.UserAgent,
		ScreenshotQuality: bc.ScreenshotQuality,
		TypingDelay:       bc.TypingDelay,
		IdleWindow:        bc.IdleWindow,
		SearchSelectors:   bc.SearchSelectors,
		SessionsDir:       sessionsDir,
	}
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		Timeout:           30 * time.Second,
		WaitUntil:         "load",
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		ScreenshotQuality: 90,
		TypingDelay:       100 * time.Millisecond,
		IdleWindow:        500 * time.Millisecond,
		SearchSelectors:   DefaultSearchSelectors(),
		SessionsDir:       "sessions",
	}
}

// DefaultSearchSelectors 按命中率排序的搜索框选择器
func DefaultSearchSelectors() []string {
	return []string{
		"input[type='search']",
		"input[name='q']",
		"input[name='query']",
		"input[name='search']",
		"input.search",
		"#search-input",
		".search-input",
	}
}

// PageResult 一次导航或搜索后的页面快照
type PageResult struct {
	URL        string
	Title      string
	HTML       string
	Screenshot []byte
	SessionID  string
	Timestamp  time.Time
}

// ScreenshotBase64 把截图字节编码为信封与视觉提取使用的 base64 串。
// 空截图返回空串。
func ScreenshotBase64(png []byte) string {
	if len(png) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(png)
}

// Automator 驱动单页浏览器会话：一个页面、一次一个动作、同步等待。
// 生命周期：New → Start → (Navigate|Search|Screenshot)* → Close。
type Automator struct {
	cfg    Config
	logger *zap.Logger
	store  *SessionStore

	// 状态快照入口，测试可替换
	snapshot func(context.Context) (*StorageState, error)

	mu        sync.Mutex
	started   bool
	sessionID string

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	tabCtx        context.Context
	tabCancel     context.CancelFunc
}

// New 创建 Automator 并校验配置，不启动浏览器进程。
func New(cfg Config, logger *zap.Logger) (*Automator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.IdleWindow <= 0 {
		cfg.IdleWindow = 500 * time.Millisecond
	}
	if cfg.ScreenshotQuality <= 0 {
		cfg.ScreenshotQuality = 90
	}
	if cfg.ScreenshotQuality > 100 {
		return nil, types.NewErrorf(types.ErrInvalidConfig, "screenshot quality %d out of range 1-100", cfg.ScreenshotQuality)
	}
	switch cfg.WaitUntil {
	case "", "load", "domcontentloaded", "networkidle":
	default:
		return nil, types.NewErrorf(types.ErrInvalidConfig, "unsupported wait_until %q", cfg.WaitUntil)
	}
	if len(cfg.SearchSelectors) == 0 {
		cfg.SearchSelectors = DefaultSearchSelectors()
	}
	if cfg.SessionsDir == "" {
		cfg.SessionsDir = "sessions"
	}

	a := &Automator{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "browser")),
		store:  NewSessionStore(cfg.SessionsDir),
	}
	a.snapshot = a.snapshotState
	return a, nil
}

// SessionID 返回当前会话令牌；未启动时为空串。
func (a *Automator) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// Store exposes the session store, mainly for callers resolving
// screenshot paths.
func (a *Automator) Store() *SessionStore {
	return a.store
}

// Start 启动浏览器进程并打开工作页，分配新的会话令牌。
// 任何一步失败都会释放已获取的资源。
func (a *Automator) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", a.cfg.Headless),
		chromedp.WindowSize(a.cfg.ViewportWidth, a.cfg.ViewportHeight),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if a.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(a.cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			a.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// 启动浏览器进程
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return types.NewErrorf(types.ErrBrowserStartFailed, "start browser: %v", err).WithCause(err)
	}

	// 工作页独立于浏览器根上下文，便于 LoadSession 时整体替换
	tabCtx, tabCancel, err := a.newTab(browserCtx)
	if err != nil {
		browserCancel()
		allocCancel()
		return types.NewErrorf(types.ErrBrowserStartFailed, "open page: %v", err).WithCause(err)
	}

	a.allocCtx, a.allocCancel = allocCtx, allocCancel
	a.browserCtx, a.browserCancel = browserCtx, browserCancel
	a.tabCtx, a.tabCancel = tabCtx, tabCancel
	a.sessionID = uuid.NewString()
	a.started = true

	a.logger.Info("browser started",
		zap.Bool("headless", a.cfg.Headless),
		zap.Int("viewport_w", a.cfg.ViewportWidth),
		zap.Int("viewport_h", a.cfg.ViewportHeight),
		zap.String("session_id", a.sessionID))
	return nil
}

// newTab 打开新工作页并启用网络事件域
func (a *Automator) newTab(parent context.Context) (context.Context, context.CancelFunc, error) {
	tabCtx, tabCancel := chromedp.NewContext(parent)
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		tabCancel()
		return nil, nil, err
	}
	return tabCtx, tabCancel, nil
}

// Navigate 加载 URL，等待加载完成与网络空闲（空闲等待受超时约束，
// 到达上限不视为失败），随后截取页面快照并持久化会话状态。不重试。
func (a *Automator) Navigate(ctx context.Context, url string) (*PageResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil, types.NewError(types.ErrBrowserStartFailed, "browser not started")
	}

	a.logger.Debug("navigating", zap.String("url", url))

	opCtx, cancel := a.opContext()
	defer cancel()

	idle := newIdleTracker(opCtx, a.cfg.IdleWindow)
	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		return nil, types.NewErrorf(types.ErrNavigationFailed, "navigate to %s: %v", url, err).WithCause(err)
	}
	idle.Wait(opCtx)

	result, err := a.capture(opCtx, "", true)
	if err != nil {
		return nil, types.NewErrorf(types.ErrNavigationFailed, "capture %s: %v", url, err).WithCause(err)
	}
	a.logger.Info("navigation complete",
		zap.String("url", result.URL),
		zap.String("title", result.Title))
	return result, nil
}

// Search 在当前页面定位搜索框（按配置的选择器顺序，首个命中生效），
// 输入查询并回车提交，等待网络空闲后截取结果页快照。
func (a *Automator) Search(ctx context.Context, query string) (*PageResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil, types.NewError(types.ErrBrowserStartFailed, "browser not started")
	}

	a.logger.Debug("searching", zap.String("query", query))

	opCtx, cancel := a.opContext()
	defer cancel()

	selector, err := a.findSearchInput(opCtx)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("search input found", zap.String("selector", selector))

	idle := newIdleTracker(opCtx, a.cfg.IdleWindow)
	if err := chromedp.Run(opCtx,
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		a.typeAction(selector, query),
		chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery),
	); err != nil {
		return nil, types.NewErrorf(types.ErrSearchFailed, "search for %q: %v", query, err).WithCause(err)
	}
	idle.Wait(opCtx)

	result, err := a.capture(opCtx, "_search", true)
	if err != nil {
		return nil, types.NewErrorf(types.ErrSearchFailed, "capture results for %q: %v", query, err).WithCause(err)
	}
	a.logger.Info("search complete",
		zap.String("query", query),
		zap.String("url", result.URL))
	return result, nil
}

// Screenshot 导航到 URL 并只截取屏幕快照，不抓取 HTML。
func (a *Automator) Screenshot(ctx context.Context, url string) (*PageResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil, types.NewError(types.ErrBrowserStartFailed, "browser not started")
	}

	opCtx, cancel := a.opContext()
	defer cancel()

	idle := newIdleTracker(opCtx, a.cfg.IdleWindow)
	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		return nil, types.NewErrorf(types.ErrNavigationFailed, "navigate to %s: %v", url, err).WithCause(err)
	}
	idle.Wait(opCtx)

	result, err := a.capture(opCtx, "", false)
	if err != nil {
		return nil, types.NewErrorf(types.ErrNavigationFailed, "capture %s: %v", url, err).WithCause(err)
	}
	return result, nil
}

// opContext 为单个动作派生带超时的上下文。chromedp 的动作必须在
// 浏览器上下文链上执行，因此从工作页上下文派生而非调用方 ctx。
func (a *Automator) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(a.tabCtx, a.cfg.Timeout)
}

// findSearchInput 依序尝试配置的选择器，返回首个有匹配节点的选择器。
// 全部落空时在 debug 级别记录页面上的输入元素帮助排查。
func (a *Automator) findSearchInput(ctx context.Context) (string, error) {
	for _, sel := range a.cfg.SearchSelectors {
		var nodes []*cdp.Node
		err := chromedp.Run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
		if err == nil && len(nodes) > 0 {
			return sel, nil
		}
	}

	if a.logger.Core().Enabled(zap.DebugLevel) {
		var html string
		if err := chromedp.Run(ctx, outerHTML(&html)); err == nil {
			inputs := InputElements(html)
			a.logger.Debug("no search selector matched",
				zap.Int("inputs_on_page", len(inputs)),
				zap.Any("inputs", inputs))
		}
	}
	return "", types.NewError(types.ErrSearchInputNotFound, "Could not find search input element")
}

// typeAction 逐键输入文本，键间停顿 TypingDelay
func (a *Automator) typeAction(selector, text string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, ch := range text {
			if err := chromedp.SendKeys(selector, string(ch), chromedp.ByQuery).Do(ctx); err != nil {
				return err
			}
			if a.cfg.TypingDelay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(a.cfg.TypingDelay):
				}
			}
		}
		return nil
	})
}

// outerHTML 读取整个文档的 outer HTML
func outerHTML(out *string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		*out, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	})
}

// capture 截取当前页面快照：URL、标题、可选 HTML、截图，
// 并把截图与会话状态写入存储。
func (a *Automator) capture(ctx context.Context, screenshotSuffix string, includeHTML bool) (*PageResult, error) {
	var currentURL, title, html string
	var shot []byte

	tasks := chromedp.Tasks{
		chromedp.Location(&currentURL),
		chromedp.Title(&title),
	}
	if includeHTML {
		tasks = append(tasks, outerHTML(&html))
	}
	tasks = append(tasks, chromedp.FullScreenshot(&shot, a.cfg.ScreenshotQuality))

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, err
	}

	if err := a.store.SaveScreenshot(a.sessionID, screenshotSuffix, shot); err != nil {
		return nil, err
	}

	state, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.store.Save(a.sessionID, state); err != nil {
		return nil, err
	}

	return &PageResult{
		URL:        currentURL,
		Title:      title,
		HTML:       html,
		Screenshot: shot,
		SessionID:  a.sessionID,
		Timestamp:  time.Now(),
	}, nil
}

// Close 无条件释放页、浏览器与分配器资源。可重复调用，
// 部分初始化后调用也安全。
func (a *Automator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tabCancel != nil {
		a.tabCancel()
		a.tabCancel = nil
	}
	if a.browserCancel != nil {
		a.logger.Info("closing browser")
		a.browserCancel()
		a.browserCancel = nil
	}
	if a.allocCancel != nil {
		a.allocCancel()
		a.allocCancel = nil
	}
	a.started = false
	return nil
}
