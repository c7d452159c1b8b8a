package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Mode selects how the Browser Session Manager obtains its browser
// process: Launch spawns and owns a subprocess; Attach connects to an
// endpoint the manager does not own and will not terminate.
type Mode int

const (
	ModeLaunch Mode = iota
	ModeAttach
)

// Config configures the singleton Browser Session Manager.
type Config struct {
	Mode           Mode
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	AttachEndpoint string
	// AttachSocketPath attaches over a Unix domain socket instead of a
	// CDP TCP/WebSocket endpoint, for embedding inside a host (e.g. an
	// Electron app) that exposes its browser's CDP port as a local
	// socket rather than a network port. Takes precedence over
	// AttachEndpoint when both are set.
	AttachSocketPath string
	UserDataDir      string
}

func (c Config) withDefaults() Config {
	if c.ViewportWidth == 0 {
		c.ViewportWidth = 1920
	}
	if c.ViewportHeight == 0 {
		c.ViewportHeight = 1080
	}
	if c.UserDataDir == "" {
		c.UserDataDir = userDataDirDefault()
	}
	if strings.TrimSpace(c.AttachEndpoint) != "" || strings.TrimSpace(c.AttachSocketPath) != "" {
		c.Mode = ModeAttach
	}
	return c
}

func userDataDirDefault() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".surfari-browser"
	}
	return home + "/.surfari/browser-profile"
}

// Manager is the process-wide Browser Session Manager (C9): one browser,
// one reused browsing context, many borrowed pages. It is safe to call
// Stop more than once.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	proxy   *socketProxy
	closed  bool
}

// NewManager installs Playwright (if needed) and either launches a fresh
// browser subprocess or attaches to an existing one per cfg.Mode.
func NewManager(cfg Config) (*Manager, error) {
	cfg = cfg.withDefaults()

	if cfg.Mode == ModeLaunch {
		if err := playwright.Install(&playwright.RunOptions{Verbose: false}); err != nil {
			return nil, fmt.Errorf("browser: install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("browser: start playwright driver: %w", err)
	}

	m := &Manager{cfg: cfg, pw: pw}
	if err := m.open(); err != nil {
		_ = pw.Stop()
		return nil, err
	}
	return m, nil
}

func (m *Manager) open() error {
	switch m.cfg.Mode {
	case ModeAttach:
		endpoint := normalizeRemoteURL(m.cfg.AttachEndpoint)
		if strings.TrimSpace(m.cfg.AttachSocketPath) != "" {
			proxy, err := newSocketProxy(m.cfg.AttachSocketPath)
			if err != nil {
				return err
			}
			m.proxy = proxy
			endpoint = "ws://" + proxy.Addr()
		}
		browser, err := m.pw.Chromium.Connect(endpoint)
		if err != nil {
			return fmt.Errorf("browser: attach to %s: %w", endpoint, err)
		}
		m.browser = browser
		if existing := browser.Contexts(); len(existing) > 0 {
			m.bctx = existing[0]
			return nil
		}
		bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
			Viewport: &playwright.Size{Width: m.cfg.ViewportWidth, Height: m.cfg.ViewportHeight},
			AcceptDownloads:   playwright.Bool(true),
			IgnoreHttpsErrors: playwright.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("browser: create context on attached browser: %w", err)
		}
		m.bctx = bctx
		return nil
	default:
		bctx, err := m.pw.Chromium.LaunchPersistentContext(m.cfg.UserDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: playwright.Bool(m.cfg.Headless),
			Viewport: &playwright.Size{Width: m.cfg.ViewportWidth, Height: m.cfg.ViewportHeight},
			AcceptDownloads:   playwright.Bool(true),
			IgnoreHttpsErrors: playwright.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("browser: launch persistent context: %w", err)
		}
		m.bctx = bctx
		return nil
	}
}

// NewPage opens a fresh page in the shared context and installs the
// common init script. Callers own the returned Page for the duration of
// one task; it is never shared across tasks.
func (m *Manager) NewPage(ctx context.Context) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("browser: manager is stopped")
	}

	page, err := m.bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("browser: new page: %w", err)
	}
	if err := m.bctx.AddInitScript(playwright.Script{Content: playwright.String(initScript)}); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: install init script: %w", err)
	}
	return &Page{page: page}, nil
}

// Stop tears down the context, browser, and Playwright driver. In launch
// mode this terminates the spawned subprocess; in attach mode it only
// disconnects. Safe to call multiple times.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var firstErr error
	if m.bctx != nil {
		if err := m.bctx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("browser: close context: %w", err)
		}
	}
	if m.browser != nil {
		if err := m.browser.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("browser: close browser: %w", err)
		}
	}
	if m.pw != nil {
		if err := m.pw.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("browser: stop playwright driver: %w", err)
		}
	}
	if m.proxy != nil {
		if err := m.proxy.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("browser: close unix-socket proxy: %w", err)
		}
	}
	return firstErr
}

func normalizeRemoteURL(raw string) string {
	value := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(value, "http://"):
		return "ws://" + strings.TrimPrefix(value, "http://")
	case strings.HasPrefix(value, "https://"):
		return "wss://" + strings.TrimPrefix(value, "https://")
	default:
		return value
	}
}

// networkIdleTimeout bounds how long WaitForLoad (Page.WaitForLoad) waits
// for Playwright's network-idle load state (10s total). The quiet period
// is Playwright's own; no in-flight request counter or noise-URL filter
// is kept here.
const networkIdleTimeout = 10 * time.Second
