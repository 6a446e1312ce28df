package scraper

import (
	"log/slog"
	"sync/atomic"

	"github.com/ecoaudit/scanner/config"
	"github.com/ecoaudit/scanner/interceptor"
	"github.com/ecoaudit/scanner/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

// Scraper manages the global browser lifecycle and the page pool, and drives
// one page load per scan. It is safe for concurrent use.
type Scraper struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	browserCfg  config.BrowserConfig
	scanCfg     config.ScanConfig
	engine      *interceptor.Engine
	health      *pageHealth[*rod.Page]
	activePages atomic.Int32
}

// New launches a headless browser and initialises the reusable page pool.
func New(browserCfg config.BrowserConfig, scanCfg config.ScanConfig, engine *interceptor.Engine) (*Scraper, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	// Keep the load representative of a real visit: no automation banner,
	// no background throttling that would delay late resources.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScanError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScanError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	pool := rod.NewPagePool(browserCfg.MaxPages)
	slog.Info("page pool created", "maxPages", browserCfg.MaxPages)

	return &Scraper{
		browser:    browser,
		pagePool:   pool,
		browserCfg: browserCfg,
		scanCfg:    scanCfg,
		engine:     engine,
		health:     newPageHealth[*rod.Page](),
	}, nil
}

// Stats returns a snapshot of the pool's current state.
func (s *Scraper) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    s.browserCfg.MaxPages,
		ActivePages: int(s.activePages.Load()),
	}
}

// release hands page back to the pool, or closes it when it has served
// too many scans or failed too often. A nil slot makes the pool create a
// fresh tab on the next Get.
func (s *Scraper) release(page *rod.Page, ok bool) {
	if s.health.release(page, ok) {
		slog.Debug("retiring pooled page", "ok", ok)
		if err := page.Close(); err != nil {
			slog.Warn("failed to close retired page", "error", err)
		}
		s.pagePool.Put(nil)
		return
	}
	s.pagePool.Put(page)
}

// Close drains the page pool and kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: draining page pool")
	s.pagePool.Cleanup(func(p *rod.Page) {
		if p != nil {
			_ = p.Close()
		}
	})
	slog.Info("scraper shutting down: closing browser")
	if err := s.browser.Close(); err != nil {
		slog.Warn("failed to close browser", "error", err)
	}
	slog.Info("scraper shutdown complete")
}
