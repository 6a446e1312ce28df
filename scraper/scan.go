package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ecoaudit/scanner/interceptor"
	"github.com/ecoaudit/scanner/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// Scan loads req.URL in a pooled page and returns the byte accounting of
// every response observed until the page settles.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Timeout guard          – hard ceiling on the entire page load
//  2. Acquire page           – borrow a tab from the pool (or create one)
//  3. DEFER: cleanup         – undo per-scan setup, about:blank, return or retire
//  4. Stealth / headers      – installed before navigation
//  5. Begin interception     – MUST subscribe before Navigate
//  6. Idle waiter            – MUST be registered before Navigate
//  7. Navigate
//  8. Settle                 – request-idle window, or the hard ceiling
//  9. Actions                – optional; the page settles again afterwards
//  10. Finalize              – detach, drain in-flight body reads, snapshot
//
// A failed navigation still finalizes the scan; the partial result travels
// on the returned *models.ScanError.
func (s *Scraper) Scan(ctx context.Context, req *models.ScanRequest) (result *interceptor.Result, err error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	timeout := time.Duration(req.Timeout) * time.Second
	if timeout <= 0 {
		timeout = s.scanCfg.DefaultTimeout
	}
	if timeout > s.scanCfg.MaxTimeout {
		timeout = s.scanCfg.MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// ── 2. Acquire page from pool ─────────────────────────────────────
	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	page, acquireErr := s.pagePool.Get(func() (*rod.Page, error) {
		return s.browser.Page(proto.TargetCreateTarget{})
	})
	if acquireErr != nil {
		return nil, models.NewScanError(
			models.ErrCodeBrowserCrash,
			"failed to acquire page from pool",
			acquireErr,
		)
	}

	// ── 3. Cleanup: undo setup, blank the tab and hand it back ────────
	// Uses the original page reference so it works after ctx expired.
	var undo []func() error
	defer func() {
		healthy := err == nil
		for _, fn := range undo {
			if undoErr := fn(); undoErr != nil {
				slog.Warn("cleanup: failed to reset page state", "error", undoErr)
				healthy = false
			}
		}
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank",
				"error", navErr,
			)
			healthy = false
		}
		s.release(page, healthy)
	}()

	// ── 4. Stealth injection + extra headers ──────────────────────────
	if req.Stealth {
		remove, evalErr := page.EvalOnNewDocument(stealth.JS)
		if evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		} else {
			undo = append(undo, remove)
		}
	}
	if len(req.Headers) > 0 {
		if hdrErr := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(req.Headers),
		}).Call(page); hdrErr != nil {
			slog.Warn("failed to set extra headers", "error", hdrErr)
		} else {
			undo = append(undo, func() error {
				return proto.NetworkSetExtraHTTPHeaders{Headers: proto.NetworkHeaders{}}.Call(page)
			})
		}
	}

	p := page.Context(ctx)

	// ── 5. Begin interception BEFORE navigation ───────────────────────
	// Body reads outlive the hard ceiling so that responses which finished
	// loading right before it can still be sized during finalize.
	scan := s.engine.Begin(context.WithoutCancel(ctx), req.URL, newPageSource(p))
	finalize := func() interceptor.Result {
		graceCtx, graceCancel := context.WithTimeout(context.Background(), s.scanCfg.BodyGrace)
		defer graceCancel()
		return scan.Finalize(graceCtx)
	}

	// ── 6. Idle waiter BEFORE navigation ──────────────────────────────
	waitIdle := p.WaitRequestIdle(s.scanCfg.IdleWindow, nil, nil, nil)

	// ── 7. Navigate ───────────────────────────────────────────────────
	nav := p
	if s.scanCfg.NavigationTimeout > 0 {
		nav = p.Timeout(s.scanCfg.NavigationTimeout)
	}
	navErr := nav.Navigate(req.URL)
	if s.scanCfg.NavigationTimeout > 0 {
		nav.CancelTimeout()
	}
	if navErr != nil {
		scan.MarkUnsettled()
		partial := finalize()
		return nil, categorizeError(navErr, "navigation to target URL failed").WithPartial(partial)
	}

	// ── 8. Settle ─────────────────────────────────────────────────────
	s.settle(ctx, scan, waitIdle)

	// ── 9. Actions ────────────────────────────────────────────────────
	if len(req.Actions) > 0 && ctx.Err() == nil {
		waitAgain := p.WaitRequestIdle(s.scanCfg.IdleWindow, nil, nil, nil)
		if actErr := executeActions(ctx, p, req.Actions); actErr != nil {
			partial := finalize()
			return nil, actErr.WithPartial(partial)
		}
		s.settle(ctx, scan, waitAgain)
	}

	// ── 10. Finalize ──────────────────────────────────────────────────
	final := finalize()
	slog.Info("scan finished",
		"url", req.URL,
		"totalBytes", final.TotalBytes,
		"resources", final.ResourceCount,
		"unresolved", final.UnresolvedCount,
		"abandoned", final.AbandonedCount,
		"settled", final.Settled,
	)
	return &final, nil
}

// settle blocks until the page is idle or ctx's hard ceiling fires. Hitting
// the ceiling is not an error; the scan is only flagged as unsettled.
func (s *Scraper) settle(ctx context.Context, scan *interceptor.Scan, wait func()) {
	wait()
	if ctx.Err() != nil {
		scan.MarkUnsettled()
		slog.Debug("page did not settle before the hard timeout",
			"url", scan.URL(),
			"error", ctx.Err(),
		)
	}
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed ScanErrors so the API layer
// can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.ScanError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScanError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScanError(models.ErrCodeTimeout, "scan canceled", err)
	default:
		var navErr *rod.NavigationError
		if errors.As(err, &navErr) {
			return models.NewScanError(models.ErrCodeNavigation, msg+": "+navErr.Reason, err)
		}
		return models.NewScanError(models.ErrCodeNavigation, msg, err)
	}
}
