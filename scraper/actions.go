package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/ecoaudit/scanner/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const (
	// actionTimeout is the per-action deadline.
	actionTimeout = 10 * time.Second

	// scrollPause lets lazy-loaded content start fetching between steps.
	scrollPause = 150 * time.Millisecond
)

// executeActions runs the ordered list of page actions. Actions exist to
// make the page fetch what a visitor would eventually load (lazy images,
// deferred widgets), so every response they trigger is counted.
func executeActions(ctx context.Context, page *rod.Page, actions []models.Action) *models.ScanError {
	for i, action := range actions {
		if err := executeSingleAction(ctx, page, action); err != nil {
			return models.NewScanError(
				models.ErrCodeActionFailed,
				fmt.Sprintf("action %d (%s) failed after %d completed: %v", i, action.Type, i, err),
				err,
			)
		}
	}
	return nil
}

func executeSingleAction(ctx context.Context, page *rod.Page, action models.Action) error {
	actionCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	p := page.Context(actionCtx)

	switch action.Type {
	case "wait":
		return execWait(p, action)
	case "click":
		return execClick(p, action)
	case "scroll":
		return execScroll(p, action)
	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
}

// execWait either sleeps or waits for a CSS selector to appear.
func execWait(p *rod.Page, action models.Action) error {
	if action.Selector != "" {
		return p.WaitElementsMoreThan(action.Selector, 0)
	}
	if action.Milliseconds > 0 {
		select {
		case <-time.After(time.Duration(action.Milliseconds) * time.Millisecond):
			return nil
		case <-p.GetContext().Done():
			return p.GetContext().Err()
		}
	}
	return nil
}

func execClick(p *rod.Page, action models.Action) error {
	if action.Selector == "" {
		return fmt.Errorf("click action requires a selector")
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

const maxScrollSteps = 50

// scrollPlan turns a scroll action into a direction (+1 down, -1 up), a step
// budget, and whether to stop early once the bottom of the page is reached.
func scrollPlan(action models.Action) (sign float64, steps int, untilEnd bool) {
	sign, steps = 1, action.Amount
	switch action.Direction {
	case "up":
		sign = -1
	case "bottom":
		untilEnd = true
		if steps <= 0 {
			steps = maxScrollSteps
		}
	}
	if steps <= 0 {
		steps = 1
	}
	return sign, min(steps, maxScrollSteps), untilEnd
}

// execScroll scrolls by whole viewports so lazy-loading observers fire.
func execScroll(p *rod.Page, action models.Action) error {
	sign, steps, untilEnd := scrollPlan(action)

	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return fmt.Errorf("failed to get viewport height: %w", err)
	}
	delta := sign * float64(res.Value.Int())

	for i := 0; i < steps; i++ {
		if err := p.Mouse.Scroll(0, delta, 0); err != nil {
			return fmt.Errorf("scroll step %d failed: %w", i, err)
		}
		select {
		case <-time.After(scrollPause):
		case <-p.GetContext().Done():
			return p.GetContext().Err()
		}
		if untilEnd && atBottom(p) {
			return nil
		}
	}
	return nil
}

func atBottom(p *rod.Page) bool {
	res, err := p.Eval(`() => window.scrollY + window.innerHeight >= document.documentElement.scrollHeight - 2`)
	return err == nil && res.Value.Bool()
}
