package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Page wraps a single playwright.Page and satisfies distill.PageDriver
// (structurally — internal/distill never imports this package). One Page
// is borrowed for the lifetime of one task and closed when the task ends.
type Page struct {
	page playwright.Page
}

// URL returns the page's current address.
func (p *Page) URL() string {
	return p.page.URL()
}

// Evaluate runs script in the page and decodes its JSON-serializable
// return value into out via a marshal/unmarshal round-trip, since
// playwright-go's Evaluate returns a bare interface{}.
func (p *Page) Evaluate(ctx context.Context, script string, out any) error {
	raw, err := p.page.Evaluate(script)
	if err != nil {
		return fmt.Errorf("browser: evaluate: %w", err)
	}
	if out == nil {
		return nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("browser: re-encode evaluate result: %w", err)
	}
	if err := json.Unmarshal(encoded, out); err != nil {
		return fmt.Errorf("browser: decode evaluate result: %w", err)
	}
	return nil
}

// Goto navigates the page and waits until the DOM is parsed.
func (p *Page) Goto(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return fmt.Errorf("browser: goto %s: %w", url, err)
	}
	return nil
}

// WaitForLoad waits for the network to settle, bounded by
// networkIdleTimeout, and tolerates the timeout: a page that never fully
// quiesces (streaming dashboards, polling widgets) still yields a usable
// DOM for distillation.
func (p *Page) WaitForLoad() error {
	err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(networkIdleTimeout.Milliseconds())),
	})
	if err != nil {
		return nil
	}
	return nil
}

// Click clicks the element addressed by xpath.
func (p *Page) Click(xpath string) error {
	if err := p.page.Click(xpath); err != nil {
		return fmt.Errorf("browser: click %s: %w", xpath, err)
	}
	return nil
}

// Fill sets the value of a text-like input addressed by xpath.
func (p *Page) Fill(xpath, value string) error {
	if err := p.page.Fill(xpath, value); err != nil {
		return fmt.Errorf("browser: fill %s: %w", xpath, err)
	}
	return nil
}

// SelectOption chooses an option by label or value on a <select>.
func (p *Page) SelectOption(xpath, value string) error {
	_, err := p.page.SelectOption(xpath, playwright.SelectOptionValues{
		Labels: &[]string{value},
	})
	if err != nil {
		_, err = p.page.SelectOption(xpath, playwright.SelectOptionValues{
			Values: &[]string{value},
		})
	}
	if err != nil {
		return fmt.Errorf("browser: select %s=%s: %w", xpath, value, err)
	}
	return nil
}

// SetChecked checks or unchecks a checkbox/radio addressed by xpath.
func (p *Page) SetChecked(xpath string, checked bool) error {
	if err := p.page.SetChecked(xpath, checked); err != nil {
		return fmt.Errorf("browser: set-checked %s: %w", xpath, err)
	}
	return nil
}

// Scroll scrolls the element (or window, if xpath is empty) by dx, dy
// pixels via Evaluate, since playwright-go has no direct scroll-by API.
func (p *Page) Scroll(xpath string, dx, dy float64) error {
	var script string
	if xpath == "" {
		script = fmt.Sprintf("window.scrollBy(%f, %f)", dx, dy)
	} else {
		script = fmt.Sprintf(
			"(() => { const el = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue; if (el) el.scrollBy(%f, %f); })()",
			quoteJS(xpath), dx, dy,
		)
	}
	if _, err := p.page.Evaluate(script); err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	return nil
}

// GoBack navigates the page's history back one entry.
func (p *Page) GoBack() error {
	_, err := p.page.GoBack()
	if err != nil {
		return fmt.Errorf("browser: go back: %w", err)
	}
	return nil
}

// DismissModal presses Escape, the common dismissal gesture for modal
// overlays and cookie banners alike.
func (p *Page) DismissModal() error {
	if err := p.page.Keyboard().Press("Escape"); err != nil {
		return fmt.Errorf("browser: dismiss modal: %w", err)
	}
	return nil
}

// Content returns the page's full serialized HTML, used for PDF/download
// sniffing and debugging dumps.
func (p *Page) Content() (string, error) {
	html, err := p.page.Content()
	if err != nil {
		return "", fmt.Errorf("browser: content: %w", err)
	}
	return html, nil
}

// Screenshot captures the current viewport as PNG bytes.
func (p *Page) Screenshot() ([]byte, error) {
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// WaitForSelector blocks until xpath is attached to the DOM or timeout
// elapses.
func (p *Page) WaitForSelector(xpath string, timeout time.Duration) error {
	_, err := p.page.WaitForSelector(xpath, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("browser: wait for %s: %w", xpath, err)
	}
	return nil
}

// Close releases the underlying playwright page. Closing an already
// closed page is a no-op error the caller may ignore.
func (p *Page) Close() error {
	return p.page.Close()
}

func quoteJS(s string) string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}
