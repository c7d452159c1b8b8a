package distill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

// Result is one Distill call's output: the rendered text a model reads,
// the locator index built alongside it, and the mask map needed to
// recover any digit-bearing values the model echoes back.
type Result struct {
	Text     string
	Index    *models.LocatorIndex
	MaskMap  *MaskMap
	PDFFound bool
}

// Distiller implements the Page-Text Distiller (C1) and Data Masker (C2).
type Distiller struct {
	retryDelay time.Duration
}

// New returns a Distiller with the default retry-after-empty-result delay.
func New() *Distiller {
	return &Distiller{retryDelay: 400 * time.Millisecond}
}

// Distill walks the live page via the embedded script, disambiguates
// duplicate tokens, optionally masks digit-bearing content, and lays the
// result out as deterministic text. goal seeds the donot-mask set with any
// digit tokens the task text itself mentions. An empty script result is
// retried once after a bounded sleep; a second empty result is returned
// as-is for the caller to interpret (possible PDF viewer or blocked page).
func (d *Distiller) Distill(ctx context.Context, page PageDriver, goal string, mask bool) (*Result, error) {
	segments, err := d.evaluate(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("distill: evaluate: %w", err)
	}
	if len(segments) == 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.retryDelay):
		}
		segments, err = d.evaluate(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("distill: evaluate retry: %w", err)
		}
	}

	lines := disambiguate(segments)

	index := models.NewLocatorIndex()
	for _, l := range lines {
		if !isInteractableToken(l.displayToken) {
			continue
		}
		index.Set(models.LocatorEntry{
			DisplayToken:  l.displayToken,
			FrameID:       l.seg.Frame,
			BoundingBox:   models.BoundingBox{X: l.seg.X, Y: l.seg.Y, W: l.seg.W, H: l.seg.H},
			XPath:         l.seg.XPath,
			LocatorString: l.seg.Locator,
		})
		index.SetOriginal(l.displayToken, l.seg.Content)
	}

	var maskMap *MaskMap
	if mask {
		joined := make([]string, len(lines))
		for i, l := range lines {
			joined[i] = l.displayToken
		}
		maskedJoined, mm := Mask(strings.Join(joined, "\n"), goal)
		maskMap = mm
		maskedTokens := strings.Split(maskedJoined, "\n")
		for i := range lines {
			if i < len(maskedTokens) {
				lines[i].displayToken = maskedTokens[i]
			}
		}
	}

	text := Layout(lines)
	return &Result{Text: text, Index: index, MaskMap: maskMap}, nil
}

func (d *Distiller) evaluate(ctx context.Context, page PageDriver) ([]segment, error) {
	var segments []segment
	script := "(" + walkScript + ")(" + quoteJS(defaultFrameID(page)) + ")"
	if err := page.Evaluate(ctx, script, &segments); err != nil {
		return nil, err
	}
	return segments, nil
}

func defaultFrameID(page PageDriver) string {
	if page == nil {
		return "main"
	}
	return "main:" + page.URL()
}

func quoteJS(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
