package distill

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Layout constants, ported from the reference row/column placement
// algorithm: X_NEAR governs the x-distance tie-break when two candidate
// rows both fall within the y-threshold; EPS is the same-row fast path
// for exact y matches.
const (
	xNear             = 320.0
	eps               = 1e-3
	defaultYThreshold = 16.0
	defaultHScale     = 4.0
)

var (
	monthNamePattern = regexp.MustCompile(`(?i)^(january|february|march|april|may|june|july|august|september|october|november|december)$`)
	dayNumberPattern = regexp.MustCompile(`^\d{1,2}$`)
	bracketStrip     = regexp.MustCompile(`[\[\]{}☐✅🔘🟢]`)
)

type positioned struct {
	orig  int
	frame string
	text  string
	x, y, w, h float64
}

// applyCalendarHeuristic finds the first consecutive pair of month-name
// header entries bracketing at least 5 day-number tokens and shifts every
// subsequent month block downward so multi-month calendars linearize
// without visually overlapping rows.
func applyCalendarHeuristic(entries []positioned) []positioned {
	type header struct{ idx int }
	var headers []header
	for i, e := range entries {
		clean := strings.TrimSpace(bracketStrip.ReplaceAllString(e.text, ""))
		if monthNamePattern.MatchString(clean) {
			headers = append(headers, header{idx: i})
		}
	}
	if len(headers) < 2 {
		return entries
	}
	first, second := headers[0].idx, headers[1].idx
	dayCount := 0
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i := first; i < second && i < len(entries); i++ {
		clean := strings.TrimSpace(bracketStrip.ReplaceAllString(entries[i].text, ""))
		if dayNumberPattern.MatchString(clean) {
			dayCount++
			if entries[i].y < minY {
				minY = entries[i].y
			}
			if entries[i].y > maxY {
				maxY = entries[i].y
			}
		}
	}
	if dayCount < 5 || math.IsInf(minY, 1) {
		return entries
	}
	blockHeight := (maxY - minY) + 40

	out := make([]positioned, len(entries))
	copy(out, entries)
	blockIdx := 0
	for i := second; i < len(out); i++ {
		clean := strings.TrimSpace(bracketStrip.ReplaceAllString(out[i].text, ""))
		if monthNamePattern.MatchString(clean) {
			blockIdx++
		}
		if blockIdx > 0 {
			out[i].y += blockHeight * float64(blockIdx)
		}
	}
	return out
}

// groupRows buckets entries into visual rows using yThreshold. An entry
// joins a row with an identical y outright; a row whose y is merely within
// yThreshold is joined only if the row's last entry lies within xNear
// horizontally. The three most recently started rows are tried, newest
// first, and the first that qualifies wins (not the nearest in x).
func groupRows(entries []positioned, yThreshold float64) [][]positioned {
	sort.SliceStable(entries, func(i, j int) bool {
		if math.Abs(entries[i].y-entries[j].y) > eps {
			return entries[i].y < entries[j].y
		}
		if entries[i].x != entries[j].x {
			return entries[i].x < entries[j].x
		}
		return entries[i].orig < entries[j].orig
	})

	var rows [][]positioned
	var rowAnchorY []float64
	for _, e := range entries {
		placed := false
		for ri := len(rows) - 1; ri >= 0 && len(rows)-ri <= 3; ri-- {
			if math.Abs(e.y-rowAnchorY[ri]) <= eps {
				rows[ri] = append(rows[ri], e)
				placed = true
				break
			}
			if math.Abs(e.y-rowAnchorY[ri]) <= yThreshold {
				last := rows[ri][len(rows[ri])-1]
				if math.Abs(e.x-last.x) <= xNear {
					rows[ri] = append(rows[ri], e)
					placed = true
					break
				}
			}
		}
		if !placed {
			rows = append(rows, []positioned{e})
			rowAnchorY = append(rowAnchorY, e.y)
		}
	}
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].x < row[j].x })
	}
	return rows
}

// wordWrap greedily wraps text to maxWidth columns, forcing breaks at
// "||" separators and splitting any single word longer than maxWidth.
func wordWrap(text string, maxWidth int) []string {
	if maxWidth < 1 {
		maxWidth = 1
	}
	if strings.Contains(text, "||") {
		var out []string
		for _, seg := range strings.Split(text, "||") {
			seg = strings.TrimSpace(seg)
			if seg == "" || seg == "-" {
				continue
			}
			out = append(out, wordWrap(seg, maxWidth)...)
		}
		return out
	}

	words := strings.Fields(text)
	var lines []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
		}
	}
	for _, w := range words {
		for len(w) > maxWidth {
			if cur.Len() > 0 {
				flush()
			}
			lines = append(lines, w[:maxWidth])
			w = w[maxWidth:]
		}
		if cur.Len() == 0 {
			cur.WriteString(w)
			continue
		}
		if cur.Len()+1+len(w) > maxWidth {
			flush()
			cur.WriteString(w)
		} else {
			cur.WriteString(" ")
			cur.WriteString(w)
		}
	}
	flush()
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

func placeText(b *strings.Builder, col int, text string) {
	cur := b.Len()
	if col > cur {
		b.WriteString(strings.Repeat(" ", col-cur))
	} else if cur > 0 {
		b.WriteString(" ")
	}
	b.WriteString(text)
}

// Layout renders disambiguated, masked lines into a deterministic
// text+coordinate reproduction of the page: rows grouped by vertical
// proximity, columns placed by horizontal position, long labels
// word-wrapped, and multi-month calendars linearized.
func Layout(lines []line) string {
	entries := make([]positioned, 0, len(lines))
	for i, l := range lines {
		if (l.seg.W <= 1 || l.seg.H <= 1) && len(l.displayToken) > 5 {
			continue
		}
		entries = append(entries, positioned{
			orig: i, frame: l.seg.Frame, text: l.displayToken,
			x: l.seg.X, y: l.seg.Y, w: l.seg.W, h: l.seg.H,
		})
	}
	entries = applyCalendarHeuristic(entries)
	rows := groupRows(entries, defaultYThreshold)

	var out strings.Builder
	var prevY float64
	for ri, row := range rows {
		if ri > 0 {
			gap := row[0].y - prevY
			blanks := int(gap/defaultYThreshold) - 1
			for i := 0; i < blanks && i < 5; i++ {
				out.WriteString("\n")
			}
		}
		var line strings.Builder
		for _, e := range row {
			col := int(math.Round(e.x / defaultHScale))
			maxColWidth := int(math.Round(e.w / defaultHScale))
			wrapFactor := 1.0
			switch {
			case len(e.text) <= 6:
				wrapFactor = 6
			case len(e.text) <= 40:
				wrapFactor = 1.8
			}
			width := int(float64(maxColWidth) * wrapFactor)
			if width < 1 {
				width = len(e.text)
				if width < 1 {
					width = 1
				}
			}
			wrapped := wordWrap(e.text, width)
			placeText(&line, col, wrapped[0])
			for _, extra := range wrapped[1:] {
				out.WriteString(line.String())
				out.WriteString("\n")
				line.Reset()
				placeText(&line, col, extra)
			}
		}
		out.WriteString(line.String())
		out.WriteString("\n")
		if len(row) > 0 {
			prevY = row[len(row)-1].y
		}
	}
	return collapseBlankLines(out.String())
}

var excessiveBlankLines = regexp.MustCompile(`\n{4,}`)

func collapseBlankLines(s string) string {
	return excessiveBlankLines.ReplaceAllString(s, "\n\n\n")
}
