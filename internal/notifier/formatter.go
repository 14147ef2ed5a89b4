package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"PriceForecaster/internal/model"
	"PriceForecaster/internal/pipeline"
	"PriceForecaster/internal/recorder"
)

// PreviewRows is how many trailing rows the reports show.
const PreviewRows = 5

// FormatForecastReport renders a successful run as a Telegram HTML message:
// the chosen column, the last raw rows, the summary metrics and the last
// forecast rows.
func FormatForecastReport(res *pipeline.Result) string {
	var b strings.Builder
	symbol := strings.ToUpper(res.Request.Symbol)

	b.WriteString(fmt.Sprintf("📈 <b>%s forecast</b> | %s\n\n", html.EscapeString(symbol), time.Now().Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Using column: <b>%s</b> (%d points)\n\n", html.EscapeString(res.CloseColumn), res.Series.Len()))

	b.WriteString("<b>Latest prices:</b>\n<pre>")
	b.WriteString(html.EscapeString(FormatTableTail(res.Table, PreviewRows)))
	b.WriteString("</pre>\n")

	b.WriteString("<b>Summary:</b>\n")
	b.WriteString(FormatSummary(res.Summary))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("<b>Forecast (%d days, %.0f%% interval):</b>\n<pre>", res.Forecast.Horizon, res.Forecast.IntervalWidth*100))
	b.WriteString(html.EscapeString(FormatForecastTail(res.Forecast, PreviewRows)))
	b.WriteString("</pre>")
	return b.String()
}

// FormatSummary renders the three summary metrics.
func FormatSummary(s model.SummaryStats) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Average Price: %s\n", formatPrice(s.Mean)))
	b.WriteString(fmt.Sprintf("Highest Price: %s\n", formatPrice(s.Max)))
	b.WriteString(fmt.Sprintf("Lowest Price: %s\n", formatPrice(s.Min)))
	return b.String()
}

// FormatTableTail renders the last n rows of the normalized table as plain
// aligned text.
func FormatTableTail(t *model.NormalizedTable, n int) string {
	if t == nil {
		return ""
	}
	header := append([]string{"Date"}, t.Columns...)
	lines := [][]string{header}
	for _, row := range t.Tail(n) {
		line := []string{formatIndex(row.Index)}
		for c := range t.Columns {
			var v any
			if c < len(row.Values) {
				v = row.Values[c]
			}
			line = append(line, formatCell(v))
		}
		lines = append(lines, line)
	}
	return align(lines)
}

// FormatForecastTail renders the last n forecast rows.
func FormatForecastTail(f *model.ForecastResult, n int) string {
	lines := [][]string{{"ds", "yhat", "yhat_lower", "yhat_upper"}}
	for _, r := range f.Tail(n) {
		lines = append(lines, []string{
			r.Time.Format("2006-01-02"),
			fmt.Sprintf("%.2f", r.Estimate),
			fmt.Sprintf("%.2f", r.Lower),
			fmt.Sprintf("%.2f", r.Upper),
		})
	}
	return align(lines)
}

// FormatError turns a failed run into the message shown to the user.
func FormatError(symbol string, err error) string {
	symbol = html.EscapeString(strings.ToUpper(symbol))
	switch model.ErrorKind(err) {
	case "no_data":
		return fmt.Sprintf("⚠️ No data found for <b>%s</b>. Please check the stock symbol or date range.", symbol)
	case "column_not_found":
		return fmt.Sprintf("❌ Could not find any 'Close' column in the data for <b>%s</b>.", symbol)
	case "model_fit":
		return fmt.Sprintf("⚠️ Not enough data points to forecast <b>%s</b>: %s", symbol, html.EscapeString(err.Error()))
	case "invalid_request":
		return fmt.Sprintf("⚠️ %s", html.EscapeString(err.Error()))
	default:
		return fmt.Sprintf("❌ Forecast for <b>%s</b> failed: %s", symbol, html.EscapeString(err.Error()))
	}
}

// FormatRuns lists recorded runs, newest first.
func FormatRuns(runs []recorder.Run) string {
	if len(runs) == 0 {
		return "No recorded runs."
	}
	var b strings.Builder
	b.WriteString("🗂 <b>Recent runs</b>\n<pre>")
	lines := [][]string{{"when", "symbol", "horizon", "outcome", "last yhat"}}
	for _, r := range runs {
		last := "-"
		if r.Outcome == "ok" {
			last = fmt.Sprintf("%.2f", r.LastEstimate)
		}
		lines = append(lines, []string{
			r.CreatedAt.Format("01-02 15:04"),
			strings.ToUpper(r.Symbol),
			fmt.Sprint(r.Horizon),
			r.Outcome,
			last,
		})
	}
	b.WriteString(html.EscapeString(align(lines)))
	b.WriteString("</pre>")
	return b.String()
}

func formatPrice(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String() + frac
	}
	return b.String() + frac
}

func formatIndex(v any) string {
	switch d := v.(type) {
	case time.Time:
		return d.Format("2006-01-02")
	case nil:
		return ""
	default:
		return fmt.Sprint(d)
	}
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NaN"
	case float64:
		return fmt.Sprintf("%.2f", x)
	default:
		return fmt.Sprint(x)
	}
}

// align pads every column to its widest cell.
func align(lines [][]string) string {
	var widths []int
	for _, l := range lines {
		for i, cell := range l {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if n := len([]rune(cell)); n > widths[i] {
				widths[i] = n
			}
		}
	}
	var b strings.Builder
	for _, l := range lines {
		for i, cell := range l {
			if i > 0 {
				b.WriteString("  ")
			}
			if i == len(l)-1 {
				b.WriteString(cell)
				continue
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-len([]rune(cell))))
		}
		b.WriteString("\n")
	}
	return b.String()
}
