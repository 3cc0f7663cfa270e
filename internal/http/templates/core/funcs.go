package core

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/skilldeck/skilldeck/internal/http/uiutil"
)

// Deps holds optional dependencies for constructing the core template func map.
type Deps struct {
	Template           **template.Template
	ContentTemplateFor func(string) string
}

// Funcs returns the helpers shared by every dashboard template.
func Funcs(deps Deps) template.FuncMap {
	return template.FuncMap{
		"renderSection": renderSection(deps),
		"friendlyTime":  friendlyTime,
		"millis":        uiutil.FormatMillis,
		"add":           func(a, b int) int { return a + b },
		"formatNumber":  formatNumberTemplate,
		"humanBytes":    HumanBytes,
		"statusClass":   statusClass,
		"truncateText":  TruncateText,
		"dict":          dict,
	}
}

// renderSection executes the content template of a page so the layout can
// embed it.
func renderSection(deps Deps) func(string, any) (template.HTML, error) {
	return func(page string, data any) (template.HTML, error) {
		if deps.Template == nil || *deps.Template == nil {
			return "", errors.New("template not initialized")
		}
		if deps.ContentTemplateFor == nil {
			return "", errors.New("content template mapping not configured")
		}
		var buf bytes.Buffer
		if err := (*deps.Template).ExecuteTemplate(&buf, deps.ContentTemplateFor(page), data); err != nil {
			return "", err
		}
		// #nosec G203 - output of our own html/template execution, already escaped.
		return template.HTML(buf.String()), nil
	}
}

func friendlyTime(ts any) string {
	var t time.Time
	switch v := ts.(type) {
	case time.Time:
		t = v
	case *time.Time:
		if v != nil {
			t = *v
		}
	}
	if t.IsZero() {
		return ""
	}
	return uiutil.FormatFriendlyDateTime(t)
}

// formatNumberTemplate renders integers with thousands separators.
func formatNumberTemplate(v any) string {
	var digits string
	neg := false
	switch x := v.(type) {
	case uint:
		digits = strconv.FormatUint(uint64(x), 10)
	case uint64:
		digits = strconv.FormatUint(x, 10)
	case uint32:
		digits = strconv.FormatUint(uint64(x), 10)
	default:
		n, ok := toInt64(v)
		if !ok {
			return fmt.Sprint(v)
		}
		if n < 0 {
			neg = true
			digits = strconv.FormatUint(uint64(-n), 10)
		} else {
			digits = strconv.FormatUint(uint64(n), 10)
		}
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// statusClass maps a submission status or failure kind to a badge class.
func statusClass(status any) string {
	switch strings.ToLower(fmt.Sprint(status)) {
	case "succeeded", "success":
		return "badge-success"
	case "busy", "canceled":
		return "badge-warning"
	case "failed", "failure", "server", "network", "malformed", "timeout":
		return "badge-danger"
	default:
		return "badge-light"
	}
}

// HumanBytes formats a byte count with binary units (1.5 KB, 2.0 MB).
func HumanBytes(n any) string {
	v, ok := toInt64(n)
	if !ok {
		return fmt.Sprint(n)
	}
	const unit = 1024
	if v < unit {
		return strconv.FormatInt(v, 10) + " B"
	}
	div, exp := int64(unit), 0
	for q := v / unit; q >= unit; q /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(v)/float64(div), "KMGTPE"[exp])
}

// dict builds a map from alternating keys and values, for passing several
// values to a partial.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("dict needs an even number of arguments")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}

// TruncateText shortens s to maxLen runes, ending in an ellipsis.
func TruncateText(s string, maxLen any) string {
	n, ok := toInt64(maxLen)
	if !ok {
		if f, isFloat := maxLen.(float64); isFloat {
			n, ok = int64(f), true
		}
	}
	if !ok || n <= 0 {
		return s
	}
	runes := []rune(s)
	if int64(len(runes)) <= n {
		return s
	}
	if n == 1 {
		return string(runes[:1])
	}
	return string(runes[:n-1]) + "…"
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	default:
		return 0, false
	}
}
