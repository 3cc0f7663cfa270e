package core

import (
	"bytes"
	"html/template"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skilldeck/skilldeck/internal/domain/job"
)

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{0, "0 B"},
		{int64(1023), "1023 B"},
		{1536, "1.5 KB"},
		{int64(5 * 1024 * 1024), "5.0 MB"},
		{"n/a", "n/a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HumanBytes(tt.in))
	}
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "badge-success", statusClass(job.SubmissionSucceeded))
	assert.Equal(t, "badge-danger", statusClass(job.SubmissionFailed))
	assert.Equal(t, "badge-warning", statusClass(job.FailureBusy))
	assert.Equal(t, "badge-danger", statusClass(job.FailureTimeout))
	assert.Equal(t, "badge-light", statusClass("unknown"))
}

func TestDict(t *testing.T) {
	m, err := dict("Field", "title", "Count", 2)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Field": "title", "Count": 2}, m)

	_, err = dict("odd")
	require.Error(t, err)
	_, err = dict(1, 2)
	require.Error(t, err)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "1,234,567", formatNumberTemplate(1234567))
	assert.Equal(t, "-1,000", formatNumberTemplate(int64(-1000)))
	assert.Equal(t, "999", formatNumberTemplate(uint(999)))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "hello", TruncateText("hello", 10))
	assert.Equal(t, "hel…", TruncateText("hello", 4))
	assert.Equal(t, "hello", TruncateText("hello", "x"))
}

func TestRenderSection(t *testing.T) {
	var tmpl *template.Template
	funcs := Funcs(Deps{
		Template:           &tmpl,
		ContentTemplateFor: func(page string) string { return page + "-content" },
	})
	tmpl = template.Must(template.New("root").Funcs(funcs).Parse(
		`{{define "tool-content"}}<p>{{.}}</p>{{end}}{{define "layout"}}<main>{{renderSection "tool" .}}</main>{{end}}`))

	var buf bytes.Buffer
	require.NoError(t, tmpl.ExecuteTemplate(&buf, "layout", "<b>x</b>"))
	assert.Equal(t, "<main><p>&lt;b&gt;x&lt;/b&gt;</p></main>", buf.String())
}
