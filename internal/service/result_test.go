package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skilldeck/skilldeck/internal/data"
	"github.com/skilldeck/skilldeck/internal/domain/job"
	"github.com/skilldeck/skilldeck/internal/testutil"
)

func newResultHandler(t *testing.T) (*ResultHandler, *DownloadStore) {
	t.Helper()
	store := NewDownloadStore(data.NewMemoryCacheRepo(testClock()), testPrefix, time.Minute)
	return NewResultHandler(store, nil), store
}

func TestResultHandler_Binary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h, store := newResultHandler(t)
	cat := testutil.LoadCatalog(t)
	_, op := lookupOperation(t, cat, "pdf", "split")

	cfg := job.NewConfig()
	cfg.Set("start_page", 2)
	cfg.Set("end_page", 4)
	res := job.Binary(job.Blob{Filename: "pages_2-4.pdf", ContentType: "application/pdf", Data: []byte("%PDF")})

	first, err := h.Handle(ctx, op, cfg, res)
	require.NoError(t, err)
	second, err := h.Handle(ctx, op, cfg, res)
	require.NoError(t, err)

	assert.True(t, first.IsDownload())
	assert.False(t, first.Failed())
	assert.Equal(t, "Pages 2-4 extracted successfully!", first.Message)
	assert.Equal(t, "pages_2-4.pdf", first.Filename)
	assert.Equal(t, int64(4), first.Bytes)
	assert.NotEqual(t, first.DownloadURL, second.DownloadURL, "each handling gets its own download")

	for _, o := range []Outcome{first, second} {
		token := strings.TrimPrefix(o.DownloadURL, DownloadPrefix)
		blob, err := store.Take(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF"), blob.Data)
	}
}

func TestResultHandler_RecordWithDisplay(t *testing.T) {
	t.Parallel()
	h, _ := newResultHandler(t)
	cat := testutil.LoadCatalog(t)
	_, op := lookupOperation(t, cat, "pdf", "extract-text")

	res := job.Structured(job.Record{
		"filename": "report.pdf",
		"text":     "line one\nline two",
		"pages":    float64(2),
	})
	out, err := h.Handle(context.Background(), op, job.NewConfig(), res)
	require.NoError(t, err)

	assert.False(t, out.IsDownload())
	assert.Equal(t, "Text extracted successfully!", out.Message)
	assert.Equal(t, []DisplayRow{
		{Label: "File", Value: "report.pdf"},
		{Label: "Text", Value: "line one\nline two", Multiline: true},
	}, out.Rows)
	assert.Equal(t, res.Record, out.Record)
}

func TestResultHandler_RecordWithoutDisplay(t *testing.T) {
	t.Parallel()
	h, _ := newResultHandler(t)
	cat := testutil.LoadCatalog(t)
	_, op := lookupOperation(t, cat, "pdf", "info")

	res := job.Structured(job.Record{
		"page_count": float64(12),
		"encrypted":  false,
		"authors":    []any{"Ada", "Grace"},
		"metadata":   map[string]any{"title": "Q4"},
	})
	out, err := h.Handle(context.Background(), op, job.NewConfig(), res)
	require.NoError(t, err)

	require.Len(t, out.Rows, 4)
	assert.Equal(t, DisplayRow{Label: "Authors", Value: "Ada, Grace"}, out.Rows[0])
	assert.Equal(t, DisplayRow{Label: "Encrypted", Value: "false"}, out.Rows[1])
	assert.Equal(t, "Metadata", out.Rows[2].Label)
	assert.JSONEq(t, `{"title": "Q4"}`, out.Rows[2].Value)
	assert.True(t, out.Rows[2].Multiline)
	assert.Equal(t, DisplayRow{Label: "Page count", Value: "12"}, out.Rows[3])
}

func TestResultHandler_Failure(t *testing.T) {
	t.Parallel()
	h, _ := newResultHandler(t)
	cat := testutil.LoadCatalog(t)
	_, op := lookupOperation(t, cat, "pdf", "merge")

	out, err := h.Handle(context.Background(), op, job.NewConfig(),
		job.Failed(job.FailureServer, "Need at least 2 PDF files", 400))
	require.NoError(t, err)

	assert.True(t, out.Failed())
	assert.False(t, out.IsDownload())
	assert.Equal(t, "Need at least 2 PDF files", out.Message)
	assert.Equal(t, job.FailureServer, out.FailureKind)
	assert.Equal(t, 400, out.Status)
}

func TestHumanize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Page count", humanize("page_count"))
	assert.Equal(t, "Created at", humanize("created-at"))
	assert.Equal(t, "X", humanize("x"))
	assert.Equal(t, "_", humanize("_"))
}
