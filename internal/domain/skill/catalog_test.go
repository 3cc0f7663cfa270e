package skill

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skilldeck/skilldeck/internal/domain/job"
)

func loadCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load(os.DirFS("../../.."), "catalog/skills.yaml")
	require.NoError(t, err)
	return c
}

func pdfFile(name string) job.File {
	return job.File{Name: name, ContentType: "application/pdf", Data: []byte("%PDF-1.7")}
}

func TestLoad_ShippedCatalog(t *testing.T) {
	c := loadCatalog(t)

	assert.Len(t, c.All(), 17)
	for _, s := range c.All() {
		assert.NotEmpty(t, s.Name, s.ID)
		assert.Equal(t, "/dashboard-"+s.ID, s.LegacyPath)
		if s.ID == "brand-guidelines" {
			assert.True(t, s.IsStatic())
			continue
		}
		assert.NotEmpty(t, s.Operations, s.ID)
	}

	cats := c.Categories()
	require.Len(t, cats, 5)
	assert.Equal(t, "Documents & Office", cats[0].Name)
	assert.Len(t, cats[0].Skills, 6)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "skills: []"},
		{"duplicate skill", "skills:\n- {id: a, name: A}\n- {id: a, name: B}"},
		{"duplicate legacy path", "skills:\n- {id: a, legacy_path: /old}\n- {id: b, legacy_path: /old}"},
		{"wildcard legacy path", "skills:\n- {id: a, legacy_path: '/old-{x}'}"},
		{"unknown kind", `skills:
- id: a
  operations:
  - id: op
    endpoint: /x
    fields: [{name: f, kind: colour}]`},
		{"upload without multipart", `skills:
- id: a
  operations:
  - id: op
    endpoint: /x
    encoding: json
    fields: [{name: file, kind: file}]`},
		{"nested path in multipart", `skills:
- id: a
  operations:
  - id: op
    endpoint: /x
    fields: [{name: file, kind: file}, {name: w, kind: number, paths: [c.w]}]`},
		{"bad filename rule", `skills:
- id: a
  operations:
  - id: op
    endpoint: /x
    filename: '{{.Param'`},
		{"missing endpoint", "skills:\n- id: a\n  operations: [{id: op}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestCanSubmit_MergeNeedsTwoFiles(t *testing.T) {
	c := loadCatalog(t)
	pdf, ok := c.Skill("pdf")
	require.True(t, ok)
	merge, ok := pdf.Operation("merge")
	require.True(t, ok)

	v := NewValues()
	assert.False(t, merge.CanSubmit(v, nil))

	v.AddFile("files", pdfFile("a.pdf"))
	assert.False(t, merge.CanSubmit(v, nil))
	assert.Equal(t, "Please select at least 2 files", merge.Validate(v, nil)["files"])

	v.AddFile("files", pdfFile("b.pdf"))
	assert.True(t, merge.CanSubmit(v, nil))
}

func TestCanSubmit_DeclaredFileCounts(t *testing.T) {
	c := loadCatalog(t)
	pdf, _ := c.Skill("pdf")
	merge, ok := pdf.Operation("merge")
	require.True(t, ok)

	v := NewValues()
	v.SetFileCount("files", 1)
	assert.False(t, merge.CanSubmit(v, nil))

	v.SetFileCount("files", 2)
	assert.True(t, merge.CanSubmit(v, nil))
	assert.Equal(t, 2, v.FileCount("files"))

	// Counts alone never produce a submittable config.
	_, errs := merge.BuildConfig(v, nil)
	assert.Equal(t, "Please select at least 2 files", errs["files"])
}

func TestCanSubmit_RequiredAndParsedFields(t *testing.T) {
	c := loadCatalog(t)

	xlsx, _ := c.Skill("xlsx")
	table, ok := xlsx.Operation("data-table")
	require.True(t, ok)

	v := NewValues()
	v.Set("data", "[{broken")
	errs := table.Validate(v, nil)
	assert.Equal(t, "Invalid JSON data", errs["data"])
	assert.False(t, table.CanSubmit(v, nil))

	v.Set("data", `[{"Name":"John"}]`)
	assert.True(t, table.CanSubmit(v, nil))

	gif, _ := c.Skill("slack-gif")
	create, _ := gif.DefaultOperation()
	v = NewValues()
	assert.False(t, create.CanSubmit(v, nil), "subject is required")
	v.Set("subject", "ship it")
	v.Set("width", "900")
	assert.Equal(t, "Must be at most 500", create.Validate(v, nil)["width"])
	v.Set("width", "abc")
	assert.Equal(t, "Must be a number", create.Validate(v, nil)["width"])
	v.Set("width", "")
	assert.True(t, create.CanSubmit(v, nil), "blank number falls back to default")
}

func TestCanSubmit_SelectMembership(t *testing.T) {
	c := loadCatalog(t)
	themes, _ := c.Skill("themes")
	apply, _ := themes.Operation("docx")

	v := NewValues()
	v.AddFile("file", job.File{Name: "report.docx", Data: []byte("PK")})
	v.Set("theme_id", "midnight")

	assert.True(t, apply.CanSubmit(v, nil), "dynamic options not loaded accept any value")

	loaded := OptionSet{"theme_id": {{Value: "ocean", Label: "Ocean Depths"}}}
	assert.False(t, apply.CanSubmit(v, loaded))

	v.Set("theme_id", "ocean")
	assert.True(t, apply.CanSubmit(v, loaded))
}

func TestBuildConfig_NestedPathsAndLists(t *testing.T) {
	c := loadCatalog(t)

	gif, _ := c.Skill("slack-gif")
	create, _ := gif.DefaultOperation()
	v := NewValues()
	v.Set("subject", "party parrot")
	v.Set("width", "320")

	cfg, errs := create.BuildConfig(v, nil)
	require.Nil(t, errs)
	assert.Equal(t, "party parrot", cfg.Params["subject"])
	assert.Equal(t, map[string]any{
		"maxWidth":  int64(320),
		"maxHeight": int64(320),
		"maxFps":    int64(15),
		"duration":  int64(3),
	}, cfg.Params["constraints"])

	webapp, _ := c.Skill("webapp-testing")
	run, _ := webapp.DefaultOperation()
	v = NewValues()
	v.Set("url", "https://example.com")
	cfg, errs = run.BuildConfig(v, nil)
	require.Nil(t, errs)
	_, present := cfg.Params["selectors"]
	assert.False(t, present, "empty selectors are omitted")

	v.Set("selectors", " #a , .b ,")
	cfg, _ = run.BuildConfig(v, nil)
	assert.Equal(t, []string{"#a", ".b"}, cfg.Params["selectors"])

	mcp, _ := c.Skill("mcp-builder")
	mcpCreate, _ := mcp.DefaultOperation()
	v = NewValues()
	v.Set("server_name", "weather")
	v.Set("tools", "get_weather()\n\n  send_alert() \n")
	cfg, _ = mcpCreate.BuildConfig(v, nil)
	assert.Equal(t, []string{"get_weather()", "send_alert()"}, cfg.Params["tools"])
	assert.Equal(t, []string{}, cfg.Params["resources"])
}

func TestBuildConfig_GroupsAndConstants(t *testing.T) {
	c := loadCatalog(t)
	docx, _ := c.Skill("docx")
	report, _ := docx.Operation("report")

	v := NewValues()
	v.Set("title", "Q3 Review")
	v.Form["sections.heading"] = []string{"Intro", "", "Outlook"}
	v.Form["sections.body"] = []string{"Hello", "", ""}

	cfg, errs := report.BuildConfig(v, nil)
	require.Nil(t, errs)
	assert.Equal(t, "report", cfg.Params["template_type"])
	assert.Equal(t, []map[string]any{
		{"heading": "Intro", "body": "Hello"},
		{"heading": "Outlook", "body": ""},
	}, cfg.Params["sections"])

	// Constants are copied, not shared with the catalog.
	platform, _ := c.Skill("document-platform")
	wf, _ := platform.DefaultOperation()
	cfg, _ = wf.BuildConfig(NewValues(), nil)
	steps := cfg.Params["steps"].([]any)
	steps[0] = "mutated"
	again, _ := wf.BuildConfig(NewValues(), nil)
	assert.Equal(t, "Create DOCX report", again.Params["steps"].([]any)[0])
	assert.Equal(t, map[string]any{}, again.Params["inputs"])
}

func TestBuildConfig_FilesKeepPartName(t *testing.T) {
	c := loadCatalog(t)
	pdf, _ := c.Skill("pdf")
	merge, _ := pdf.Operation("merge")

	v := NewValues()
	v.AddFile("files", pdfFile("a.pdf"))
	v.AddFile("files", pdfFile("b.pdf"))

	cfg, errs := merge.BuildConfig(v, nil)
	require.Nil(t, errs)
	require.Len(t, cfg.Files, 2)
	assert.Equal(t, "files", cfg.Files[1].Field)
	assert.Equal(t, EncodingMultipart, merge.Encoding)
}

func TestSuggestFilename(t *testing.T) {
	c := loadCatalog(t)
	now := time.UnixMilli(1735689600123)

	build := func(skillID, opID string, v Values, loaded OptionSet) (*Operation, job.Config) {
		s, ok := c.Skill(skillID)
		require.True(t, ok)
		op, ok := s.Operation(opID)
		require.True(t, ok)
		cfg, errs := op.BuildConfig(v, loaded)
		require.Nil(t, errs, "%s/%s: %v", skillID, opID, errs)
		return op, cfg
	}

	t.Run("merge", func(t *testing.T) {
		v := NewValues()
		v.AddFile("files", pdfFile("a.pdf"))
		v.AddFile("files", pdfFile("b.pdf"))
		op, cfg := build("pdf", "merge", v, nil)
		assert.Equal(t, "merged.pdf", op.SuggestFilename(cfg, now))
	})

	t.Run("split", func(t *testing.T) {
		v := NewValues()
		v.AddFile("file", pdfFile("doc.pdf"))
		v.Set("start_page", "2")
		v.Set("end_page", "5")
		op, cfg := build("pdf", "split", v, nil)
		assert.Equal(t, "pages_2-5.pdf", op.SuggestFilename(cfg, now))
		assert.Equal(t, "Pages 2-5 extracted successfully!", op.Success(cfg))
	})

	t.Run("rotate", func(t *testing.T) {
		v := NewValues()
		v.AddFile("file", pdfFile("scan.pdf"))
		v.Set("rotation", "180")
		op, cfg := build("pdf", "rotate", v, nil)
		assert.Equal(t, "rotated_180_scan.pdf", op.SuggestFilename(cfg, now))
	})

	t.Run("delete pages", func(t *testing.T) {
		v := NewValues()
		v.AddFile("file", pdfFile("scan.pdf"))
		v.Set("pages", "1,3")
		op, cfg := build("pdf", "delete", v, nil)
		assert.Equal(t, "edited_scan.pdf", op.SuggestFilename(cfg, now))
	})

	t.Run("themed uses option label", func(t *testing.T) {
		v := NewValues()
		v.AddFile("file", job.File{Name: "deck.docx", Data: []byte("PK")})
		v.Set("theme_id", "modern-minimalist")
		loaded := OptionSet{"theme_id": {{Value: "modern-minimalist", Label: "Modern Minimalist"}}}
		op, cfg := build("themes", "docx", v, loaded)
		assert.Equal(t, "themed_Modern_Minimalist_deck.docx", op.SuggestFilename(cfg, now))
	})

	t.Run("docx template", func(t *testing.T) {
		v := NewValues()
		v.Set("to", "All staff")
		v.Set("from_", "Ops")
		v.Set("subject", "Parking")
		v.Set("body", "Lot B closes Friday.")
		op, cfg := build("docx", "memo", v, nil)
		assert.Equal(t, "memo_document.docx", op.SuggestFilename(cfg, now))
	})

	t.Run("xlsx timestamp", func(t *testing.T) {
		v := NewValues()
		v.Set("year", "2026")
		op, cfg := build("xlsx", "budget", v, nil)
		assert.Equal(t, "spreadsheet_budget_1735689600123.xlsx", op.SuggestFilename(cfg, now))
	})

	t.Run("pptx title", func(t *testing.T) {
		v := NewValues()
		v.Set("title", "Series A Pitch")
		op, cfg := build("pptx", "create", v, nil)
		assert.Equal(t, "Series_A_Pitch.pptx", op.SuggestFilename(cfg, now))
	})

	t.Run("no rule", func(t *testing.T) {
		v := NewValues()
		v.Set("title", "Launch")
		op, cfg := build("canvas-design", "create", v, nil)
		assert.Empty(t, op.SuggestFilename(cfg, now))
	})
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "_etc_passwd", SanitizeFilename("../etc/passwd"))
	assert.Equal(t, "a_b.pdf", SanitizeFilename(" a\\b.pdf\n"))
}

func TestResolveTarget(t *testing.T) {
	c := loadCatalog(t)

	tests := []struct {
		target string
		want   string
	}{
		{"/dashboard-docx", "docx"},
		{"/dashboard-docx/", "docx"},
		{"/dashboard-pdf?x=1", "pdf"},
		{"/tools/xlsx", "xlsx"},
		{"/tools/unknown", ""},
		{"https://evil.example.com/dashboard-docx", ""},
		{"//evil.example.com/tools/pdf", ""},
		{"/tools/pdf/merge", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			s, ok := c.ResolveTarget(tt.target)
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, s.ID)
		})
	}
}

func TestContextFor(t *testing.T) {
	c := loadCatalog(t)
	assert.Equal(t, "docx", c.ContextFor("/tools/docx"))
	assert.Equal(t, "pdf", c.ContextFor("/tools/pdf/merge"))
	assert.Equal(t, "polish", c.ContextFor("/dashboard-polish"))
	assert.Equal(t, HomeContext, c.ContextFor("/tools/mcp-builder"))
	assert.Equal(t, HomeContext, c.ContextFor("/"))
}

func TestApplyPreFill(t *testing.T) {
	c := loadCatalog(t)
	docx, _ := c.Skill("docx")

	op, v := docx.ApplyPreFill(map[string]any{
		"template": "memo",
		"subject":  "Quarterly all-hands",
		"from":     "CEO",
		"unknown":  "ignored",
	})
	require.NotNil(t, op)
	assert.Equal(t, "memo", op.ID)
	assert.Equal(t, "Quarterly all-hands", v.Get("subject"))
	assert.Equal(t, "CEO", v.Get("from_"))
	assert.Empty(t, v.Get("unknown"))

	op, v = docx.ApplyPreFill(map[string]any{
		"template": "report",
		"title":    "Annual",
		"sections": []any{
			map[string]any{"heading": "Summary", "body": "Good year"},
		},
	})
	assert.Equal(t, "report", op.ID)
	assert.Equal(t, []string{"Summary"}, v.Form["sections.heading"])

	xlsx, _ := c.Skill("xlsx")
	op, v = xlsx.ApplyPreFill(map[string]any{
		"template":   "budget",
		"year":       float64(2026),
		"categories": []any{"Rent", "Payroll"},
	})
	assert.Equal(t, "budget", op.ID)
	assert.Equal(t, "2026", v.Get("year"))
	assert.Equal(t, "Rent\nPayroll", v.Get("categories"))

	pptx, _ := c.Skill("pptx")
	op, v = pptx.ApplyPreFill(map[string]any{"template": "pitch", "title": "Seed"})
	assert.Equal(t, "create", op.ID, "pptx has one operation, template is a field alias")
	assert.Equal(t, "pitch", v.Get("template_type"))

	brand, _ := c.Skill("brand-guidelines")
	op, _ = brand.ApplyPreFill(map[string]any{"x": 1})
	assert.Nil(t, op)
}

func TestValuesFrom(t *testing.T) {
	c := loadCatalog(t)
	xlsx, _ := c.Skill("xlsx")
	op, ok := xlsx.Operation("financial-model")
	require.True(t, ok)

	v := op.ValuesFrom(map[string]any{
		"company": "Acme",
		"years":   []any{float64(2026), float64(2027)},
		"extra":   true,
	})
	assert.Equal(t, "Acme", v.Get("company_name"))
	assert.Equal(t, "2026\n2027", v.Get("years"))
	assert.Empty(t, v.Get("extra"))
	assert.True(t, op.CanSubmit(v, nil))

	pdf, _ := c.Skill("pdf")
	merge, _ := pdf.Operation("merge")
	v = merge.ValuesFrom(map[string]any{"files": "ignored.pdf"})
	assert.Empty(t, v.Files)
	assert.False(t, merge.CanSubmit(v, nil))
}
