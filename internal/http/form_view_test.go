package httpx

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skilldeck/skilldeck/internal/domain/skill"
)

func TestBuildFormView(t *testing.T) {
	sk := &skill.Skill{ID: "docx", Operations: []skill.Operation{
		{
			ID:   "blank",
			Name: "Blank document",
			Fields: []skill.Field{
				{Name: "title", Kind: skill.KindText, Default: "Untitled"},
				{Name: "toc", Kind: skill.KindBool},
				{Name: "theme_id", Kind: skill.KindSelect},
				{Name: "size", Kind: skill.KindSelect, Options: []skill.Option{{Value: "a4", Label: "A4"}}},
				{Name: "sections", Kind: skill.KindGroup, Subfields: []skill.Field{
					{Name: "heading", Kind: skill.KindText},
					{Name: "body", Kind: skill.KindTextarea},
				}},
			},
		},
		{ID: "memo", Name: "Memo", SubmitLabel: "Write memo"},
	}}
	op := &sk.Operations[0]

	values := skill.Values{Form: url.Values{
		"toc":              {"on"},
		"sections.heading": {"Intro", "Body"},
		"sections.body":    {"Hello"},
	}}
	loaded := skill.OptionSet{"theme_id": {{Value: "ocean", Label: "Ocean"}}}

	fv := buildFormView(formViewInput{
		Skill:      sk,
		Op:         op,
		Values:     values,
		Loaded:     loaded,
		Errors:     map[string]string{"title": "This field is required"},
		InstanceID: "inst-1",
		CanSubmit:  false,
	})

	assert.Equal(t, "/tools/docx/blank/submit", fv.Action)
	assert.Equal(t, "/tools/docx/blank/validate", fv.ValidateURL)
	assert.Equal(t, "Blank document", fv.SubmitLabel, "falls back to the operation name")
	assert.False(t, fv.Multipart)
	require.Len(t, fv.Fields, 5)

	title := fv.Fields[0]
	assert.Equal(t, "Untitled", title.Value, "untouched fields show their default")
	assert.True(t, title.HasError())

	assert.True(t, fv.Fields[1].Checked)
	assert.Equal(t, loaded["theme_id"], fv.Fields[2].Options, "loaded options fill a select without static ones")
	assert.Equal(t, []skill.Option{{Value: "a4", Label: "A4"}}, fv.Fields[3].Options)

	group := fv.Fields[4]
	assert.Equal(t, []map[string]string{
		{"heading": "Intro", "body": "Hello"},
		{"heading": "Body"},
	}, group.Rows)
	require.Len(t, group.Subviews, 2)
	assert.Equal(t, "body", group.Subviews[1].Name)
}

func TestBuildFormView_BlankGroupAndFiles(t *testing.T) {
	sk := &skill.Skill{ID: "pdf", Operations: []skill.Operation{{
		ID: "merge",
		Fields: []skill.Field{
			{Name: "files", Kind: skill.KindFiles},
			{Name: "pages", Kind: skill.KindGroup, Subfields: []skill.Field{{Name: "n", Kind: skill.KindNumber}}},
		},
	}}}

	fv := buildFormView(formViewInput{Skill: sk, Op: &sk.Operations[0], Values: skill.NewValues()})

	assert.True(t, fv.Multipart, "file fields force multipart")
	assert.Equal(t, "not files", fv.ValidateParams)
	assert.Equal(t, FileCountPrefix, fv.FileCountPrefix)
	assert.Equal(t, []map[string]string{{}}, fv.Fields[1].Rows, "an untouched group shows one empty row")
}

func TestOperationTabs(t *testing.T) {
	sk := &skill.Skill{ID: "pdf", Operations: []skill.Operation{
		{ID: "merge", Name: "Merge"},
		{ID: "split", Name: "Split"},
	}}

	tabs := operationTabs(sk, &sk.Operations[1])
	require.Len(t, tabs, 2)
	assert.Equal(t, "/tools/pdf?op=merge", tabs[0].URL)
	assert.False(t, tabs[0].Active)
	assert.True(t, tabs[1].Active)

	single := &skill.Skill{ID: "x", Operations: sk.Operations[:1]}
	assert.Nil(t, operationTabs(single, &single.Operations[0]))
}
