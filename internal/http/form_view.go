package httpx

import (
	"net/url"
	"strings"

	"github.com/skilldeck/skilldeck/internal/domain/skill"
	"github.com/skilldeck/skilldeck/internal/http/ui/viewmodel"
)

// formViewInput groups the state a skill form is rendered from.
type formViewInput struct {
	Skill      *skill.Skill
	Op         *skill.Operation
	Values     skill.Values
	Loaded     skill.OptionSet
	Errors     map[string]string
	InstanceID string
	CanSubmit  bool
	InFlight   bool
	PreFilled  bool
}

func operationURL(sk *skill.Skill, op *skill.Operation, action string) string {
	return sk.Route() + "/" + url.PathEscape(op.ID) + "/" + action
}

func buildFormView(in formViewInput) viewmodel.FormView {
	fv := viewmodel.FormView{
		SkillID:     in.Skill.ID,
		OperationID: in.Op.ID,
		Action:      operationURL(in.Skill, in.Op, "submit"),
		ValidateURL: operationURL(in.Skill, in.Op, "validate"),
		InstanceID:  in.InstanceID,
		Multipart:   in.Op.Encoding == skill.EncodingMultipart || hasFileField(in.Op),
		SubmitLabel: in.Op.SubmitLabel,
		CanSubmit:   in.CanSubmit,
		InFlight:    in.InFlight,
		PreFilled:   in.PreFilled,
		Fields:      make([]viewmodel.FieldView, 0, len(in.Op.Fields)),

		ValidateParams:  validateParams(in.Op),
		FileCountPrefix: FileCountPrefix,
	}
	if fv.SubmitLabel == "" {
		fv.SubmitLabel = in.Op.Name
	}
	for _, f := range in.Op.Fields {
		fv.Fields = append(fv.Fields, buildFieldView(f, in.Values, in.Loaded, in.Errors[f.Name]))
	}
	return fv
}

// validateParams returns "*" or "not a,b" naming the file inputs of op.
func validateParams(op *skill.Operation) string {
	var names []string
	for _, f := range op.Fields {
		if f.IsFile() {
			names = append(names, f.Name)
		}
	}
	if len(names) == 0 {
		return "*"
	}
	return "not " + strings.Join(names, ",")
}

func hasFileField(op *skill.Operation) bool {
	for _, f := range op.Fields {
		if f.IsFile() {
			return true
		}
	}
	return false
}

func buildFieldView(f skill.Field, v skill.Values, loaded skill.OptionSet, errMsg string) viewmodel.FieldView {
	view := viewmodel.FieldView{Field: f, Error: errMsg}

	value := f.Default
	if v.Form != nil && v.Form.Has(f.Name) {
		value = v.Form.Get(f.Name)
	}
	view.Value = value

	switch f.Kind {
	case skill.KindBool:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "on", "true", "1", "yes":
			view.Checked = true
		}
	case skill.KindSelect:
		view.Options = f.Options
		if len(view.Options) == 0 {
			view.Options = loaded[f.Name]
		}
	case skill.KindGroup:
		view.Rows = groupRows(f, v)
		for _, sub := range f.Subfields {
			view.Subviews = append(view.Subviews, viewmodel.FieldView{Field: sub})
		}
	}
	return view
}

// groupRows returns the posted rows of a group field, or a single blank row.
func groupRows(f skill.Field, v skill.Values) []map[string]string {
	width := 0
	for _, sub := range f.Subfields {
		width = max(width, len(v.Form[f.Name+"."+sub.Name]))
	}
	if width == 0 {
		width = 1
	}
	rows := make([]map[string]string, width)
	for i := range rows {
		row := make(map[string]string, len(f.Subfields))
		for _, sub := range f.Subfields {
			if vals := v.Form[f.Name+"."+sub.Name]; i < len(vals) {
				row[sub.Name] = vals[i]
			}
		}
		rows[i] = row
	}
	return rows
}

// operationTabs lists the operations of a multi-operation skill.
func operationTabs(sk *skill.Skill, active *skill.Operation) []viewmodel.OperationTab {
	if len(sk.Operations) < 2 {
		return nil
	}
	tabs := make([]viewmodel.OperationTab, 0, len(sk.Operations))
	for i := range sk.Operations {
		op := &sk.Operations[i]
		tabs = append(tabs, viewmodel.OperationTab{
			ID:          op.ID,
			Name:        op.Name,
			Icon:        op.Icon,
			Description: op.Description,
			URL:         sk.Route() + "?op=" + url.QueryEscape(op.ID),
			Active:      active != nil && op.ID == active.ID,
		})
	}
	return tabs
}
