package viewmodel

import "github.com/skilldeck/skilldeck/internal/domain/skill"

// OperationTab links one operation of a multi-operation skill.
type OperationTab struct {
	ID          string
	Name        string
	Icon        string
	Description string
	URL         string
	Active      bool
}

// FieldView is a catalog field with its current state.
type FieldView struct {
	skill.Field
	// Value is the text shown in the input (the default when untouched).
	Value   string
	Checked bool
	Options []skill.Option
	Error   string
	// Rows holds the values of a group field, one map per row. An untouched
	// group renders one empty row.
	Rows []map[string]string
	// Subviews are the subfield templates of a group.
	Subviews []FieldView
}

// HasError reports whether the field failed validation.
func (f FieldView) HasError() bool { return f.Error != "" }

// FormView is everything the skill form template needs.
type FormView struct {
	SkillID     string
	OperationID string
	Action      string
	ValidateURL string
	InstanceID  string
	Multipart   bool
	SubmitLabel string
	CanSubmit   bool
	InFlight    bool
	// PreFilled is set when the values came from an assistant hand-off.
	PreFilled bool
	Fields    []FieldView
	// ValidateParams is the hx-params filter of the validate request. It
	// leaves out file inputs, whose counts are posted under FileCountPrefix.
	ValidateParams  string
	FileCountPrefix string
}
