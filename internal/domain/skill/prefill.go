package skill

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ApplyPreFill turns assistant parameters into an operation choice and form
// values. Keys that match no field are ignored; the variant key selects the
// operation when it names one.
func (s *Skill) ApplyPreFill(preFill map[string]any) (*Operation, Values) {
	values := NewValues()
	op, ok := s.DefaultOperation()
	if !ok {
		return nil, values
	}
	if s.VariantKey != "" {
		if variant, ok := preFill[s.VariantKey].(string); ok {
			if chosen, ok := s.Operation(variant); ok {
				op = chosen
			}
		}
	}

	for key, raw := range preFill {
		if key == s.VariantKey {
			if f, ok := op.Field(key); !ok || f.IsFile() {
				continue
			}
		}
		for _, f := range op.Fields {
			if !f.Matches(key) || f.IsFile() {
				continue
			}
			setPreFill(&values, f, raw)
			break
		}
	}
	return op, values
}

// ValuesFrom converts a decoded JSON object into form values for o. It is
// the API counterpart of a form post; file fields cannot be set this way.
func (o *Operation) ValuesFrom(m map[string]any) Values {
	values := NewValues()
	for _, f := range o.Fields {
		if f.IsFile() {
			continue
		}
		for key, raw := range m {
			if f.Matches(key) {
				setPreFill(&values, f, raw)
				break
			}
		}
	}
	return values
}

func setPreFill(v *Values, f Field, raw any) {
	switch f.Kind {
	case KindGroup:
		rows, _ := raw.([]any)
		for _, r := range rows {
			row, ok := r.(map[string]any)
			if !ok {
				continue
			}
			for _, sub := range f.Subfields {
				v.Form.Add(f.Name+"."+sub.Name, scalarText(row[sub.Name]))
			}
		}
	case KindLines, KindCSV:
		sep := "\n"
		if f.Kind == KindCSV {
			sep = ", "
		}
		if list, ok := raw.([]any); ok {
			parts := make([]string, 0, len(list))
			for _, item := range list {
				parts = append(parts, scalarText(item))
			}
			v.Set(f.Name, strings.Join(parts, sep))
			return
		}
		v.Set(f.Name, scalarText(raw))
	case KindJSON:
		if s, ok := raw.(string); ok {
			v.Set(f.Name, s)
			return
		}
		b, err := json.MarshalIndent(raw, "", "  ")
		if err == nil {
			v.Set(f.Name, string(b))
		}
	default:
		v.Set(f.Name, scalarText(raw))
	}
}

func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
