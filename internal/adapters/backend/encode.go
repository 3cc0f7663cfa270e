package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/skilldeck/skilldeck/internal/domain/job"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeBody renders cfg for the wire. JSON bodies carry Params as an object;
// multipart bodies carry one part per file plus one text part per parameter.
func encodeBody(enc skill.Encoding, cfg job.Config) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	if enc != skill.EncodingMultipart {
		params := cfg.Params
		if params == nil {
			params = map[string]any{}
		}
		if err := json.NewEncoder(buf).Encode(params); err != nil {
			return nil, "", err
		}
		return buf, "application/json", nil
	}

	w := multipart.NewWriter(buf)
	for _, f := range cfg.Files {
		if err := writeFilePart(w, f); err != nil {
			return nil, "", err
		}
	}
	keys := make([]string, 0, len(cfg.Params))
	for k := range cfg.Params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		for _, v := range formValues(cfg.Params[k]) {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", k, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, f job.File) error {
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(f.Field), quoteEscaper.Replace(f.Name)))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part %s: %w", f.Field, err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return fmt.Errorf("write part %s: %w", f.Field, err)
	}
	return nil
}

// formValues renders a parameter as form text. Lists become repeated values
// and objects are sent as JSON.
func formValues(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case bool:
		return []string{strconv.FormatBool(t)}
	case int:
		return []string{strconv.Itoa(t)}
	case int64:
		return []string{strconv.FormatInt(t, 10)}
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, formValues(item)...)
		}
		return out
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return []string{fmt.Sprint(t)}
		}
		return []string{string(b)}
	}
}

// dispositionFilename returns the attachment filename from a
// Content-Disposition header, or "" when there is none.
func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := params["filename"]
	if name == "" {
		return ""
	}
	return skill.SanitizeFilename(path.Base(strings.ReplaceAll(name, "\\", "/")))
}
