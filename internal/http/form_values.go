package httpx

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/skilldeck/skilldeck/internal/domain/job"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
	apperrors "github.com/skilldeck/skilldeck/internal/errors"
)

const (
	// defaultMaxUploadBytes caps a form post when no limit is configured.
	defaultMaxUploadBytes = 64 << 20
	// multipartMemory is how much of a multipart body stays in memory before
	// spilling to temp files.
	multipartMemory = 32 << 20
)

// parseToolForm reads the posted form of op into skill.Values. Uploads are
// read fully into memory; the whole body is capped at maxBytes.
func parseToolForm(w http.ResponseWriter, r *http.Request, op *skill.Operation, maxBytes int64) (skill.Values, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	values := skill.NewValues()
	tooLarge := apperrors.Validation(fmt.Sprintf("Upload is larger than the %s limit.", humanLimit(maxBytes)))
	if r.ContentLength > maxBytes {
		return values, tooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := parseRequestForm(r); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return values, tooLarge
		}
		return values, apperrors.Validation("Invalid form submission.")
	}

	for k, vs := range r.PostForm {
		if k == InstanceField || k == DefaultCSRFCookieName || strings.HasPrefix(k, FileCountPrefix) {
			continue
		}
		values.Form[k] = vs
	}

	if r.MultipartForm == nil {
		return values, nil
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	for _, f := range op.Fields {
		if !f.IsFile() {
			continue
		}
		for _, fh := range r.MultipartForm.File[f.Name] {
			file, err := readUpload(fh)
			if err != nil {
				return values, apperrors.ValidationField(f.Name, "Could not read "+fh.Filename)
			}
			file.Field = f.Name
			values.AddFile(f.Name, file)
			if f.Kind == skill.KindFile {
				break
			}
		}
	}
	return values, nil
}

// readFileCounts applies the selected-file counts posted by the validate
// request. Malformed or negative counts are ignored.
func readFileCounts(r *http.Request, op *skill.Operation, v *skill.Values) {
	for _, f := range op.Fields {
		if !f.IsFile() {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue(FileCountPrefix + f.Name)))
		if err != nil || n <= 0 {
			continue
		}
		if f.Kind == skill.KindFile {
			n = 1
		}
		v.SetFileCount(f.Name, n)
	}
}

func parseRequestForm(r *http.Request) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		return r.ParseMultipartForm(multipartMemory)
	}
	return r.ParseForm()
}

func readUpload(fh *multipart.FileHeader) (job.File, error) {
	src, err := fh.Open()
	if err != nil {
		return job.File{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return job.File{}, err
	}

	ct := fh.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	return job.File{Name: fh.Filename, ContentType: ct, Data: data}, nil
}

func humanLimit(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%d byte", n)
	}
}

// instanceFrom returns the form instance id posted by the page, trimmed.
func instanceFrom(r *http.Request) string {
	if id := strings.TrimSpace(r.PostFormValue(InstanceField)); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(InstanceHeader))
}
