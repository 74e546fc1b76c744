package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
)

const (
	// maxFormBytes bounds bodies without file parts.
	maxFormBytes = 1 << 20
	// multipartMemory is the part of a multipart body kept in memory;
	// the rest spills to temporary files.
	multipartMemory = 8 << 20
)

// fileFields are the multipart field names accepted for media uploads.
var fileFields = []string{"file", "image", "media"}

// input is a parsed request body.
type input struct {
	values map[string]string
	file   *multipart.FileHeader
	form   *multipart.Form
}

// cleanup removes temporary files of a multipart body.
func (in *input) cleanup() {
	if in.form != nil {
		_ = in.form.RemoveAll()
	}
}

// parseInput reads a JSON, urlencoded or multipart body. maxUpload bounds
// the size of multipart bodies.
func parseInput(w http.ResponseWriter, r *http.Request, maxUpload int64) (*input, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch ct {
	case "application/json":
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		return parseJSON(r)
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxUpload+maxFormBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, wrapParseError(err)
		}
		in := &input{values: firstValues(r.MultipartForm.Value), form: r.MultipartForm}
		for _, name := range fileFields {
			if files := r.MultipartForm.File[name]; len(files) > 0 {
				in.file = files[0]
				break
			}
		}
		return in, nil
	default:
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			return nil, wrapParseError(err)
		}
		return &input{values: firstValues(r.PostForm)}, nil
	}
}

func parseJSON(r *http.Request) (*input, error) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, wrapParseError(err)
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			values[k] = val
		case float64, bool:
			values[k] = fmt.Sprint(val)
		}
	}
	return &input{values: values}, nil
}

func wrapParseError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return err
	}
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

func firstValues(form map[string][]string) map[string]string {
	out := make(map[string]string, len(form))
	for k, vs := range form {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
