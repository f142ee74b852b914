package server

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"edustore/internal/app"
)

// parseForm accepts either multipart/form-data (for file uploads) or JSON,
// normalizing both into simple field access.
type formRequest struct {
	r         *http.Request
	multipart bool
	jsonBody  map[string]any
}

func (s *Server) parseForm(r *http.Request) (*formRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(nil, r.Body, s.maxUploadBytes)
		if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
			return nil, err
		}
		return &formRequest{r: r, multipart: true}, nil
	}
	body := map[string]any{}
	if err := decodeJSON(r, &body); err != nil && err != io.EOF {
		return nil, err
	}
	return &formRequest{r: r, jsonBody: body}, nil
}

// strField returns a pointer when the field was present, nil otherwise.
func (f *formRequest) strField(name string) *string {
	if f.multipart {
		values, ok := f.r.MultipartForm.Value[name]
		if !ok || len(values) == 0 {
			return nil
		}
		v := values[0]
		return &v
	}
	raw, ok := f.jsonBody[name]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return &v
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	default:
		return nil
	}
}

// intField parses the field as an integer; absent or unparseable is nil.
func (f *formRequest) intField(name string) *int {
	if f.multipart {
		values, ok := f.r.MultipartForm.Value[name]
		if !ok || len(values) == 0 {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(values[0]))
		if err != nil {
			return nil
		}
		return &n
	}
	raw, ok := f.jsonBody[name]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case float64:
		n := int(v)
		return &n
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// file reads the named upload fully into memory. Absent files are nil.
func (f *formRequest) file(name string) (*app.FileUpload, error) {
	if !f.multipart {
		return nil, nil
	}
	file, header, err := f.r.FormFile(name)
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &app.FileUpload{
		Name:        header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

func pathSuffix(r *http.Request, prefix string) string {
	return strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
}
