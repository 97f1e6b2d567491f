package openai

import (
	"bytes"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// Multipart is a form-data body with plain fields and at most one file,
// read either from FilePath or from Data under FileName.
type Multipart struct {
	Fields    map[string]string
	FileField string
	FilePath  string
	FileName  string
	Data      []byte
}

func (m *Multipart) encode() (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range m.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", Unexpected("write form field "+k, err)
		}
	}
	field := m.FileField
	if field == "" {
		field = "file"
	}
	switch {
	case m.FilePath != "":
		f, err := os.Open(m.FilePath)
		if err != nil {
			return nil, "", Validationf("open %s: %v", m.FilePath, err)
		}
		defer f.Close()
		part, err := w.CreateFormFile(field, filepath.Base(m.FilePath))
		if err != nil {
			return nil, "", Unexpected("create form file", err)
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, "", Unexpected("copy "+m.FilePath, err)
		}
	case m.Data != nil:
		part, err := w.CreateFormFile(field, m.FileName)
		if err != nil {
			return nil, "", Unexpected("create form file", err)
		}
		if _, err := part.Write(m.Data); err != nil {
			return nil, "", Unexpected("write "+m.FileName, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", Unexpected("close multipart writer", err)
	}
	return buf, w.FormDataContentType(), nil
}
