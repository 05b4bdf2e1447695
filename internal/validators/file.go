package validators

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNoFile              = errors.New("No file uploaded")
	ErrFileTooLarge        = errors.New("File too large")
	ErrFileTypeUnsupported = errors.New("Only image files are allowed")
	ErrFileNameTooLong     = errors.New("File name is too long")
)

const maxFileNameSize = 200

// UploadedImage is a validated upload read fully into memory.
type UploadedImage struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ImageValidator checks an uploaded ID document: declared and sniffed type
// must be image/*, and the payload must not exceed maxSize bytes. The returned
// status code is meant for the HTTP response when err is non-nil.
func ImageValidator(fh *multipart.FileHeader, maxSize int64) (int, *UploadedImage, error) {
	if fh == nil {
		return http.StatusBadRequest, nil, ErrNoFile
	}

	// Header first: cheap, and enough for honest clients.
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		return http.StatusBadRequest, nil, ErrFileTypeUnsupported
	}
	if len(fh.Filename) > maxFileNameSize {
		return http.StatusBadRequest, nil, ErrFileNameTooLong
	}
	if fh.Size > maxSize {
		return http.StatusRequestEntityTooLarge, nil, ErrFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return http.StatusInternalServerError, nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(f, maxSize+1))
	if err != nil {
		return http.StatusInternalServerError, nil, err
	}
	if n > maxSize {
		return http.StatusRequestEntityTooLarge, nil, ErrFileTooLarge
	}

	mime := mimetype.Detect(buf.Bytes())
	if !strings.HasPrefix(mime.String(), "image/") {
		return http.StatusBadRequest, nil, ErrFileTypeUnsupported
	}

	return 0, &UploadedImage{
		Filename:    fh.Filename,
		ContentType: mime.String(),
		Data:        buf.Bytes(),
	}, nil
}
