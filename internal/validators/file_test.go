package validators

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
)

// pngHeader is the 8-byte PNG signature followed by an IHDR chunk start,
// enough for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func fileHeader(t *testing.T, filename, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="idDocument"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("parse form: %v", err)
	}
	return req.MultipartForm.File["idDocument"][0]
}

func TestImageValidatorAcceptsPNG(t *testing.T) {
	fh := fileHeader(t, "id.png", "image/png", pngHeader)

	code, img, err := ImageValidator(fh, 1024)
	if err != nil {
		t.Fatalf("expected valid image, got %d %v", code, err)
	}
	if img.ContentType != "image/png" {
		t.Fatalf("expected sniffed image/png, got %q", img.ContentType)
	}
	if !bytes.Equal(img.Data, pngHeader) {
		t.Fatal("expected data to be read fully")
	}
}

func TestImageValidatorRejects(t *testing.T) {
	tests := []struct {
		name     string
		ct       string
		data     []byte
		max      int64
		wantCode int
		wantErr  error
	}{
		{"declared pdf", "application/pdf", pngHeader, 1024, http.StatusBadRequest, ErrFileTypeUnsupported},
		{"spoofed image", "image/png", []byte("plain text pretending"), 1024, http.StatusBadRequest, ErrFileTypeUnsupported},
		{"too large", "image/png", append(append([]byte{}, pngHeader...), make([]byte, 64)...), 32, http.StatusRequestEntityTooLarge, ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fh := fileHeader(t, "id.png", tt.ct, tt.data)
			code, _, err := ImageValidator(fh, tt.max)
			if err != tt.wantErr {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if code != tt.wantCode {
				t.Fatalf("expected code %d, got %d", tt.wantCode, code)
			}
		})
	}

	if code, _, err := ImageValidator(nil, 10); err != ErrNoFile || code != http.StatusBadRequest {
		t.Fatalf("expected ErrNoFile, got %d %v", code, err)
	}
}
