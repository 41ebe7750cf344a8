package validators

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrFileTooLarge        = errors.New("File too large")
	ErrFileNameTooLong     = errors.New("File name is too long")
	ErrFileNotImage        = errors.New("Only image files are allowed")
	ErrFileTypeUnsupported = errors.New("Only JPG, JPEG, and PNG files are allowed")
	ErrNoFile              = errors.New("No file uploaded")
)

const maxFileNameSize = 255

var allowedImageTypes = []string{"image/jpeg", "image/jpg", "image/png"}

// ImageValidator checks an uploaded image. The declared content type is
// checked first, then the real type is sniffed from the file contents. On
// success the opened file is returned rewound together with the detected
// mime type, the caller has to close it.
func ImageValidator(fh *multipart.FileHeader, maxSize int64) (int, multipart.File, string, error) {
	if fh == nil {
		return http.StatusBadRequest, nil, "", ErrNoFile
	}

	ct := strings.ToLower(fh.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "image/") {
		return http.StatusBadRequest, nil, "", ErrFileNotImage
	}

	if !slices.Contains(allowedImageTypes, ct) {
		return http.StatusBadRequest, nil, "", ErrFileTypeUnsupported
	}

	if len(fh.Filename) > maxFileNameSize {
		return http.StatusBadRequest, nil, "", ErrFileNameTooLong
	}

	if fh.Size > maxSize {
		return http.StatusBadRequest, nil, "", fmt.Errorf("%w. Maximum size is %dMB", ErrFileTooLarge, maxSize>>20)
	}

	f, err := fh.Open()
	if err != nil {
		return http.StatusInternalServerError, nil, "", err
	}

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return http.StatusInternalServerError, nil, "", err
	}

	if !mime.Is("image/jpeg") && !mime.Is("image/png") {
		f.Close()
		return http.StatusBadRequest, nil, "", ErrFileTypeUnsupported
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return http.StatusInternalServerError, nil, "", err
	}

	return 0, f, mime.String(), nil
}
