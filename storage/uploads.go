package storage

import (
	"io"
	"log"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Booking documents are stored on local disk and referenced by a path
// relative to the server root, e.g. "uploads/ab12cd34.pdf". The HTTP layer
// serves the directory statically under /uploads.

var uploadDir = "uploads"

func InitializeUploads() {
	if dir := os.Getenv("UPLOAD_DIR"); dir != "" {
		uploadDir = dir
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		log.Panic("could not create upload directory: " + err.Error())
	}
}

func UploadDir() string { return uploadDir }

// SaveUploadedFile writes one multipart file under the given generated name
// (the original extension is kept) and returns the recorded relative path.
func SaveUploadedFile(fh *multipart.FileHeader, name string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	filename := name + strings.ToLower(path.Ext(fh.Filename))
	dst, err := os.Create(filepath.Join(uploadDir, filename))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", err
	}

	return path.Join("uploads", filename), nil
}

// RemoveUploadedFile deletes a stored file given its recorded relative path.
// Used for compensating cleanup when a request fails after a partial write.
func RemoveUploadedFile(relPath string) {
	if relPath == "" {
		return
	}
	os.Remove(filepath.Join(uploadDir, filepath.Base(relPath)))
}
