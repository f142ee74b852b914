package app

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"edustore/internal/util"
	"edustore/pkg/storage"
)

// FileUpload is an uploaded file held in memory, matching the multipart
// handling in the HTTP layer.
type FileUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

var allowedUploadTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

func validateUpload(f *FileUpload) error {
	if f == nil || len(f.Data) == 0 {
		return validationErr("File is empty")
	}
	if !allowedUploadTypes[strings.ToLower(strings.TrimSpace(f.ContentType))] {
		return validationErr("Only image and PDF files are allowed")
	}
	return nil
}

// uploadObject stores the file under the folder and returns (url, key).
func (a *App) uploadObject(ctx context.Context, folder string, f *FileUpload) (string, string, error) {
	if err := validateUpload(f); err != nil {
		return "", "", err
	}
	key := storage.BuildKey(folder, f.Name)
	url, err := a.objects.Put(ctx, key, bytes.NewReader(f.Data), int64(len(f.Data)), f.ContentType)
	if err != nil {
		return "", "", fmt.Errorf("upload %s: %w", folder, err)
	}
	return url, key, nil
}

// deleteObject removes a stored object; failures are logged and handed to the
// cleanup queue so deletion still happens eventually.
func (a *App) deleteObject(ctx context.Context, key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	delCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.objects.Delete(delCtx, key); err == nil {
		return
	} else {
		util.LoggerFromContext(ctx).Warn("object delete failed", "key", key, "error", err)
	}
	if a.cleanup == nil {
		return
	}
	if err := a.cleanup.Enqueue(delCtx, key); err != nil {
		util.LoggerFromContext(ctx).Error("cleanup enqueue failed", "key", key, "error", err)
	}
}

// pdfPageCount parses the document and counts pages; 0 when unparseable.
func pdfPageCount(data []byte) int {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0
	}
	return reader.NumPage()
}
