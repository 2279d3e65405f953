package storage

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// FolderMimeType is reported for folders.
const FolderMimeType = "httpd/unix-directory"

func detectMIME(abs string, isDir bool) string {
	if isDir {
		return FolderMimeType
	}

	if byExt := mime.TypeByExtension(filepath.Ext(abs)); byExt != "" {
		return byExt
	}

	file, err := os.Open(abs)
	if err != nil {
		return "application/octet-stream"
	}
	defer file.Close()

	buffer := make([]byte, 512)
	n, _ := file.Read(buffer)
	if n == 0 {
		return "application/octet-stream"
	}

	return http.DetectContentType(buffer[:n])
}
