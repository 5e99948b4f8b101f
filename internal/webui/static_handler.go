package webui

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// boardDir holds the static departure board frontend, deployed next to the
// binary. The board is plain HTML/JS polling the departures API.
const boardDir = "board"

var boardExtensions = map[string]bool{
	".html": true, ".css": true, ".js": true,
	".png": true, ".jpg": true, ".jpeg": true, ".svg": true,
	".ico": true, ".woff2": true,
}

var errAssetRejected = errors.New("asset rejected")

// resolveBoardAsset maps a request path to an absolute file path inside
// boardDir, rejecting traversal attempts and unexpected file types.
func resolveBoardAsset(requestPath string) (string, error) {
	fileName := filepath.Base(requestPath)
	if fileName == "." || fileName == "/" || fileName == "board" {
		fileName = "index.html"
	}

	if !boardExtensions[strings.ToLower(filepath.Ext(fileName))] {
		return "", errAssetRejected
	}
	if strings.Contains(fileName, "..") || strings.ContainsAny(fileName, `/\`) {
		return "", errAssetRejected
	}

	root, err := filepath.Abs(boardDir)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(filepath.Join(boardDir, fileName))
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", errAssetRejected
	}
	return absPath, nil
}

func (webUI *WebUI) boardHandler(w http.ResponseWriter, r *http.Request) {
	absPath, err := resolveBoardAsset(r.URL.Path)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	stat, err := os.Stat(absPath)
	if err != nil || stat.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	http.ServeFile(w, r, absPath)
}
