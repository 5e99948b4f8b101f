// Package webui serves the non-API surfaces: the debug data browser and the
// static departure board frontend.
package webui

import (
	"net/http"

	"abfahrt.transitboard.org/internal/app"
)

type WebUI struct {
	*app.Application
}

func NewWebUI(application *app.Application) *WebUI {
	return &WebUI{Application: application}
}

func (webUI *WebUI) SetRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /debug", webUI.debugIndexHandler)
	mux.HandleFunc("GET /board/", webUI.boardHandler)
}
