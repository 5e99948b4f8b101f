package webui

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/davecgh/go-spew/spew"

	"abfahrt.transitboard.org/internal/appconf"
	"abfahrt.transitboard.org/internal/transit"
)

//go:embed debug_index.html
var templateFS embed.FS

type debugData struct {
	Title string
	Pre   string
}

func writeDebugData(w http.ResponseWriter, title string, data interface{}) {
	content := spew.Sdump(data)
	w.Header().Set("Content-Type", "text/html")
	tmpl, err := template.ParseFS(templateFS, "debug_index.html")
	if err != nil {
		// Log the actual error server-side
		slog.Error("failed to parse debug template", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	dataStruct := debugData{
		Title: title,
		Pre:   content,
	}

	err = tmpl.Execute(w, dataStruct)
	if err != nil {
		slog.Error("failed to execute debug template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

type subscriptionDump struct {
	Subscription transit.Subscription
	Status       transit.Status
	Snapshot     *transit.Snapshot
}

func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Config.Env == appconf.Production {
		http.NotFound(w, r)
		return
	}
	dataType := r.URL.Query().Get("dataType")

	var data interface{}
	var title string

	switch dataType {
	case "subscriptions":
		var dumps []subscriptionDump
		for _, coordinator := range webUI.TransitManager.Coordinators() {
			dumps = append(dumps, subscriptionDump{
				Subscription: coordinator.Subscription(),
				Status:       coordinator.Status(),
			})
		}
		data = dumps
		title = "Subscriptions - Coordinator Health"
	case "snapshots":
		var dumps []subscriptionDump
		for _, coordinator := range webUI.TransitManager.Coordinators() {
			dumps = append(dumps, subscriptionDump{
				Subscription: coordinator.Subscription(),
				Snapshot:     coordinator.Snapshot(),
			})
		}
		data = dumps
		title = "Departure Snapshots"
	case "stations":
		counts, err := webUI.StationDB.TableCounts()
		if err != nil {
			data = map[string]string{"error": err.Error()}
		} else {
			data = map[string]interface{}{
				"tableCounts":  counts,
				"spatialIndex": webUI.StationDB.SpatialIndexSize(),
			}
		}
		title = "Station Directory"
	case "config":
		data = redactConfig(webUI.Config)
		title = "Configuration"
	default:
		data = map[string]string{
			"error": "Please use one of the following: subscriptions, snapshots, stations, config.",
		}
		title = "Choose a data type"
	}

	writeDebugData(w, title, data)
}

// redactConfig strips credentials before the config reaches the debug page.
func redactConfig(cfg appconf.Config) appconf.Config {
	if cfg.RNV.ClientSecret != "" {
		cfg.RNV.ClientSecret = "[redacted]"
	}
	if len(cfg.ApiKeys) > 0 {
		cfg.ApiKeys = []string{"[redacted]"}
	}
	return cfg
}
