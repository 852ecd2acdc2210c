package handlers

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/storage"
	"github.com/jmylchreest/tvfilter/pkg/xtream"
)

// XtreamHandler answers the catalog actions of player_api.php from the
// published collections of an Xtream target.
type XtreamHandler struct {
	sandbox   *storage.Sandbox
	outputDir string
	targets   TargetLookup
	logger    *slog.Logger
	now       func() time.Time
}

// NewXtreamHandler creates a new Xtream handler.
func NewXtreamHandler(sandbox *storage.Sandbox, outputDir string, targets TargetLookup) *XtreamHandler {
	return &XtreamHandler{
		sandbox:   sandbox,
		outputDir: outputDir,
		targets:   targets,
		logger:    slog.Default(),
		now:       time.Now,
	}
}

// WithLogger sets the logger for the handler.
func (h *XtreamHandler) WithLogger(logger *slog.Logger) *XtreamHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// RegisterRoutes registers GET /xtream/{target}/player_api.php.
func (h *XtreamHandler) RegisterRoutes(router chi.Router) {
	router.Get("/xtream/{target}/player_api.php", h.playerAPI)
}

func (h *XtreamHandler) playerAPI(w http.ResponseWriter, r *http.Request) {
	target, ok := h.targets.Target(chi.URLParam(r, "target"))
	if !ok || !target.Enabled || target.Output != catalog.OutputXtream {
		http.NotFound(w, r)
		return
	}

	query := r.URL.Query()
	action := query.Get("action")
	if action == "" {
		writeJSON(w, http.StatusOK, h.authInfo(r))
		return
	}

	cluster, categories, ok := xtream.ClusterForAction(action)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported action " + action})
		return
	}

	file := xtream.StreamsFile(cluster)
	if categories {
		file = xtream.CategoriesFile(cluster)
	}
	data, err := h.sandbox.ReadFile(filepath.Join(h.outputDir, target.Filename, file))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to read xtream collection",
			slog.String("target", target.Name),
			slog.String("file", file),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if id := query.Get("category_id"); id != "" && !categories {
		data, err = filterByCategory(data, id)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "malformed xtream collection",
				slog.String("target", target.Name),
				slog.String("file", file),
				slog.String("error", err.Error()),
			)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// authInfo answers the action-less login call players make first. The
// server is read-only, so every caller is accepted.
func (h *XtreamHandler) authInfo(r *http.Request) xtream.AuthInfo {
	now := h.now()
	host, port, err := net.SplitHostPort(r.Host)
	if err != nil {
		host = r.Host
		port = ""
	}
	portNum, _ := strconv.Atoi(port)
	protocol := "http"
	if r.TLS != nil {
		protocol = "https"
	}

	query := r.URL.Query()
	return xtream.AuthInfo{
		UserInfo: xtream.UserInfo{
			Username:             query.Get("username"),
			Password:             query.Get("password"),
			Auth:                 1,
			Status:               "Active",
			AllowedOutputFormats: []string{"ts", "m3u8"},
		},
		ServerInfo: xtream.ServerInfo{
			URL:            host,
			Port:           xtream.FlexInt(portNum),
			ServerProtocol: protocol,
			Timezone:       now.Location().String(),
			TimestampNow:   xtream.FlexInt(now.Unix()),
			TimeNow:        now.Format(time.DateTime),
		},
	}
}

// filterByCategory keeps the items of a JSON array whose category_id equals
// id. Items are copied verbatim.
func filterByCategory(data []byte, id string) ([]byte, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	kept := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		var probe struct {
			CategoryID xtream.FlexString `json:"category_id"`
		}
		if err := json.Unmarshal(item, &probe); err != nil {
			return nil, err
		}
		if probe.CategoryID.String() == id {
			kept = append(kept, item)
		}
	}
	return json.Marshal(kept)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
