package handlers

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/storage"
)

// TargetLookup resolves a target by name. *catalog.Catalog satisfies it.
type TargetLookup interface {
	Target(name string) (*catalog.Target, bool)
}

// OutputHandler serves the published outputs of targets.
type OutputHandler struct {
	sandbox   *storage.Sandbox
	outputDir string
	targets   TargetLookup
	logger    *slog.Logger
}

// NewOutputHandler creates a handler serving files below outputDir, a
// sandbox-relative directory.
func NewOutputHandler(sandbox *storage.Sandbox, outputDir string, targets TargetLookup) *OutputHandler {
	return &OutputHandler{
		sandbox:   sandbox,
		outputDir: outputDir,
		targets:   targets,
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger for the handler.
func (h *OutputHandler) WithLogger(logger *slog.Logger) *OutputHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// RegisterFileServer registers the file routes:
//   - GET /output/{target}: an M3U playlist
//   - GET /output/{target}/*: a file of an Xtream or STRM output directory
func (h *OutputHandler) RegisterFileServer(router chi.Router) {
	router.Get("/output/{target}", h.serve)
	router.Get("/output/{target}/*", h.serve)
}

func (h *OutputHandler) serve(w http.ResponseWriter, r *http.Request) {
	target, ok := h.targets.Target(chi.URLParam(r, "target"))
	if !ok || !target.Enabled {
		http.NotFound(w, r)
		return
	}

	root := filepath.Join(h.outputDir, target.Filename)
	rel := root
	if sub := chi.URLParam(r, "*"); sub != "" {
		unescaped, err := url.PathUnescape(sub)
		if err != nil || target.Output == catalog.OutputM3U {
			http.NotFound(w, r)
			return
		}
		sub = unescaped
		rel = filepath.Join(root, filepath.FromSlash(path.Clean("/"+sub)))
	}
	if rel != root && !strings.HasPrefix(rel, root+string(filepath.Separator)) {
		http.NotFound(w, r)
		return
	}

	info, err := h.sandbox.Stat(rel)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if info.IsDir() {
		h.serveListing(w, r, rel)
		return
	}

	f, err := h.sandbox.Open(rel)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer f.Close()

	if ct := contentType(info.Name(), target.Output); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// serveListing writes the entries of an output directory as a JSON array of
// names; directories carry a trailing slash.
func (h *OutputHandler) serveListing(w http.ResponseWriter, r *http.Request, rel string) {
	entries, err := h.sandbox.List(rel)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *OutputHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, storage.ErrEscapesSandbox) {
		http.NotFound(w, r)
		return
	}
	h.logger.ErrorContext(r.Context(), "failed to read output",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func contentType(name string, output catalog.OutputKind) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".m3u", ".m3u8":
		return "audio/x-mpegurl"
	case ".json":
		return "application/json"
	case ".strm":
		return "text/plain; charset=utf-8"
	}
	if output == catalog.OutputM3U {
		return "audio/x-mpegurl"
	}
	return ""
}
