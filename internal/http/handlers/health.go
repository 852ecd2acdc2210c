// Package handlers provides the HTTP handlers of the tvfilter server.
package handlers

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunState reports whether a pipeline run is active.
type RunState interface {
	Running() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        Pinger
	runs      RunState
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithDB sets the database checked by the readiness probe.
func (h *HealthHandler) WithDB(db Pinger) *HealthHandler {
	h.db = db
	return h
}

// WithRuns sets the source of the run state.
func (h *HealthHandler) WithRuns(runs RunState) *HealthHandler {
	h.runs = runs
	return h
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// HealthResponse describes the service and the host it runs on.
type HealthResponse struct {
	Status        string            `json:"status" doc:"healthy or degraded"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	RunActive     bool              `json:"run_active"`
	CPU           CPUInfo           `json:"cpu"`
	Memory        MemoryInfo        `json:"memory"`
	Checks        map[string]string `json:"checks"`
}

// CPUInfo holds load averages.
type CPUInfo struct {
	Cores     int     `json:"cores"`
	Load1Min  float64 `json:"load_1min"`
	Load5Min  float64 `json:"load_5min"`
	Load15Min float64 `json:"load_15min"`
}

// MemoryInfo holds system and process memory figures in megabytes.
type MemoryInfo struct {
	TotalMB     float64 `json:"total_mb"`
	AvailableMB float64 `json:"available_mb"`
	ProcessMB   float64 `json:"process_mb"`
	GoHeapMB    float64 `json:"go_heap_mb"`
}

// ProbeInput is the input of the liveness and readiness probes.
type ProbeInput struct{}

// ProbeOutput is the output of the liveness and readiness probes.
type ProbeOutput struct {
	Body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components,omitempty"`
	}
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/api/v1/health",
		Summary:     "Health check",
		Description: "Returns the service status with host load and memory figures",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getLivez",
		Method:      "GET",
		Path:        "/livez",
		Summary:     "Liveness probe",
		Tags:        []string{"System"},
	}, h.GetLivez)

	huma.Register(api, huma.Operation{
		OperationID: "getReadyz",
		Method:      "GET",
		Path:        "/readyz",
		Summary:     "Readiness probe",
		Description: "Reports ready once the database answers",
		Tags:        []string{"System"},
	}, h.GetReadyz)
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	dbStatus := h.databaseStatus(ctx)
	status := "healthy"
	if dbStatus == "error" {
		status = "degraded"
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:        status,
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			RunActive:     h.runs != nil && h.runs.Running(),
			CPU:           cpuInfo(),
			Memory:        memoryInfo(ctx),
			Checks:        map[string]string{"database": dbStatus},
		},
	}, nil
}

// GetLivez always reports ok while the process serves requests.
func (h *HealthHandler) GetLivez(_ context.Context, _ *ProbeInput) (*ProbeOutput, error) {
	out := &ProbeOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// GetReadyz reports ready when the database is reachable.
func (h *HealthHandler) GetReadyz(ctx context.Context, _ *ProbeInput) (*ProbeOutput, error) {
	out := &ProbeOutput{}
	dbStatus := h.databaseStatus(ctx)
	out.Body.Components = map[string]string{"database": dbStatus}
	if dbStatus == "ok" {
		out.Body.Status = "ready"
	} else {
		out.Body.Status = "not_ready"
	}
	return out, nil
}

func (h *HealthHandler) databaseStatus(ctx context.Context) string {
	if h.db == nil {
		return "not_configured"
	}
	if err := h.db.Ping(ctx); err != nil {
		return "error"
	}
	return "ok"
}

func cpuInfo() CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}
	if avg, err := load.Avg(); err == nil && avg != nil {
		info.Load1Min = avg.Load1
		info.Load5Min = avg.Load5
		info.Load15Min = avg.Load15
	}
	return info
}

const bytesPerMB = 1024 * 1024

func memoryInfo(ctx context.Context) MemoryInfo {
	var info MemoryInfo
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		info.TotalMB = float64(vm.Total) / bytesPerMB
		info.AvailableMB = float64(vm.Available) / bytesPerMB
	}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil { //nolint:gosec // G115: pids fit in int32
		if rss, err := proc.MemoryInfoWithContext(ctx); err == nil && rss != nil {
			info.ProcessMB = float64(rss.RSS) / bytesPerMB
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	info.GoHeapMB = float64(ms.HeapAlloc) / bytesPerMB
	return info
}
