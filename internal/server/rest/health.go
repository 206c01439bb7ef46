package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

type memoryUsage struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"totalAlloc"`
	Sys        uint64 `json:"sys"`
	HeapInuse  uint64 `json:"heapInuse"`
	NumGC      uint32 `json:"numGC"`
	Goroutines int    `json:"goroutines"`
}

type healthReport struct {
	Status      string      `json:"status"`
	Message     string      `json:"message"`
	Environment string      `json:"environment"`
	Timestamp   string      `json:"timestamp"`
	Uptime      string      `json:"uptime"`
	Store       string      `json:"store"`
	MemoryUsage memoryUsage `json:"memoryUsage"`
}

// formatUptime renders d as "Xh Ym Zs".
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%dh %dm %ds", secs/3600, (secs%3600)/60, secs%60)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	now := s.now()
	rep := healthReport{
		Status:      "success",
		Message:     "Server is healthy",
		Environment: s.opts.Environment,
		Timestamp:   now.UTC().Format(time.RFC3339Nano),
		Uptime:      formatUptime(now.Sub(s.started)),
		Store:       "up",
		MemoryUsage: memoryUsage{
			Alloc:      ms.Alloc,
			TotalAlloc: ms.TotalAlloc,
			Sys:        ms.Sys,
			HeapInuse:  ms.HeapInuse,
			NumGC:      ms.NumGC,
			Goroutines: runtime.NumGoroutine(),
		},
	}
	status := http.StatusOK

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.log.Warn(r.Context(), "health: store unreachable", "error", err)
			rep.Status = "error"
			rep.Message = "Store unreachable"
			rep.Store = "down"
			status = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rep)
}
