package domain

import (
	"encoding/json"
	"time"
)

// LogEntry is one line of the diagnostics trail.
type LogEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

func (e LogEntry) String() string {
	return "[" + e.At.Format(time.TimeOnly) + "] " + e.Message
}

// SystemInfo is the optional payload reported by the backend health endpoint.
// Memory is kept verbatim since backends report it either as text or as an object.
type SystemInfo struct {
	OS          string          `json:"os,omitempty"`
	NodeVersion string          `json:"node_version,omitempty"`
	BrowserPath string          `json:"browser_path,omitempty"`
	Memory      json.RawMessage `json:"memory,omitempty"`
}

// HostInfo describes the machine the client runs on.
type HostInfo struct {
	Hostname        string  `json:"hostname"`
	OS              string  `json:"os"`
	Platform        string  `json:"platform"`
	PlatformVersion string  `json:"platform_version"`
	MemoryTotal     uint64  `json:"memory_total"`
	MemoryUsed      uint64  `json:"memory_used"`
	MemoryUsedPct   float64 `json:"memory_used_pct"`
}

// ProbeImage is what the proxy probe materialized from an image response.
type ProbeImage struct {
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Format      string `json:"format"`
}
