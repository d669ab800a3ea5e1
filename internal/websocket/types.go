package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/smartblur/smartblur/internal/classify"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeUpload is sent when a new image finishes OCR
	EventTypeUpload EventType = "upload"
	// EventTypeDetection is sent when auto-detect classifies regions
	EventTypeDetection EventType = "detection"
	// EventTypeRedaction is sent for toggle/bulk/export interactions
	EventTypeRedaction EventType = "redaction"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	SessionID string      `json:"session_id,omitempty"`
}

// UploadEvent describes a completed upload and OCR pass
type UploadEvent struct {
	SessionID   string `json:"session_id"`
	ImageName   string `json:"image_name"`
	RegionCount int    `json:"region_count"`
	CacheHit    bool   `json:"cache_hit,omitempty"`
}

// DetectionEvent summarizes what auto-detect found. Region text is never
// included, only categories and counts.
type DetectionEvent struct {
	SessionID  string              `json:"session_id"`
	ImageName  string              `json:"image_name"`
	Categories []classify.Category `json:"categories"`
	Blurred    int                 `json:"blurred"`
}

// RedactionEvent describes a user interaction with the blurred set
type RedactionEvent struct {
	SessionID   string `json:"session_id"`
	Action      string `json:"action"`
	RegionIndex int    `json:"region_index,omitempty"`
	Blurred     int    `json:"blurred"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
}

// Client represents one connected dashboard client
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
}
