package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/smartblur/smartblur/internal/audit"
	"github.com/smartblur/smartblur/internal/classify"
	"github.com/smartblur/smartblur/internal/session"
	"github.com/smartblur/smartblur/internal/websocket"
	"go.uber.org/zap"
)

const sessionCookie = "smartblur_session"

// recentAuditLimit caps the audit rows reported on /info
const recentAuditLimit = 20

// sessionFor resolves the session for a request, assigning a cookie on
// first contact
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *session.Session {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return s.sessions.Get(cookie.Value)
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s.sessions.Get(id)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps interaction errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoImage):
		return http.StatusConflict
	case errors.Is(err, session.ErrIndexOutOfRange), errors.Is(err, session.ErrPatternNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInfo reports service metadata, runtime counters and the latest
// audit activity
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	hits, misses := s.ocrCache.Stats()
	info := map[string]interface{}{
		"name":             "smartblur",
		"version":          Version,
		"uptime":           time.Since(s.startedAt).String(),
		"ocr_cache_hits":   hits,
		"ocr_cache_misses": misses,
		"websocket":        s.wsHub.GetStats(),
	}

	if events, err := s.auditor.Recent(r.Context(), recentAuditLimit); err != nil {
		s.logger.Warn("Failed to load recent audit events", zap.Error(err))
	} else if events != nil {
		info["recent_activity"] = events
	}

	writeJSON(w, http.StatusOK, info)
}

// handleWebSocket hands the connection to the hub
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// handleUpload accepts a PNG or JPEG, runs OCR (cache-aware) and applies
// the auto-detect policy. Uploading a file with a new name resets the
// session's per-image state.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	cfg := s.currentConfig()

	r.Body = http.MaxBytesReader(w, r.Body, cfg.Server.MaxUploadSize)
	if err := r.ParseMultipartForm(cfg.Server.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image field")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, "image must be PNG or JPEG")
		return
	}
	if format != "png" && format != "jpeg" {
		writeError(w, http.StatusUnsupportedMediaType, "image must be PNG or JPEG")
		return
	}

	sess := s.sessionFor(w, r)
	view, cacheHit, err := s.sessions.Upload(r.Context(), sess, header.Filename, img, raw, cfg.AutoBlur)
	if err != nil {
		s.logger.WithSessionID(sess.ID).Error("Upload failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "text recognition failed")
		return
	}

	s.auditor.Record(r.Context(), audit.Event{
		SessionID:   sess.ID,
		ImageName:   header.Filename,
		Action:      audit.ActionUpload,
		RegionCount: len(view.Regions),
	})
	for _, detected := range sensitiveCategories(view) {
		s.auditor.Record(r.Context(), audit.Event{
			SessionID:   sess.ID,
			ImageName:   header.Filename,
			Action:      audit.ActionAutoDetect,
			Category:    string(detected.category),
			RegionCount: detected.count,
		})
	}

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeUpload,
		Timestamp: time.Now(),
		SessionID: sess.ID,
		Data: websocket.UploadEvent{
			SessionID:   sess.ID,
			ImageName:   header.Filename,
			RegionCount: len(view.Regions),
			CacheHit:    cacheHit,
		},
	})
	s.broadcastDetection(sess.ID, view)

	writeJSON(w, http.StatusOK, struct {
		session.View
		CacheHit bool `json:"cache_hit"`
	}{view, cacheHit})
}

type categoryCount struct {
	category classify.Category
	count    int
}

// sensitiveCategories tallies the sensitive regions of a view per category,
// in first-seen order
func sensitiveCategories(view session.View) []categoryCount {
	index := make(map[classify.Category]int)
	var counts []categoryCount
	for _, region := range view.Regions {
		if !region.Sensitive {
			continue
		}
		if i, ok := index[region.Category]; ok {
			counts[i].count++
			continue
		}
		index[region.Category] = len(counts)
		counts = append(counts, categoryCount{category: region.Category, count: 1})
	}
	return counts
}

// broadcastDetection pushes the detection summary for a view. Categories
// only; region text never leaves the session.
func (s *Server) broadcastDetection(sessionID string, view session.View) {
	var categories []classify.Category
	for _, detected := range sensitiveCategories(view) {
		categories = append(categories, detected.category)
	}

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeDetection,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data: websocket.DetectionEvent{
			SessionID:  sessionID,
			ImageName:  view.ImageName,
			Categories: categories,
			Blurred:    view.BlurredCount,
		},
	})
}

// handleSession returns the current session snapshot
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	writeJSON(w, http.StatusOK, s.sessions.View(sess, s.currentConfig().AutoBlur))
}

// handleAnnotated serves the overlay view as PNG
func (s *Server) handleAnnotated(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	img, err := s.sessions.RenderAnnotated(sess, s.annotator, s.currentConfig().AutoBlur)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	servePNG(w, img, "")
}

// handlePreview serves the redacted preview as PNG
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	cfg := s.currentConfig()
	sess := s.sessionFor(w, r)
	img, err := s.sessions.RenderRedacted(sess, cfg.Redaction.BlurStrength, cfg.AutoBlur)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	servePNG(w, img, "")
}

// handleExport serves the redacted image as a download
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	cfg := s.currentConfig()
	sess := s.sessionFor(w, r)
	img, err := s.sessions.RenderRedacted(sess, cfg.Redaction.BlurStrength, cfg.AutoBlur)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	view := s.sessions.View(sess, cfg.AutoBlur)
	s.auditor.Record(r.Context(), audit.Event{
		SessionID:   sess.ID,
		ImageName:   view.ImageName,
		Action:      audit.ActionExport,
		RegionCount: view.BlurredCount,
	})
	s.broadcastRedaction(sess.ID, audit.ActionExport, -1, view.BlurredCount)

	servePNG(w, img, "redacted_image.png")
}

func servePNG(w http.ResponseWriter, img image.Image, downloadName string) {
	w.Header().Set("Content-Type", "image/png")
	if downloadName != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName+`"`)
	}
	png.Encode(w, img)
}

// handleToggle flips one region's blur state
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid region index")
		return
	}

	cfg := s.currentConfig()
	sess := s.sessionFor(w, r)

	// Ensure a pending auto-detect re-run lands before the toggle.
	s.sessions.View(sess, cfg.AutoBlur)

	blurred, err := s.sessions.Toggle(sess, index)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	view := s.sessions.View(sess, cfg.AutoBlur)
	s.auditor.Record(r.Context(), audit.Event{
		SessionID:   sess.ID,
		ImageName:   view.ImageName,
		Action:      audit.ActionToggle,
		RegionCount: view.BlurredCount,
	})
	s.broadcastRedaction(sess.ID, audit.ActionToggle, index, view.BlurredCount)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"index":   index,
		"blurred": blurred,
		"view":    view,
	})
}

func (s *Server) handleBlurSensitive(w http.ResponseWriter, r *http.Request) {
	s.bulkAction(w, r, audit.ActionBlurAll, func(sess *session.Session) error {
		_, err := s.sessions.BlurAllSensitive(sess)
		return err
	})
}

func (s *Server) handleUnblurAll(w http.ResponseWriter, r *http.Request) {
	s.bulkAction(w, r, audit.ActionUnblurAll, s.sessions.UnblurAll)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.bulkAction(w, r, audit.ActionReset, s.sessions.ResetAutoDetect)
}

func (s *Server) bulkAction(w http.ResponseWriter, r *http.Request, action string, fn func(*session.Session) error) {
	cfg := s.currentConfig()
	sess := s.sessionFor(w, r)

	if err := fn(sess); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	view := s.sessions.View(sess, cfg.AutoBlur)
	s.auditor.Record(r.Context(), audit.Event{
		SessionID:   sess.ID,
		ImageName:   view.ImageName,
		Action:      action,
		RegionCount: view.BlurredCount,
	})
	s.broadcastRedaction(sess.ID, action, -1, view.BlurredCount)

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) broadcastRedaction(sessionID, action string, index, blurred int) {
	event := websocket.RedactionEvent{
		SessionID: sessionID,
		Action:    action,
		Blurred:   blurred,
	}
	if index >= 0 {
		event.RegionIndex = index
	}

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeRedaction,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data:      event,
	})
}

// handlePatternList returns the session's custom patterns
func (s *Server) handlePatternList(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	view := s.sessions.View(sess, s.currentConfig().AutoBlur)
	writeJSON(w, http.StatusOK, view.Patterns)
}

// handlePatternAdd validates and stores a new custom pattern
func (s *Server) handlePatternAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Pattern string `json:"pattern"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sess := s.sessionFor(w, r)
	p, err := s.sessions.AddPattern(sess, req.Name, req.Pattern)
	if err != nil {
		// Invalid regex is a user error, reported but never stored.
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// handlePatternUpdate enables or disables a pattern
func (s *Server) handlePatternUpdate(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pattern index")
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sess := s.sessionFor(w, r)
	if err := s.sessions.SetPatternEnabled(sess, index, req.Enabled); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"index": index, "enabled": req.Enabled})
}

// handlePatternDelete removes a pattern
func (s *Server) handlePatternDelete(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pattern index")
		return
	}

	sess := s.sessionFor(w, r)
	if err := s.sessions.RemovePattern(sess, index); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
