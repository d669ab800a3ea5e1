package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/smartblur/smartblur/internal/cache"
	"github.com/smartblur/smartblur/internal/classify"
	"github.com/smartblur/smartblur/internal/config"
	"github.com/smartblur/smartblur/internal/logger"
	"github.com/smartblur/smartblur/internal/ocr"
	"github.com/smartblur/smartblur/internal/redact"
	"go.uber.org/zap"
)

var (
	// ErrNoImage is returned for interactions that need an uploaded image
	ErrNoImage = errors.New("no image uploaded")
	// ErrIndexOutOfRange is returned for region indices outside the result list
	ErrIndexOutOfRange = errors.New("region index out of range")
	// ErrPatternNotFound is returned for unknown custom pattern indices
	ErrPatternNotFound = errors.New("custom pattern not found")
)

// Manager owns all live sessions and applies interactions to them. OCR runs
// at most once per distinct upload: results live on the session and, when
// the cache is configured, in Redis keyed by the image digest.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	engine     ocr.Engine
	classifier *classify.Classifier
	cache      *cache.OCRCache
	logger     *logger.Logger
}

// NewManager creates a session manager. ocrCache may be nil.
func NewManager(engine ocr.Engine, classifier *classify.Classifier, ocrCache *cache.OCRCache, log *logger.Logger) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		engine:     engine,
		classifier: classifier,
		cache:      ocrCache,
		logger:     log,
	}
}

// Get returns the session for an ID, creating it on first use
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s = newSession(id)
	m.sessions[id] = s
	return s
}

// RegionView is one region as reported to the client. Classification is
// recomputed on demand from the text and the active pattern set.
type RegionView struct {
	Index      int               `json:"index"`
	Box        ocr.Quad          `json:"box"`
	Text       string            `json:"text"`
	Confidence float64           `json:"confidence"`
	Blurred    bool              `json:"blurred"`
	Sensitive  bool              `json:"sensitive"`
	Category   classify.Category `json:"category,omitempty"`
}

// View is a full snapshot of a session for API responses
type View struct {
	State        string                    `json:"state"`
	ImageName    string                    `json:"image_name,omitempty"`
	Regions      []RegionView              `json:"regions"`
	BlurredCount int                       `json:"blurred_count"`
	Patterns     []*classify.CustomPattern `json:"patterns"`
}

// Upload loads an image into the session. A filename different from the
// currently loaded one resets per-image state; OCR then runs (or is served
// from the cache) and the auto-detect policy seeds the blurred set. The
// second return reports whether OCR was served from the shared cache.
func (m *Manager) Upload(ctx context.Context, s *Session, name string, img image.Image, raw []byte, toggles config.AutoBlurConfig) (View, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateNoImage || s.imageName != name {
		s.reset(name, cache.Digest(raw), img)
		m.logger.WithSessionID(s.ID).Info("Image loaded",
			zap.String("image_name", name),
		)
	}

	cacheHit, err := m.ensureRegionsLocked(ctx, s)
	if err != nil {
		return View{}, false, err
	}
	m.applyAutoDetectLocked(s, toggles)

	return m.viewLocked(s), cacheHit, nil
}

// ensureRegionsLocked runs OCR exactly once per loaded image. It reports
// whether the regions came from the shared cache rather than the engine.
func (m *Manager) ensureRegionsLocked(ctx context.Context, s *Session) (bool, error) {
	if s.state >= StateOCRDone {
		return false, nil
	}
	if s.img == nil {
		return false, ErrNoImage
	}

	if regions, ok := m.cache.Get(ctx, s.imageDigest); ok {
		s.regions = regions
		s.state = StateOCRDone
		return true, nil
	}

	regions, err := m.engine.ReadText(s.img)
	if err != nil {
		return false, fmt.Errorf("text recognition failed: %w", err)
	}

	// No detected text is a valid empty result.
	s.regions = regions
	s.state = StateOCRDone
	m.cache.Set(ctx, s.imageDigest, regions)

	m.logger.WithSessionID(s.ID).Info("OCR completed",
		zap.String("image_name", s.imageName),
		zap.Int("regions", len(regions)),
	)
	return false, nil
}

// applyAutoDetectLocked runs the auto-detect policy at most once per image
// load. It only ever adds indices, so manual selections survive re-runs
// triggered by pattern edits.
func (m *Manager) applyAutoDetectLocked(s *Session, toggles config.AutoBlurConfig) {
	if s.state < StateOCRDone || s.autoDetectApplied {
		return
	}

	added := 0
	for i, region := range s.regions {
		result := m.classifier.Classify(region.Text, s.patterns)
		if !result.Sensitive || !categoryEnabled(result.Category, toggles) {
			continue
		}
		if _, ok := s.blurred[i]; !ok {
			s.blurred[i] = struct{}{}
			added++
		}
	}

	s.autoDetectApplied = true
	s.state = StateReady

	m.logger.WithSessionID(s.ID).Info("Auto-detect applied",
		zap.Int("added", added),
		zap.Int("blurred_total", len(s.blurred)),
	)
}

// categoryEnabled maps a category to its auto-blur toggle
func categoryEnabled(category classify.Category, toggles config.AutoBlurConfig) bool {
	switch {
	case category.IsCustom():
		return toggles.Custom
	case category == classify.CategoryEmail:
		return toggles.Email
	case category == classify.CategoryPhone:
		return toggles.Phone
	case category == classify.CategorySSN:
		return toggles.SSN
	case category == classify.CategoryCreditCard:
		return toggles.CreditCard
	case category == classify.CategoryAddress:
		return toggles.Address
	default:
		return false
	}
}

// View snapshots the session, re-running auto-detect first if a pattern
// edit or reset invalidated it.
func (m *Manager) View(s *Session, toggles config.AutoBlurConfig) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.applyAutoDetectLocked(s, toggles)
	return m.viewLocked(s)
}

func (m *Manager) viewLocked(s *Session) View {
	regions := make([]RegionView, len(s.regions))
	for i, region := range s.regions {
		_, blurred := s.blurred[i]
		result := m.classifier.Classify(region.Text, s.patterns)
		regions[i] = RegionView{
			Index:      i,
			Box:        region.Box,
			Text:       region.Text,
			Confidence: region.Confidence,
			Blurred:    blurred,
			Sensitive:  result.Sensitive,
			Category:   result.Category,
		}
	}

	patterns := make([]*classify.CustomPattern, len(s.patterns))
	copy(patterns, s.patterns)

	return View{
		State:        s.state.String(),
		ImageName:    s.imageName,
		Regions:      regions,
		BlurredCount: len(s.blurred),
		Patterns:     patterns,
	}
}

// Toggle flips one region in or out of the blurred set and reports the new
// state of that region.
func (m *Manager) Toggle(s *Session, index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state < StateOCRDone {
		return false, ErrNoImage
	}
	if index < 0 || index >= len(s.regions) {
		return false, ErrIndexOutOfRange
	}

	if _, ok := s.blurred[index]; ok {
		delete(s.blurred, index)
		return false, nil
	}
	s.blurred[index] = struct{}{}
	return true, nil
}

// BlurAllSensitive adds every currently-sensitive region to the blurred
// set, ignoring the auto-blur toggles. It never removes indices.
func (m *Manager) BlurAllSensitive(s *Session) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state < StateOCRDone {
		return 0, ErrNoImage
	}

	added := 0
	for i, region := range s.regions {
		if !m.classifier.Classify(region.Text, s.patterns).Sensitive {
			continue
		}
		if _, ok := s.blurred[i]; !ok {
			s.blurred[i] = struct{}{}
			added++
		}
	}
	return added, nil
}

// UnblurAll empties the blurred set
func (m *Manager) UnblurAll(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state < StateOCRDone {
		return ErrNoImage
	}
	s.blurred = make(map[int]struct{})
	return nil
}

// ResetAutoDetect clears the blurred set and the applied flag; the next
// view re-runs auto-detect with the toggle configuration in effect then.
func (m *Manager) ResetAutoDetect(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state < StateOCRDone {
		return ErrNoImage
	}
	s.blurred = make(map[int]struct{})
	s.autoDetectApplied = false
	return nil
}

// AddPattern validates, compiles and appends a custom pattern. Pattern
// edits invalidate only the auto-detect-applied flag: the next view may add
// indices, but manual selections are kept.
func (m *Manager) AddPattern(s *Session, name, pattern string) (*classify.CustomPattern, error) {
	p, err := classify.NewCustomPattern(name, pattern)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, p)
	s.autoDetectApplied = false

	m.logger.WithSessionID(s.ID).Info("Custom pattern added",
		zap.String("name", name),
	)
	return p, nil
}

// SetPatternEnabled enables or disables one custom pattern
func (m *Manager) SetPatternEnabled(s *Session, index int, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.patterns) {
		return ErrPatternNotFound
	}
	s.patterns[index].Enabled = enabled
	s.autoDetectApplied = false
	return nil
}

// RemovePattern deletes one custom pattern
func (m *Manager) RemovePattern(s *Session, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.patterns) {
		return ErrPatternNotFound
	}
	s.patterns = append(s.patterns[:index], s.patterns[index+1:]...)
	s.autoDetectApplied = false
	return nil
}

// RenderAnnotated draws the overlay view for the session's image
func (m *Manager) RenderAnnotated(s *Session, annotator *redact.Annotator, toggles config.AutoBlurConfig) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img == nil {
		return nil, ErrNoImage
	}
	m.applyAutoDetectLocked(s, toggles)

	return annotator.Annotate(s.img, s.regions, s.blurredIndices(), s.patterns), nil
}

// RenderRedacted blurs every selected region of the session's image
func (m *Manager) RenderRedacted(s *Session, sigma float64, toggles config.AutoBlurConfig) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img == nil {
		return nil, ErrNoImage
	}
	m.applyAutoDetectLocked(s, toggles)

	return redact.Apply(s.img, s.regions, s.blurredIndices(), sigma), nil
}

// ImageName returns the currently loaded image name, if any
func (m *Manager) ImageName(s *Session) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imageName
}
