package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smartblur/smartblur/internal/classify"
	"github.com/smartblur/smartblur/internal/config"
	"github.com/smartblur/smartblur/internal/logger"
	"github.com/smartblur/smartblur/internal/ocr"
	"github.com/smartblur/smartblur/internal/session"
)

type stubEngine struct {
	regions []ocr.TextRegion
}

func (e *stubEngine) ReadText(img image.Image) ([]ocr.TextRegion, error) {
	return e.regions, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	engine := &stubEngine{
		regions: []ocr.TextRegion{
			{Box: ocr.QuadFromRect(image.Rect(10, 10, 120, 30)), Text: "john@example.com", Confidence: 0.97},
			{Box: ocr.QuadFromRect(image.Rect(10, 40, 120, 60)), Text: "Hello World", Confidence: 0.99},
		},
	}

	s, err := New(config.GetDefaults(), engine, nil, nil, logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

// do issues a request against the router with a fixed session cookie
func do(s *Server, method, path, contentType string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "test-session"})

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func uploadPNG(t *testing.T, s *Server, filename string) *httptest.ResponseRecorder {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	fw.Write(pngBuf.Bytes())
	mw.Close()

	return do(s, http.MethodPost, "/upload", mw.FormDataContentType(), &body)
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) session.View {
	t.Helper()
	var view session.View
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("Failed to decode view: %v", err)
	}
	return view
}

func TestHealthAndInfo(t *testing.T) {
	s := newTestServer(t)

	t.Run("Health", func(t *testing.T) {
		w := do(s, http.MethodGet, "/health", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
	})

	t.Run("Info", func(t *testing.T) {
		w := do(s, http.MethodGet, "/info", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		var info map[string]interface{}
		if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
			t.Fatalf("Failed to decode info: %v", err)
		}
		if info["name"] != "smartblur" {
			t.Errorf("Unexpected service name: %v", info["name"])
		}
	})
}

func TestUploadFlow(t *testing.T) {
	s := newTestServer(t)

	w := uploadPNG(t, s, "statement.png")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"cache_hit":false`) {
		t.Error("Upload response should report the cache-hit flag")
	}

	view := decodeView(t, w)
	if view.State != "ready" {
		t.Errorf("Expected ready state, got %q", view.State)
	}
	if len(view.Regions) != 2 {
		t.Fatalf("Expected 2 regions, got %d", len(view.Regions))
	}
	if !view.Regions[0].Blurred {
		t.Error("Email region should be auto-blurred")
	}
	if view.Regions[1].Blurred {
		t.Error("Safe region should not be blurred")
	}
	if view.BlurredCount != 1 {
		t.Errorf("Expected 1 blurred region, got %d", view.BlurredCount)
	}

	t.Run("SessionSnapshot", func(t *testing.T) {
		w := do(s, http.MethodGet, "/session", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		view := decodeView(t, w)
		if view.ImageName != "statement.png" {
			t.Errorf("Expected statement.png, got %q", view.ImageName)
		}
	})

	t.Run("ToggleRegion", func(t *testing.T) {
		w := do(s, http.MethodPost, "/regions/1/toggle", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp struct {
			Blurred bool         `json:"blurred"`
			View    session.View `json:"view"`
		}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode toggle response: %v", err)
		}
		if !resp.Blurred {
			t.Error("Toggle should have blurred the region")
		}
		if resp.View.BlurredCount != 2 {
			t.Errorf("Expected 2 blurred regions, got %d", resp.View.BlurredCount)
		}
	})

	t.Run("ToggleOutOfRange", func(t *testing.T) {
		w := do(s, http.MethodPost, "/regions/9/toggle", "", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", w.Code)
		}
	})

	t.Run("UnblurAll", func(t *testing.T) {
		w := do(s, http.MethodPost, "/actions/unblur-all", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		if view := decodeView(t, w); view.BlurredCount != 0 {
			t.Errorf("Expected 0 blurred regions, got %d", view.BlurredCount)
		}
	})

	t.Run("BlurSensitive", func(t *testing.T) {
		w := do(s, http.MethodPost, "/actions/blur-sensitive", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		if view := decodeView(t, w); view.BlurredCount != 1 {
			t.Errorf("Expected 1 blurred region, got %d", view.BlurredCount)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		w := do(s, http.MethodPost, "/actions/reset", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		if view := decodeView(t, w); view.BlurredCount != 1 {
			t.Errorf("Reset should re-apply auto-detect, got %d blurred", view.BlurredCount)
		}
	})
}

func TestUploadRejectsNonImage(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("image", "notes.txt")
	fw.Write([]byte("just some text"))
	mw.Close()

	w := do(s, http.MethodPost, "/upload", mw.FormDataContentType(), &body)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Expected 415, got %d", w.Code)
	}
}

func TestInteractionsRequireImage(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/regions/0/toggle",
		"/actions/blur-sensitive",
		"/actions/unblur-all",
		"/actions/reset",
	} {
		w := do(s, http.MethodPost, path, "", nil)
		if w.Code != http.StatusConflict {
			t.Errorf("%s: expected 409 without an image, got %d", path, w.Code)
		}
	}

	w := do(s, http.MethodGet, "/export", "", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("/export: expected 409 without an image, got %d", w.Code)
	}
}

func TestPatternEndpoints(t *testing.T) {
	s := newTestServer(t)
	uploadPNG(t, s, "badge.png")

	t.Run("InvalidRegexRejected", func(t *testing.T) {
		body := bytes.NewBufferString(`{"name":"Broken","pattern":"[unclosed"}`)
		w := do(s, http.MethodPost, "/patterns", "application/json", body)
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("Expected 422, got %d", w.Code)
		}
	})

	t.Run("AddListDisableDelete", func(t *testing.T) {
		body := bytes.NewBufferString(`{"name":"Employee ID","pattern":"EMP-[A-Z]{2}\\d{2}"}`)
		w := do(s, http.MethodPost, "/patterns", "application/json", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
		}

		w = do(s, http.MethodGet, "/patterns", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Employee ID") {
			t.Errorf("Pattern list missing added pattern: %s", w.Body.String())
		}

		w = do(s, http.MethodPatch, "/patterns/0", "application/json", bytes.NewBufferString(`{"enabled":false}`))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}

		w = do(s, http.MethodDelete, "/patterns/0", "", nil)
		if w.Code != http.StatusNoContent {
			t.Fatalf("Expected 204, got %d", w.Code)
		}

		w = do(s, http.MethodDelete, "/patterns/0", "", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for missing pattern, got %d", w.Code)
		}
	})
}

func TestImageEndpointsServePNG(t *testing.T) {
	s := newTestServer(t)
	uploadPNG(t, s, "statement.png")

	for _, path := range []string{"/image/annotated", "/image/preview", "/export"} {
		w := do(s, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
			continue
		}
		if ct := w.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s: expected image/png, got %q", path, ct)
		}
		if _, err := png.Decode(w.Body); err != nil {
			t.Errorf("%s: response is not a valid PNG: %v", path, err)
		}
	}

	w := do(s, http.MethodGet, "/export", "", nil)
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "redacted_image.png") {
		t.Errorf("Export should set a download filename, got %q", cd)
	}
}

func TestSensitiveCategoryTally(t *testing.T) {
	view := session.View{Regions: []session.RegionView{
		{Sensitive: true, Category: classify.CategoryEmail},
		{Sensitive: false},
		{Sensitive: true, Category: classify.CategoryPhone},
		{Sensitive: true, Category: classify.CategoryEmail},
	}}

	counts := sensitiveCategories(view)
	if len(counts) != 2 {
		t.Fatalf("Expected 2 categories, got %d", len(counts))
	}
	if counts[0].category != classify.CategoryEmail || counts[0].count != 2 {
		t.Errorf("First tally = %+v, want Email x2", counts[0])
	}
	if counts[1].category != classify.CategoryPhone || counts[1].count != 1 {
		t.Errorf("Second tally = %+v, want Phone x1", counts[1])
	}
}

func TestSessionCookieAssigned(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	found := false
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("First request should set the session cookie")
	}
}
