package handle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"retouch-bot/api/internal/edit"
	"retouch-bot/api/internal/store"
)

type stubEditor struct {
	objs []edit.DetectedObject
	res  edit.EditResult
	err  error

	gotPrompt string
	gotBox    edit.BoundingBox
	gotSpot   edit.Hotspot
	gotAsset  edit.ImageAsset
}

func (s *stubEditor) DetectObjects(_ context.Context, a edit.ImageAsset) ([]edit.DetectedObject, error) {
	s.gotAsset = a
	return s.objs, s.err
}

func (s *stubEditor) EditAtPoint(_ context.Context, a edit.ImageAsset, p string, h edit.Hotspot) (edit.EditResult, error) {
	s.gotAsset, s.gotPrompt, s.gotSpot = a, p, h
	return s.res, s.err
}

func (s *stubEditor) EditRegion(_ context.Context, a edit.ImageAsset, p string, b edit.BoundingBox) (edit.EditResult, error) {
	s.gotAsset, s.gotPrompt, s.gotBox = a, p, b
	return s.res, s.err
}

func (s *stubEditor) ApplyFilter(_ context.Context, a edit.ImageAsset, p string) (edit.EditResult, error) {
	s.gotAsset, s.gotPrompt = a, p
	return s.res, s.err
}

func (s *stubEditor) ApplyAdjustment(_ context.Context, a edit.ImageAsset, p string) (edit.EditResult, error) {
	s.gotAsset, s.gotPrompt = a, p
	return s.res, s.err
}

type memLog struct{ entries []store.EditLogEntry }

func (m *memLog) Insert(_ context.Context, e store.EditLogEntry) (uuid.UUID, error) {
	m.entries = append(m.entries, e)
	return uuid.New(), nil
}

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDetectReturnsObjects(t *testing.T) {
	ed := &stubEditor{objs: []edit.DetectedObject{{Name: "car", BoundingBox: edit.BoundingBox{X1: 0.1, Y1: 0.2, X2: 0.5, Y2: 0.6}}}}
	log := &memLog{}
	h := Routes(New(ed, log, edit.Models{Edit: "edit-model", Detect: "detect-model"}, 0), nil)

	rec := post(t, h, "/v1/edit/detect", map[string]any{"image": pngDataURL(t, 4, 4)})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp DetectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Objects) != 1 || resp.Objects[0].Name != "car" {
		t.Fatalf("objects = %+v", resp.Objects)
	}
	if ed.gotAsset.MIME != "image/png" {
		t.Fatalf("mime = %q", ed.gotAsset.MIME)
	}
	if len(log.entries) != 1 || log.entries[0].Operation != "detect" || log.entries[0].Status != "ok" ||
		log.entries[0].Model != "detect-model" {
		t.Fatalf("log = %+v", log.entries)
	}
}

func TestPointPassesHotspotAndPrompt(t *testing.T) {
	ed := &stubEditor{res: edit.EditResult{DataURL: "data:image/png;base64,AAAA"}}
	h := Routes(New(ed, nil, edit.Models{}, 0), nil)

	rec := post(t, h, "/v1/edit/point", map[string]any{
		"image":   pngDataURL(t, 4, 4),
		"prompt":  "remove the mole",
		"hotspot": map[string]int{"x": 3, "y": 2},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ed.gotSpot != (edit.Hotspot{X: 3, Y: 2}) || ed.gotPrompt != "remove the mole" {
		t.Fatalf("spot = %+v prompt = %q", ed.gotSpot, ed.gotPrompt)
	}
	var resp EditResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.DataURL != "data:image/png;base64,AAAA" {
		t.Fatalf("dataUrl = %q", resp.DataURL)
	}
}

func TestRegionScalesNormalizedBox(t *testing.T) {
	ed := &stubEditor{res: edit.EditResult{DataURL: "data:image/png;base64,AAAA"}}
	h := Routes(New(ed, nil, edit.Models{}, 0), nil)

	rec := post(t, h, "/v1/edit/region", map[string]any{
		"image":       pngDataURL(t, 200, 100),
		"prompt":      "make it red",
		"boundingBox": map[string]float64{"x1": 0.5, "y1": 0.5, "x2": 0.1, "y2": 0.1},
		"normalized":  true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	want := edit.BoundingBox{X1: 20, Y1: 10, X2: 100, Y2: 50}
	if ed.gotBox != want {
		t.Fatalf("box = %+v, want %+v", ed.gotBox, want)
	}
}

func TestRawBase64IsSniffed(t *testing.T) {
	ed := &stubEditor{res: edit.EditResult{DataURL: "data:image/png;base64,AAAA"}}
	h := Routes(New(ed, nil, edit.Models{}, 0), nil)

	raw := strings.TrimPrefix(pngDataURL(t, 2, 2), "data:image/png;base64,")
	rec := post(t, h, "/v1/edit/filter", map[string]any{"image": raw, "prompt": "vintage"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ed.gotAsset.MIME != "image/png" || ed.gotPrompt != "vintage" {
		t.Fatalf("asset mime = %q prompt = %q", ed.gotAsset.MIME, ed.gotPrompt)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"empty instruction", edit.ErrEmptyInstruction, http.StatusBadRequest, "empty_instruction"},
		{"invalid asset", &edit.InvalidAssetError{Reason: "empty image data"}, http.StatusBadRequest, "invalid_asset"},
		{"blocked", &edit.RequestBlockedError{Reason: "SAFETY"}, http.StatusUnprocessableEntity, "request_blocked"},
		{"stopped", &edit.GenerationStoppedError{Reason: "SAFETY"}, http.StatusUnprocessableEntity, "generation_stopped"},
		{"no image", &edit.NoImageReturnedError{Text: "I can't do that"}, http.StatusUnprocessableEntity, "no_image"},
		{"malformed", &edit.MalformedResponseError{Body: "x", Err: errors.New("bad")}, http.StatusBadGateway, "malformed_response"},
		{"transport", errors.New("gemini edit: connection reset"), http.StatusBadGateway, "transport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &memLog{}
			h := Routes(New(&stubEditor{err: tt.err}, log, edit.Models{}, 0), nil)
			rec := post(t, h, "/v1/edit/adjust", map[string]any{"image": pngDataURL(t, 2, 2), "prompt": "warmer"})
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			var body errorBody
			_ = json.Unmarshal(rec.Body.Bytes(), &body)
			if body.Kind != tt.kind {
				t.Fatalf("kind = %q, want %q", body.Kind, tt.kind)
			}
			if len(log.entries) != 1 || log.entries[0].ErrorKind != tt.kind || log.entries[0].Status != "error" {
				t.Fatalf("log = %+v", log.entries)
			}
		})
	}
}

func TestMissingImageIsBadRequest(t *testing.T) {
	ed := &stubEditor{}
	h := Routes(New(ed, nil, edit.Models{}, 0), nil)
	rec := post(t, h, "/v1/edit/filter", map[string]any{"prompt": "vintage"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if ed.gotPrompt != "" {
		t.Fatal("editor must not be called without an image")
	}
}

func TestBadJSON(t *testing.T) {
	h := Routes(New(&stubEditor{}, nil, edit.Models{}, 0), nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/edit/detect", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := Routes(New(&stubEditor{}, nil, edit.Models{}, 0), func(context.Context) error { return errors.New("db down") })
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}

	h = Routes(New(&stubEditor{}, nil, edit.Models{}, 0), nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestRequestIDIsKeptOutsideLogKey(t *testing.T) {
	log := &memLog{}
	h := Routes(New(&stubEditor{}, log, edit.Models{}, 0), nil)
	for i := 0; i < 2; i++ {
		b, _ := json.Marshal(map[string]any{"image": pngDataURL(t, 2, 2), "prompt": "warmer"})
		req := httptest.NewRequest(http.MethodPost, "/v1/edit/adjust", bytes.NewReader(b))
		req.Header.Set("X-Request-Id", "6f1c2a4e-8d3b-4f7a-9c2e-1b5d7e9f0a11")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if len(log.entries) != 2 {
		t.Fatalf("entries = %d", len(log.entries))
	}
	for _, e := range log.entries {
		if e.ID != uuid.Nil {
			t.Fatalf("log id must be assigned by the repo, got %s", e.ID)
		}
		if e.RequestID != "6f1c2a4e-8d3b-4f7a-9c2e-1b5d7e9f0a11" {
			t.Fatalf("request id = %q", e.RequestID)
		}
	}
}

func TestRequestTimeoutIsCapped(t *testing.T) {
	for _, tt := range []struct {
		header string
		max    time.Duration
	}{
		{"10000000000", maxRequestTimeout * time.Second},
		{"30", 30 * time.Second},
	} {
		req := httptest.NewRequest(http.MethodPost, "/v1/edit/adjust", nil)
		req.Header.Set("X-Request-Timeout", tt.header)
		ctx, cancel := requestContext(req)
		dl, ok := ctx.Deadline()
		cancel()
		if !ok {
			t.Fatalf("%s: no deadline", tt.header)
		}
		left := time.Until(dl)
		if left <= 0 || left > tt.max {
			t.Fatalf("%s: deadline in %v, want (0, %v]", tt.header, left, tt.max)
		}
	}

	ctx, cancel := requestContext(httptest.NewRequest(http.MethodPost, "/v1/edit/adjust", nil))
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Fatalf("no header must mean no deadline")
	}
}
