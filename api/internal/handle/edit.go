package handle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	_ "image/gif"  // decoders for DecodeConfig
	_ "image/jpeg" // decoders for DecodeConfig
	_ "image/png"  // decoders for DecodeConfig
	"net/http"
	"strings"
	"time"

	_ "golang.org/x/image/webp" // decoders for DecodeConfig

	"retouch-bot/api/internal/edit"
	"retouch-bot/api/internal/util"
)

// ImageInput: картинка в запросе: data URL или голый base64 (+ mime).
type ImageInput struct {
	Image string `json:"image"`
	MIME  string `json:"mime,omitempty"`
}

func (in ImageInput) asset() (edit.ImageAsset, error) {
	s := strings.TrimSpace(in.Image)
	if s == "" {
		return edit.ImageAsset{}, &edit.InvalidAssetError{Reason: "image is required"}
	}
	if strings.HasPrefix(strings.ToLower(s), "data:") {
		return edit.AssetFromDataURL(s)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return edit.ImageAsset{}, &edit.InvalidAssetError{Reason: "bad base64 image", Err: err}
	}
	mime := util.PickMIME(in.MIME, b)
	if mime == "" {
		return edit.ImageAsset{}, &edit.InvalidAssetError{Reason: "could not determine MIME type"}
	}
	return edit.ImageAsset{Data: b, MIME: mime}, nil
}

type DetectRequest struct {
	ImageInput
}

type DetectResponse struct {
	Objects []edit.DetectedObject `json:"objects"`
}

type PointRequest struct {
	ImageInput
	Prompt  string       `json:"prompt"`
	Hotspot edit.Hotspot `json:"hotspot"`
}

type RegionRequest struct {
	ImageInput
	Prompt      string           `json:"prompt"`
	BoundingBox edit.BoundingBox `json:"boundingBox"`
	// Normalized=true: бокс в [0,1] (как из detect), переводим в пиксели здесь.
	Normalized bool `json:"normalized,omitempty"`
}

type PromptRequest struct {
	ImageInput
	Prompt string `json:"prompt"`
}

type EditResponse struct {
	DataURL string `json:"dataUrl"`
}

func (h *Handle) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes*4/3+4096)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "image is too large", Kind: "invalid_asset"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad json: " + err.Error(), Kind: "bad_request"})
		return false
	}
	return true
}

func (h *Handle) Detect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if !h.decode(w, r, &req) {
		return
	}
	asset, err := req.asset()
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	started := time.Now()
	objs, err := h.ed.DetectObjects(ctx, asset)
	h.record(ctx, "detect", "", asset, started, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DetectResponse{Objects: objs})
}

func (h *Handle) Point(w http.ResponseWriter, r *http.Request) {
	var req PointRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.run(w, r, req.ImageInput, "edit", req.Prompt, func(ctx context.Context, a edit.ImageAsset) (edit.EditResult, error) {
		return h.ed.EditAtPoint(ctx, a, req.Prompt, req.Hotspot)
	})
}

func (h *Handle) Region(w http.ResponseWriter, r *http.Request) {
	var req RegionRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.run(w, r, req.ImageInput, "object edit", req.Prompt, func(ctx context.Context, a edit.ImageAsset) (edit.EditResult, error) {
		box := req.BoundingBox
		if req.Normalized {
			cfg, _, err := image.DecodeConfig(bytes.NewReader(a.Data))
			if err != nil {
				return edit.EditResult{}, &edit.InvalidAssetError{Reason: "cannot read image size", Err: err}
			}
			box = edit.ScaleBox(box, cfg.Width, cfg.Height)
		}
		return h.ed.EditRegion(ctx, a, req.Prompt, box)
	})
}

func (h *Handle) Filter(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.run(w, r, req.ImageInput, "filter", req.Prompt, func(ctx context.Context, a edit.ImageAsset) (edit.EditResult, error) {
		return h.ed.ApplyFilter(ctx, a, req.Prompt)
	})
}

func (h *Handle) Adjust(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.run(w, r, req.ImageInput, "adjustment", req.Prompt, func(ctx context.Context, a edit.ImageAsset) (edit.EditResult, error) {
		return h.ed.ApplyAdjustment(ctx, a, req.Prompt)
	})
}

func (h *Handle) run(w http.ResponseWriter, r *http.Request, in ImageInput, op, prompt string,
	call func(ctx context.Context, a edit.ImageAsset) (edit.EditResult, error)) {
	asset, err := in.asset()
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	started := time.Now()
	res, err := call(ctx, asset)
	h.record(ctx, op, prompt, asset, started, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EditResponse{DataURL: res.DataURL})
}
