package telegram

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // decoder
	"image/jpeg"
	_ "image/png" // decoder
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // decoder

	"retouch-bot/api/internal/edit"
	"retouch-bot/api/internal/util"
)

const previewMaxSide = 1024

var (
	highlightColor = color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}
	dimColor       = color.RGBA{A: 0x80}
)

func download(ctx context.Context, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download: status %d: %s", resp.StatusCode, string(b))
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("download: file is larger than %d bytes", limit)
	}
	return b, nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}

func imageSize(a edit.ImageAsset) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(a.Data))
	if err != nil {
		return 0, 0, &edit.InvalidAssetError{Reason: "cannot read image size", Err: err}
	}
	return cfg.Width, cfg.Height, nil
}

// renderHighlight рисует уменьшенную копию картинки: всё вне бокса затемнено, бокс обведён.
// box: нормализованный, как из детекции.
func renderHighlight(a edit.ImageAsset, box edit.BoundingBox, maxSide int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(a.Data))
	if err != nil {
		return nil, &edit.InvalidAssetError{Reason: "cannot decode image", Err: err}
	}
	sb := src.Bounds()
	w, h := fitWithin(sb.Dx(), sb.Dy(), maxSide)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)

	px := edit.ScaleBox(box, w, h)
	r := image.Rect(int(px.X1), int(px.Y1), int(px.X2), int(px.Y2))
	dim := &image.Uniform{C: dimColor}
	for _, out := range []image.Rectangle{
		image.Rect(0, 0, w, r.Min.Y),
		image.Rect(0, r.Max.Y, w, h),
		image.Rect(0, r.Min.Y, r.Min.X, r.Max.Y),
		image.Rect(r.Max.X, r.Min.Y, w, r.Max.Y),
	} {
		if !out.Empty() {
			draw.Draw(dst, out, dim, image.Point{}, draw.Over)
		}
	}
	strokeRect(dst, r, 3, highlightColor)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fitWithin уменьшает w×h так, чтобы большая сторона была не больше maxSide. Увеличения нет.
func fitWithin(w, h, maxSide int) (int, int) {
	if w <= maxSide && h <= maxSide {
		return w, h
	}
	if w >= h {
		nh := h * maxSide / w
		return maxSide, max(nh, 1)
	}
	nw := w * maxSide / h
	return max(nw, 1), maxSide
}

func strokeRect(dst *image.RGBA, r image.Rectangle, width int, c color.Color) {
	u := &image.Uniform{C: c}
	for _, edge := range []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	} {
		draw.Draw(dst, edge.Intersect(dst.Bounds()), u, image.Point{}, draw.Src)
	}
}

func fileName(mime string) string {
	switch mime {
	case "image/png":
		return "image.png"
	case "image/webp":
		return "image.webp"
	case "image/gif":
		return "image.gif"
	default:
		return "image.jpg"
	}
}

func (r *Router) sendImage(chatID int64, a edit.ImageAsset, caption string) {
	ph := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: fileName(a.MIME), Bytes: a.Data})
	ph.Caption = caption
	if _, err := r.Bot.Send(ph); err != nil {
		util.Logger.Warn("send photo failed", zap.Int64("chat_id", chatID), zap.Error(err))
		r.sendError(chatID, fmt.Errorf("could not send the image: %w", err))
	}
}

// sendHighlight показывает, где находится объект. Вызывается под s.mu.
func (r *Router) sendHighlight(s *session, obj edit.DetectedObject) {
	data, err := renderHighlight(s.image, obj.BoundingBox, previewMaxSide)
	if err != nil {
		r.sendError(s.chatID, err)
		return
	}
	r.sendImage(s.chatID, edit.ImageAsset{Data: data, MIME: "image/jpeg"}, "👁 "+obj.Name)
}
