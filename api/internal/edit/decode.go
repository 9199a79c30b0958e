package edit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"retouch-bot/api/internal/util"
)

// DecodeImageResponse разбирает ответ модели строго по приоритету:
// блокировка запроса → картинка → нештатный finish reason → текст без картинки.
func DecodeImageResponse(resp GenerateResponse, operation string) (EditResult, error) {
	// 1) блокировка запроса важнее всего, даже если картинка тоже пришла
	if resp.Block != nil {
		err := &RequestBlockedError{Reason: resp.Block.Reason, Message: strings.TrimSpace(resp.Block.Message)}
		util.Logger.Error("request blocked", zap.String("op", operation), zap.String("reason", err.Reason))
		return EditResult{}, err
	}

	// 2) первая картинка
	for _, img := range resp.Images {
		if strings.TrimSpace(img.MIME) == "" || img.Data == "" {
			continue
		}
		util.Logger.Info("received image data", zap.String("op", operation), zap.String("mime", img.MIME))
		return EditResult{DataURL: img.DataURL()}, nil
	}

	// 3) остановка по safety и т.п.
	if resp.FinishReason != "" && resp.FinishReason != FinishReasonStop {
		err := &GenerationStoppedError{Operation: operation, Reason: resp.FinishReason}
		util.Logger.Error("generation stopped", zap.String("op", operation), zap.String("finish_reason", resp.FinishReason))
		return EditResult{}, err
	}

	// 4) модель ответила текстом
	err := &NoImageReturnedError{Operation: operation, Text: strings.TrimSpace(resp.Text)}
	util.Logger.Error("model response did not contain an image part", zap.String("op", operation), zap.String("text", err.Text))
	return EditResult{}, err
}

// ParseDetections декодирует JSON-ответ детекции. Порядок объектов сохраняется.
func ParseDetections(body string) ([]DetectedObject, error) {
	txt := util.StripCodeFences(body)
	if txt == "" {
		return nil, &MalformedResponseError{Body: body, Err: fmt.Errorf("empty response")}
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(txt)))
	var raw []struct {
		Name        *string `json:"name"`
		BoundingBox *struct {
			X1 *float64 `json:"x1"`
			Y1 *float64 `json:"y1"`
			X2 *float64 `json:"x2"`
			Y2 *float64 `json:"y2"`
		} `json:"boundingBox"`
	}
	if err := dec.Decode(&raw); err != nil {
		return nil, &MalformedResponseError{Body: body, Err: err}
	}
	if dec.More() {
		return nil, &MalformedResponseError{Body: body, Err: fmt.Errorf("trailing data after JSON array")}
	}
	if raw == nil {
		return nil, &MalformedResponseError{Body: body, Err: fmt.Errorf("expected a JSON array, got null")}
	}

	out := make([]DetectedObject, 0, len(raw))
	for i, r := range raw {
		if r.Name == nil || r.BoundingBox == nil {
			return nil, &MalformedResponseError{Body: body, Err: fmt.Errorf("item %d: name and boundingBox are required", i)}
		}
		bb := r.BoundingBox
		if bb.X1 == nil || bb.Y1 == nil || bb.X2 == nil || bb.Y2 == nil {
			return nil, &MalformedResponseError{Body: body, Err: fmt.Errorf("item %d: boundingBox requires x1,y1,x2,y2", i)}
		}
		out = append(out, DetectedObject{
			Name:        *r.Name,
			BoundingBox: BoundingBox{X1: *bb.X1, Y1: *bb.Y1, X2: *bb.X2, Y2: *bb.Y2},
		})
	}
	return out, nil
}
