package edit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"retouch-bot/api/internal/util"
)

// Service: адаптер «намерение пользователя → запрос к модели → типизированный результат».
// Ретраев и своих таймаутов нет: один запрос, один ответ.
type Service struct {
	tr Transport
}

func NewService(tr Transport) *Service {
	return &Service{tr: tr}
}

var _ Editor = (*Service)(nil)

func (s *Service) DetectObjects(ctx context.Context, asset ImageAsset) ([]DetectedObject, error) {
	if s.tr == nil {
		return nil, errors.New("edit: transport is not configured")
	}
	img, err := EncodeAsset(asset)
	if err != nil {
		return nil, err
	}
	util.Logger.Info("starting object detection", zap.String("transport", s.tr.Name()))

	body, err := s.tr.Extract(ctx, ExtractRequest{
		Image:  img,
		Prompt: BuildDetectPrompt(),
		Schema: DetectionSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("%s detect: %w", s.tr.Name(), err)
	}
	objects, err := ParseDetections(body)
	if err != nil {
		util.Logger.Error("failed to parse JSON from object detection response", zap.String("body", body), zap.Error(err))
		return nil, err
	}
	util.Logger.Info("object detection done", zap.Int("objects", len(objects)))
	return objects, nil
}

func (s *Service) EditAtPoint(ctx context.Context, asset ImageAsset, instruction string, spot Hotspot) (EditResult, error) {
	if strings.TrimSpace(instruction) == "" {
		return EditResult{}, ErrEmptyInstruction
	}
	util.Logger.Info("starting generative edit", zap.Int("x", spot.X), zap.Int("y", spot.Y))
	return s.generate(ctx, asset, BuildPointPrompt(instruction, spot), "edit")
}

func (s *Service) EditRegion(ctx context.Context, asset ImageAsset, instruction string, box BoundingBox) (EditResult, error) {
	if strings.TrimSpace(instruction) == "" {
		return EditResult{}, ErrEmptyInstruction
	}
	util.Logger.Info("starting object edit within bounding box", zap.Stringer("box", box))
	return s.generate(ctx, asset, BuildRegionPrompt(instruction, box), "object edit")
}

func (s *Service) ApplyFilter(ctx context.Context, asset ImageAsset, filter string) (EditResult, error) {
	if strings.TrimSpace(filter) == "" {
		return EditResult{}, ErrEmptyInstruction
	}
	util.Logger.Info("starting filter generation", zap.String("filter", filter))
	return s.generate(ctx, asset, BuildFilterPrompt(filter), "filter")
}

func (s *Service) ApplyAdjustment(ctx context.Context, asset ImageAsset, adjustment string) (EditResult, error) {
	if strings.TrimSpace(adjustment) == "" {
		return EditResult{}, ErrEmptyInstruction
	}
	util.Logger.Info("starting global adjustment generation", zap.String("adjustment", adjustment))
	return s.generate(ctx, asset, BuildAdjustmentPrompt(adjustment), "adjustment")
}

func (s *Service) generate(ctx context.Context, asset ImageAsset, prompt, operation string) (EditResult, error) {
	if s.tr == nil {
		return EditResult{}, errors.New("edit: transport is not configured")
	}
	img, err := EncodeAsset(asset)
	if err != nil {
		return EditResult{}, err
	}
	resp, err := s.tr.Generate(ctx, GenerateRequest{Image: img, Prompt: prompt})
	if err != nil {
		return EditResult{}, fmt.Errorf("%s %s: %w", s.tr.Name(), operation, err)
	}
	return DecodeImageResponse(resp, operation)
}
