package telegram

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"retouch-bot/api/internal/edit"
	"retouch-bot/api/internal/util"
)

type editCall func(ctx context.Context, a edit.ImageAsset) (edit.EditResult, error)

// startDetect запускает детекцию в фоне. Вызывается под s.mu.
func (r *Router) startDetect(ctx context.Context, s *session) {
	s.panel.SetDetecting(true)
	asset, version := s.image, s.version

	r.jobs.Add(1)
	go func() {
		defer r.jobs.Done()
		started := time.Now()
		objs, err := r.Editor.DetectObjects(ctx, asset)
		r.record(ctx, s.chatID, "detect", "", asset, started, err)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.panel.SetDetecting(false)
		if s.version != version {
			return
		}
		if err != nil {
			r.sendError(s.chatID, err)
		} else {
			s.panel.SetObjects(objs)
		}
		r.renderPanel(s)
	}()
}

// startEdit запускает генерацию в фоне; успешный результат становится новой версией холста.
// Вызывается под s.mu.
func (r *Router) startEdit(ctx context.Context, s *session, op, prompt string, call editCall) {
	s.panel.SetGenerating(true)
	asset, version := s.image, s.version

	r.jobs.Add(1)
	go func() {
		defer r.jobs.Done()
		started := time.Now()
		res, err := call(ctx, asset)
		var out edit.ImageAsset
		if err == nil {
			out, err = res.Asset()
		}
		r.record(ctx, s.chatID, op, prompt, asset, started, err)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.panel.SetGenerating(false)
		if s.version != version {
			return
		}
		if err != nil {
			r.sendError(s.chatID, err)
			r.renderPanel(s)
			return
		}
		r.commit(ctx, s, out, op, prompt)
	}()
}

func (r *Router) commit(ctx context.Context, s *session, out edit.ImageAsset, op, prompt string) {
	caption := "✅ " + opTitle(op)
	if r.History != nil {
		v, err := r.History.Push(ctx, s.chatID, out, op, prompt)
		if err != nil {
			util.Logger.Warn("history push failed", zap.Int64("chat_id", s.chatID), zap.Error(err))
		} else {
			caption += fmt.Sprintf(" · version %d", v.Seq)
		}
	}
	s.setCanvas(out)
	r.sendImage(s.chatID, out, caption)
	r.renderPanel(s)
}

func opTitle(op string) string {
	switch op {
	case "filter":
		return "Filter applied"
	case "adjustment":
		return "Adjustment applied"
	case "object edit":
		return "Object edited"
	default:
		return "Retouch applied"
	}
}
