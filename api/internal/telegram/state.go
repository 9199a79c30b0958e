package telegram

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"retouch-bot/api/internal/edit"
	"retouch-bot/api/internal/panel"
	"retouch-bot/api/internal/util"
)

const (
	busyText    = "Please wait for the current operation to finish."
	noImageText = "Send a photo first."
)

type intentKind int

const (
	intentNone intentKind = iota
	intentDetect
	intentGenerate
)

type intent struct {
	kind   intentKind
	prompt string
}

// session: холст и панель одного чата. Все поля под mu.
type session struct {
	mu     sync.Mutex
	chatID int64

	image   edit.ImageAsset
	version int // растёт при каждой смене картинки; устаревшие ответы модели отбрасываются

	panel      *panel.Panel
	panelMsgID int

	// заполняются колбэками панели, исполняются в dispatch
	intent intent
	peek   *edit.DetectedObject
}

func newSession(chatID int64) *session {
	s := &session{chatID: chatID}
	s.panel = panel.New(panel.Callbacks{
		TriggerDetection: func() { s.intent = intent{kind: intentDetect} },
		TriggerGeneration: func(prompt string) {
			s.intent = intent{kind: intentGenerate, prompt: prompt}
		},
		OnHoverChange: func(obj *edit.DetectedObject) {
			if obj != nil {
				s.peek = obj
			}
		},
		OnSelectionChange: func(obj *edit.DetectedObject) {
			name := ""
			if obj != nil {
				name = obj.Name
			}
			util.Logger.Debug("selection changed", zap.Int64("chat_id", chatID), zap.String("object", name))
		},
	})
	return s
}

// session возвращает сессию чата; после рестарта холст поднимается из истории.
func (r *Router) session(ctx context.Context, chatID int64) *session {
	if v, ok := r.sessions.Load(chatID); ok {
		return v.(*session)
	}
	s := newSession(chatID)
	if r.History != nil {
		if v, err := r.History.Current(ctx, chatID); err == nil {
			s.image = v.Asset
		}
	}
	actual, _ := r.sessions.LoadOrStore(chatID, s)
	return actual.(*session)
}

func (s *session) hasImage() bool { return len(s.image.Data) > 0 }

func (s *session) busy() bool {
	return s.panel.Generating() || s.panel.Phase() == panel.Detecting
}

// setCanvas: новая текущая картинка: детекция от старой больше не действует.
func (s *session) setCanvas(a edit.ImageAsset) {
	s.image = a
	s.version++
	s.panel.ResetDetection()
	s.panelMsgID = 0
}

func (s *session) clear() {
	s.image = edit.ImageAsset{}
	s.version++
	s.panel.ResetDetection()
	s.panelMsgID = 0
}
