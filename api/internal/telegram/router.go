package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"retouch-bot/api/internal/edit"
	"retouch-bot/api/internal/store"
	"retouch-bot/api/internal/util"
)

// BotClient: часть tgbotapi.BotAPI, которой пользуется роутер.
type BotClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// History: версии картинки чата (store.HistoryRepo).
type History interface {
	Start(ctx context.Context, chatID int64, asset edit.ImageAsset) (*store.Version, error)
	Push(ctx context.Context, chatID int64, asset edit.ImageAsset, operation, prompt string) (*store.Version, error)
	Current(ctx context.Context, chatID int64) (*store.Version, error)
	Undo(ctx context.Context, chatID int64) (*store.Version, error)
	Redo(ctx context.Context, chatID int64) (*store.Version, error)
	Rewind(ctx context.Context, chatID int64) (*store.Version, error)
	Clear(ctx context.Context, chatID int64) error
}

// EditLog: журнал обращений к модели (store.EditLogRepo).
type EditLog interface {
	Insert(ctx context.Context, e store.EditLogEntry) (uuid.UUID, error)
	RecentByChat(ctx context.Context, chatID int64, limit int) ([]store.EditLogEntry, error)
}

type Router struct {
	Bot    BotClient
	Editor edit.Editor
	Models edit.Models

	// необязательные: без БД история живёт только в памяти (одна версия), журнал не пишется
	History History
	EditLog EditLog

	MaxUploadBytes int64

	sessions sync.Map // chatID -> *session
	jobs     sync.WaitGroup
}

// Wait ждёт завершения фоновых запросов к модели.
func (r *Router) Wait() { r.jobs.Wait() }

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	msg := upd.Message
	if msg == nil {
		return
	}
	cid := msg.Chat.ID

	switch {
	case msg.IsCommand():
		r.handleCommand(ctx, msg)
	case len(msg.Photo) > 0:
		ph := msg.Photo[len(msg.Photo)-1] // самое большое превью
		r.acceptImage(ctx, cid, ph.FileID, "", int64(ph.FileSize))
	case msg.Document != nil && strings.HasPrefix(strings.ToLower(msg.Document.MimeType), "image/"):
		r.acceptImage(ctx, cid, msg.Document.FileID, msg.Document.MimeType, int64(msg.Document.FileSize))
	case strings.TrimSpace(msg.Text) != "":
		r.onText(ctx, cid, msg.Text)
	}
}

func (r *Router) maxUpload() int64 {
	if r.MaxUploadBytes > 0 {
		return r.MaxUploadBytes
	}
	return 20 << 20
}

func (r *Router) acceptImage(ctx context.Context, chatID int64, fileID, mime string, size int64) {
	if size > r.maxUpload() {
		r.send(chatID, fmt.Sprintf("The image is too large (%d MB max).", r.maxUpload()>>20))
		return
	}
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.sendError(chatID, err)
		return
	}
	data, err := download(ctx, url, r.maxUpload())
	if err != nil {
		r.sendError(chatID, err)
		return
	}
	mime = util.PickMIME(mime, data)
	if mime == "" {
		r.send(chatID, "Could not recognise this file as an image. Please send a JPEG, PNG or WebP.")
		return
	}
	asset := edit.ImageAsset{Data: data, MIME: mime}

	s := r.session(ctx, chatID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		r.send(chatID, busyText)
		return
	}
	if r.History != nil {
		// без новой истории Push лёг бы поверх версий прежнего фото
		if _, err := r.History.Start(ctx, chatID, asset); err != nil {
			util.Logger.Error("history start failed", zap.Int64("chat_id", chatID), zap.Error(err))
			r.send(chatID, "Could not save this photo. Please send it again.")
			return
		}
	}
	s.setCanvas(asset)
	r.send(chatID, "Image received. Detect objects to edit them one by one, or use /filter, /adjust or /retouch on the whole photo.")
	r.renderPanel(s)
}

func (r *Router) onText(ctx context.Context, chatID int64, text string) {
	s := r.session(ctx, chatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case !s.hasImage():
		r.send(chatID, noImageText)
	case s.busy():
		r.send(chatID, busyText)
	case s.panel.Selected() == nil:
		r.send(chatID, "Pick an object first (/objects), or use /filter, /adjust or /retouch.")
	default:
		s.panel.Type(text)
		r.renderPanel(s)
	}
}

func (r *Router) handleCallback(ctx context.Context, cb tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, ""))
		return
	}
	cid := cb.Message.Chat.ID
	note := r.onCallback(ctx, cid, cb.Message.MessageID, cb.Data)
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, note)) // ack
}

func (r *Router) onCallback(ctx context.Context, chatID int64, msgID int, data string) string {
	s := r.session(ctx, chatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasImage() {
		return "Send a photo first."
	}
	if msgID != s.panelMsgID {
		return "This panel is out of date."
	}

	action, idx, ok := parseCallback(data)
	if !ok {
		return ""
	}
	note := ""
	switch action {
	case cbDetect:
		if !s.panel.Detect() {
			note = "Detection is not available right now."
		}
	case cbObject:
		s.panel.Click(idx)
	case cbPeek:
		s.panel.Hover(idx)
	case cbGenerate:
		if !s.panel.Submit() {
			note = "Type your edit as a message first."
		}
	}
	r.dispatch(ctx, s)
	r.renderPanel(s)
	return note
}

// dispatch исполняет намерения, которые панель передала через колбэки. Вызывается под s.mu.
func (r *Router) dispatch(ctx context.Context, s *session) {
	if s.peek != nil {
		obj := *s.peek
		s.peek = nil
		r.sendHighlight(s, obj)
		s.panel.Unhover()
	}

	in := s.intent
	s.intent = intent{}
	switch in.kind {
	case intentDetect:
		r.startDetect(ctx, s)
	case intentGenerate:
		sel := s.panel.Selected()
		if sel == nil {
			return
		}
		w, h, err := imageSize(s.image)
		if err != nil {
			r.sendError(s.chatID, err)
			return
		}
		box := edit.ScaleBox(sel.BoundingBox, w, h)
		prompt := in.prompt
		r.startEdit(ctx, s, "object edit", prompt, func(ctx context.Context, a edit.ImageAsset) (edit.EditResult, error) {
			return r.Editor.EditRegion(ctx, a, prompt, box)
		})
	}
}

func (r *Router) record(ctx context.Context, chatID int64, op, prompt string, asset edit.ImageAsset, started time.Time, err error) {
	if err != nil {
		util.Logger.Warn("edit failed", zap.Int64("chat_id", chatID), zap.String("op", op), zap.String("kind", edit.Kind(err)), zap.Error(err))
	}
	if r.EditLog == nil {
		return
	}
	e := store.EditLogEntry{
		Source:    "telegram",
		ChatID:    chatID,
		Operation: op,
		Prompt:    prompt,
		Model:     r.Models.For(op),
		ImageHash: util.SHA256Hex(asset.Data),
		Status:    "ok",
		Duration:  time.Since(started),
	}
	if err != nil {
		e.Status = "error"
		e.ErrorKind = edit.Kind(err)
		e.ErrorText = err.Error()
	}
	if _, lerr := r.EditLog.Insert(context.WithoutCancel(ctx), e); lerr != nil {
		util.Logger.Warn("edit log insert failed", zap.Error(lerr))
	}
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		util.Logger.Warn("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) sendError(chatID int64, err error) {
	r.send(chatID, "⚠️ "+util.Truncate(err.Error(), 3900))
}
