package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"retouch-bot/api/internal/edit"
	"retouch-bot/api/internal/store"
	"retouch-bot/api/internal/util"
)

const helpText = `Send a photo to start editing.

/objects: detect objects, then pick one and describe the change
/filter <style>: stylize the whole photo, e.g. /filter vintage film
/adjust <change>: photorealistic adjustment, e.g. /adjust warmer light
/retouch <x> <y> <change>: edit around a pixel, e.g. /retouch 120 80 remove the spot
/undo, /redo: step through versions
/original: back to the uploaded photo
/log: your recent edits
/reset: forget the current photo`

func (r *Router) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "objects":
		r.onDetectCommand(ctx, cid)
	case "filter":
		r.onWholeImage(ctx, cid, "filter", args, "Usage: /filter <style>, e.g. /filter vintage film",
			func(ctx context.Context, a edit.ImageAsset) (edit.EditResult, error) {
				return r.Editor.ApplyFilter(ctx, a, args)
			})
	case "adjust":
		r.onWholeImage(ctx, cid, "adjustment", args, "Usage: /adjust <change>, e.g. /adjust warmer light",
			func(ctx context.Context, a edit.ImageAsset) (edit.EditResult, error) {
				return r.Editor.ApplyAdjustment(ctx, a, args)
			})
	case "retouch":
		r.onRetouch(ctx, cid, args)
	case "undo", "redo", "original":
		r.onHistory(ctx, cid, msg.Command())
	case "log":
		r.onLog(ctx, cid)
	case "reset":
		r.onReset(ctx, cid)
	default:
		r.send(cid, "Unknown command. See /help")
	}
}

func (r *Router) onDetectCommand(ctx context.Context, chatID int64) {
	s := r.session(ctx, chatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasImage() {
		r.send(chatID, noImageText)
		return
	}
	if s.panel.Generating() {
		r.send(chatID, busyText)
		return
	}
	if s.panel.Detect() {
		r.dispatch(ctx, s)
	}
	// панель шлём новым сообщением, чтобы она была под рукой
	s.panelMsgID = 0
	r.renderPanel(s)
}

func (r *Router) onWholeImage(ctx context.Context, chatID int64, op, text, usage string, call editCall) {
	if text == "" {
		r.send(chatID, usage)
		return
	}
	s := r.session(ctx, chatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasImage() {
		r.send(chatID, noImageText)
		return
	}
	if s.busy() {
		r.send(chatID, busyText)
		return
	}
	r.startEdit(ctx, s, op, text, call)
	r.renderPanel(s)
}

// parseRetouchArgs разбирает "<x> <y> <instruction...>".
func parseRetouchArgs(args string) (edit.Hotspot, string, error) {
	f := strings.Fields(args)
	if len(f) < 3 {
		return edit.Hotspot{}, "", errors.New("usage: /retouch <x> <y> <change>")
	}
	x, errX := strconv.Atoi(f[0])
	y, errY := strconv.Atoi(f[1])
	if errX != nil || errY != nil || x < 0 || y < 0 {
		return edit.Hotspot{}, "", fmt.Errorf("bad point %q %q: x and y must be non-negative pixel numbers", f[0], f[1])
	}
	return edit.Hotspot{X: x, Y: y}, strings.Join(f[2:], " "), nil
}

func (r *Router) onRetouch(ctx context.Context, chatID int64, args string) {
	spot, text, err := parseRetouchArgs(args)
	if err != nil {
		r.send(chatID, err.Error())
		return
	}
	s := r.session(ctx, chatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasImage() {
		r.send(chatID, noImageText)
		return
	}
	if s.busy() {
		r.send(chatID, busyText)
		return
	}
	w, h, err := imageSize(s.image)
	if err != nil {
		r.sendError(chatID, err)
		return
	}
	if spot.X >= w || spot.Y >= h {
		r.send(chatID, fmt.Sprintf("Point (%d, %d) is outside the %dx%d image.", spot.X, spot.Y, w, h))
		return
	}
	r.startEdit(ctx, s, "edit", text, func(ctx context.Context, a edit.ImageAsset) (edit.EditResult, error) {
		return r.Editor.EditAtPoint(ctx, a, text, spot)
	})
	r.renderPanel(s)
}

func (r *Router) onHistory(ctx context.Context, chatID int64, cmd string) {
	if r.History == nil {
		r.send(chatID, "History is not available: no database is configured.")
		return
	}
	s := r.session(ctx, chatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy() {
		r.send(chatID, busyText)
		return
	}

	var (
		v   *store.Version
		err error
	)
	switch cmd {
	case "undo":
		v, err = r.History.Undo(ctx, chatID)
	case "redo":
		v, err = r.History.Redo(ctx, chatID)
	default:
		v, err = r.History.Rewind(ctx, chatID)
	}
	switch {
	case errors.Is(err, store.ErrNoHistory):
		r.send(chatID, "Nothing to "+cmd+".")
		return
	case errors.Is(err, store.ErrNotFound):
		r.send(chatID, noImageText)
		return
	case err != nil:
		r.sendError(chatID, err)
		return
	}

	s.setCanvas(v.Asset)
	r.sendImage(chatID, v.Asset, versionCaption(v))
	r.renderPanel(s)
}

func versionCaption(v *store.Version) string {
	if v.Seq == 1 {
		return "Original photo"
	}
	c := fmt.Sprintf("Version %d: %s", v.Seq, v.Operation)
	if v.Prompt != "" {
		c += ": " + v.Prompt
	}
	return c
}

func (r *Router) onReset(ctx context.Context, chatID int64) {
	s := r.session(ctx, chatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy() {
		r.send(chatID, busyText)
		return
	}
	if r.History != nil {
		if err := r.History.Clear(ctx, chatID); err != nil {
			r.sendError(chatID, err)
			return
		}
	}
	s.clear()
	r.send(chatID, "Done. Send a new photo to start over.")
}

const logLimit = 10

func (r *Router) onLog(ctx context.Context, chatID int64) {
	if r.EditLog == nil {
		r.send(chatID, "The edit log is not available: no database is configured.")
		return
	}
	entries, err := r.EditLog.RecentByChat(ctx, chatID, logLimit)
	if err != nil {
		r.sendError(chatID, err)
		return
	}
	if len(entries) == 0 {
		r.send(chatID, "No edits yet.")
		return
	}
	r.send(chatID, formatLog(entries))
}

// formatLog: по строке на запись, новые сверху.
func formatLog(entries []store.EditLogEntry) string {
	var b strings.Builder
	b.WriteString("Recent edits:")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n%s %s", e.CreatedAt.Format("2006-01-02 15:04"), e.Operation)
		if e.Prompt != "" {
			fmt.Fprintf(&b, " %q", util.Truncate(e.Prompt, 40))
		}
		if e.Status == "ok" {
			b.WriteString(": ok")
		} else {
			fmt.Fprintf(&b, ": failed (%s)", e.ErrorKind)
		}
		fmt.Fprintf(&b, ", %.1fs", e.Duration.Seconds())
	}
	return b.String()
}
