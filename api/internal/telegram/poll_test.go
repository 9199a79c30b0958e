package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryDelayFromError(t *testing.T) {
	tests := []struct {
		err  error
		want time.Duration
	}{
		{nil, 0},
		{errors.New("Too Many Requests: retry after 7"), 7 * time.Second},
		{errors.New("too many requests"), 3 * time.Second},
		{timeoutErr{}, 2 * time.Second},
		{errors.New("connection refused"), 1 * time.Second},
	}
	for _, tt := range tests {
		if got := retryDelayFromError(tt.err); got != tt.want {
			t.Errorf("retryDelayFromError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestWebhookPath(t *testing.T) {
	p := WebhookPath("123:abc")
	if !strings.HasPrefix(p, "/webhook/") || len(p) != len("/webhook/")+16 {
		t.Fatalf("path = %q", p)
	}
	if p != WebhookPath("123:abc") || p == WebhookPath("123:abd") {
		t.Fatal("path must be stable and token-specific")
	}
}

type fakeUpdater struct {
	calls   int
	offsets []int
	cancel  context.CancelFunc
}

func (f *fakeUpdater) GetUpdates(c tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.calls++
	f.offsets = append(f.offsets, c.Offset)
	switch f.calls {
	case 1:
		return []tgbotapi.Update{{UpdateID: 10}, {UpdateID: 11}}, nil
	default:
		f.cancel()
		return nil, nil
	}
}

func TestRunPollingAdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	u := &fakeUpdater{cancel: cancel}
	var got []int
	if err := RunPolling(ctx, u, func(upd tgbotapi.Update) { got = append(got, upd.UpdateID) }); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 10 || got[1] != 11 {
		t.Fatalf("handled = %v", got)
	}
	if len(u.offsets) != 2 || u.offsets[0] != 0 || u.offsets[1] != 12 {
		t.Fatalf("offsets = %v", u.offsets)
	}
}

func TestWebhookHandler(t *testing.T) {
	var got tgbotapi.Update
	h := WebhookHandler(func(u tgbotapi.Update) { got = u })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/x", strings.NewReader(`{"update_id":5,"message":{"message_id":1,"text":"hi","chat":{"id":42}}}`)))
	if rec.Code != http.StatusOK || got.UpdateID != 5 || got.Message == nil || got.Message.Chat.ID != 42 {
		t.Fatalf("code = %d update = %+v", rec.Code, got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/x", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
}
