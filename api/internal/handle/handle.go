package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"retouch-bot/api/internal/edit"
	"retouch-bot/api/internal/store"
	"retouch-bot/api/internal/util"
)

// EditLog: куда писать журнал обращений (store.EditLogRepo). Может быть nil.
type EditLog interface {
	Insert(ctx context.Context, e store.EditLogEntry) (uuid.UUID, error)
}

type Handle struct {
	ed       edit.Editor
	log      EditLog
	models   edit.Models
	maxBytes int64
}

func New(ed edit.Editor, log EditLog, models edit.Models, maxUploadBytes int64) *Handle {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 << 20
	}
	return &Handle{ed: ed, log: log, models: models, maxBytes: maxUploadBytes}
}

// Routes собирает роутер API. healthz принимает произвольную проверку (например, ping БД).
func Routes(h *Handle, healthz func(ctx context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if healthz != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := healthz(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("not ok\n" + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1/edit", func(r chi.Router) {
		r.Post("/detect", h.Detect)
		r.Post("/point", h.Point)
		r.Post("/region", h.Region)
		r.Post("/filter", h.Filter)
		r.Post("/adjust", h.Adjust)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		util.Logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: err.Error(), Kind: edit.Kind(err)})
}

// statusFor: ошибки входа → 400, отказы модели → 422, битый ответ и транспорт → 502.
func statusFor(err error) int {
	var (
		invalid *edit.InvalidAssetError
		blocked *edit.RequestBlockedError
		stopped *edit.GenerationStoppedError
		noImage *edit.NoImageReturnedError
	)
	switch {
	case errors.Is(err, edit.ErrEmptyInstruction), errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &blocked), errors.As(err, &stopped), errors.As(err, &noImage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// maxRequestTimeout ограничивает X-Request-Timeout сверху.
const maxRequestTimeout = 600

// requestContext: своего дедлайна у адаптера нет; клиент может задать X-Request-Timeout (сек).
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			v = min(v, maxRequestTimeout)
			return context.WithTimeout(r.Context(), time.Duration(v)*time.Second)
		}
	}
	return context.WithCancel(r.Context())
}

func (h *Handle) record(ctx context.Context, op, prompt string, asset edit.ImageAsset, started time.Time, err error) {
	if h.log == nil {
		return
	}
	e := store.EditLogEntry{
		Source:    "api",
		Operation: op,
		Prompt:    prompt,
		Model:     h.models.For(op),
		ImageHash: util.SHA256Hex(asset.Data),
		Status:    "ok",
		Duration:  time.Since(started),
		RequestID: middleware.GetReqID(ctx),
	}
	if err != nil {
		e.Status = "error"
		e.ErrorKind = edit.Kind(err)
		e.ErrorText = err.Error()
	}
	if _, lerr := h.log.Insert(context.WithoutCancel(ctx), e); lerr != nil {
		util.Logger.Warn("edit log insert failed", zap.Error(lerr))
	}
}
