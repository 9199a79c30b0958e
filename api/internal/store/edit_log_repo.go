package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EditLogRepo: журнал всех обращений к модели (успешных и нет).
type EditLogRepo struct{ DB *sql.DB }

func NewEditLogRepo(db *sql.DB) *EditLogRepo { return &EditLogRepo{DB: db} }

type EditLogEntry struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Source    string // "api" | "telegram"
	ChatID    int64  // 0: не из чата
	Operation string
	Prompt    string
	Model     string
	ImageHash string
	Status    string // "ok" | "error"
	ErrorKind string
	ErrorText string
	Duration  time.Duration
	RequestID string // X-Request-Id HTTP-запроса, если был
}

// Insert пишет запись; пустой ID генерируется.
func (r *EditLogRepo) Insert(ctx context.Context, e EditLogEntry) (uuid.UUID, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	var chatID sql.NullInt64
	if e.ChatID != 0 {
		chatID = sql.NullInt64{Int64: e.ChatID, Valid: true}
	}
	const q = `
insert into edit_log (id, source, chat_id, operation, prompt, model, image_hash, status, error_kind, error_text, duration_ms, request_id)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.DB.ExecContext(ctx, q,
		e.ID.String(), e.Source, chatID, e.Operation, e.Prompt, e.Model, e.ImageHash,
		e.Status, e.ErrorKind, e.ErrorText, e.Duration.Milliseconds(), e.RequestID,
	)
	return e.ID, err
}

// RecentByChat: последние записи чата, новые сверху.
func (r *EditLogRepo) RecentByChat(ctx context.Context, chatID int64, limit int) ([]EditLogEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
select id, created_at, source, operation, prompt, model, image_hash, status, error_kind, error_text, duration_ms, request_id
from edit_log
where chat_id=$1
order by created_at desc
limit $2`
	rows, err := r.DB.QueryContext(ctx, q, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EditLogEntry
	for rows.Next() {
		var (
			e  EditLogEntry
			id string
			ms int64
		)
		if err := rows.Scan(&id, &e.CreatedAt, &e.Source, &e.Operation, &e.Prompt, &e.Model,
			&e.ImageHash, &e.Status, &e.ErrorKind, &e.ErrorText, &ms, &e.RequestID); err != nil {
			return nil, err
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		e.ChatID = chatID
		e.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeOlderThan удаляет старые записи журнала.
func (r *EditLogRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	res, err := r.DB.ExecContext(ctx, `delete from edit_log where created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
