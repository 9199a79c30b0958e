package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"retouch-bot/api/internal/edit"
	"retouch-bot/api/internal/util"
)

var (
	ErrNotFound  = sql.ErrNoRows
	ErrNoHistory = errors.New("store: nothing to undo/redo")
)

// HistoryRepo: стек версий картинки для чата (undo/redo).
// seq=1: оригинал; history_cursor указывает на текущую версию.
type HistoryRepo struct{ DB *sql.DB }

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{DB: db} }

type Version struct {
	ChatID    int64
	Seq       int
	Asset     edit.ImageAsset
	ImageHash string
	Operation string
	Prompt    string
	CreatedAt time.Time
	HasRedo   bool
}

// Start: новая картинка: вся прежняя история чата удаляется.
func (r *HistoryRepo) Start(ctx context.Context, chatID int64, asset edit.ImageAsset) (*Version, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from image_versions where chat_id=$1`, chatID); err != nil {
		return nil, err
	}
	if err := insertVersion(ctx, tx, chatID, 1, asset, "original", ""); err != nil {
		return nil, err
	}
	if err := setCursor(ctx, tx, chatID, 1); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.Current(ctx, chatID)
}

// Push добавляет результат правки поверх текущей версии; «хвост» для redo отбрасывается.
func (r *HistoryRepo) Push(ctx context.Context, chatID int64, asset edit.ImageAsset, operation, prompt string) (*Version, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var cur int
	err = tx.QueryRowContext(ctx, `select current_seq from history_cursor where chat_id=$1 for update`, chatID).Scan(&cur)
	if err != nil {
		return nil, err // ErrNotFound: истории нет, сначала Start
	}
	if _, err := tx.ExecContext(ctx, `delete from image_versions where chat_id=$1 and seq>$2`, chatID, cur); err != nil {
		return nil, err
	}
	if err := insertVersion(ctx, tx, chatID, cur+1, asset, operation, prompt); err != nil {
		return nil, err
	}
	if err := setCursor(ctx, tx, chatID, cur+1); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.Current(ctx, chatID)
}

func (r *HistoryRepo) Current(ctx context.Context, chatID int64) (*Version, error) {
	const q = `
select v.seq, v.image, v.mime, v.image_hash, v.operation, v.prompt, v.created_at,
       exists(select 1 from image_versions n where n.chat_id=v.chat_id and n.seq=v.seq+1) as has_redo
from history_cursor c
join image_versions v on v.chat_id=c.chat_id and v.seq=c.current_seq
where c.chat_id=$1`
	v := &Version{ChatID: chatID}
	err := r.DB.QueryRowContext(ctx, q, chatID).Scan(
		&v.Seq, &v.Asset.Data, &v.Asset.MIME, &v.ImageHash, &v.Operation, &v.Prompt, &v.CreatedAt, &v.HasRedo)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *HistoryRepo) Undo(ctx context.Context, chatID int64) (*Version, error) {
	return r.move(ctx, chatID, `
update history_cursor set current_seq=current_seq-1
where chat_id=$1 and current_seq>1`)
}

func (r *HistoryRepo) Redo(ctx context.Context, chatID int64) (*Version, error) {
	return r.move(ctx, chatID, `
update history_cursor c set current_seq=current_seq+1
where c.chat_id=$1
  and exists(select 1 from image_versions v where v.chat_id=c.chat_id and v.seq=c.current_seq+1)`)
}

// Rewind возвращает к оригиналу; последующие версии остаются доступны через Redo.
func (r *HistoryRepo) Rewind(ctx context.Context, chatID int64) (*Version, error) {
	return r.move(ctx, chatID, `
update history_cursor set current_seq=1
where chat_id=$1 and current_seq>1`)
}

// Clear удаляет всю историю чата.
func (r *HistoryRepo) Clear(ctx context.Context, chatID int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `delete from history_cursor where chat_id=$1`, chatID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from image_versions where chat_id=$1`, chatID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *HistoryRepo) move(ctx context.Context, chatID int64, q string) (*Version, error) {
	res, err := r.DB.ExecContext(ctx, q, chatID)
	if err != nil {
		return nil, err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return nil, ErrNoHistory
	}
	return r.Current(ctx, chatID)
}

func insertVersion(ctx context.Context, tx *sql.Tx, chatID int64, seq int, asset edit.ImageAsset, operation, prompt string) error {
	const q = `
insert into image_versions (chat_id, seq, image, mime, image_hash, operation, prompt)
values ($1,$2,$3,$4,$5,$6,$7)`
	_, err := tx.ExecContext(ctx, q, chatID, seq, asset.Data, asset.MIME, util.SHA256Hex(asset.Data), operation, prompt)
	return err
}

func setCursor(ctx context.Context, tx *sql.Tx, chatID int64, seq int) error {
	const q = `
insert into history_cursor (chat_id, current_seq) values ($1,$2)
on conflict (chat_id) do update set current_seq=excluded.current_seq`
	_, err := tx.ExecContext(ctx, q, chatID, seq)
	return err
}
