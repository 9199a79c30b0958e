package store

import (
	"context"
	"database/sql"
)

const schemaSQL = `
create table if not exists image_versions (
  id          bigserial primary key,
  chat_id     bigint      not null,
  seq         int         not null,
  image       bytea       not null,
  mime        text        not null,
  image_hash  text        not null,
  operation   text        not null default '',
  prompt      text        not null default '',
  created_at  timestamptz not null default now(),
  unique (chat_id, seq)
);

create table if not exists history_cursor (
  chat_id     bigint primary key,
  current_seq int    not null
);

create table if not exists edit_log (
  id          uuid primary key,
  created_at  timestamptz not null default now(),
  source      text        not null,
  chat_id     bigint,
  operation   text        not null,
  prompt      text        not null default '',
  model       text        not null default '',
  image_hash  text        not null default '',
  status      text        not null,
  error_kind  text        not null default '',
  error_text  text        not null default '',
  duration_ms bigint      not null default 0,
  request_id  text        not null default ''
);
alter table edit_log add column if not exists request_id text not null default '';
create index if not exists edit_log_chat_idx on edit_log (chat_id, created_at desc);`

// EnsureSchema создаёт таблицы, если их ещё нет.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}
