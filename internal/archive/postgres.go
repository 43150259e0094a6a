package archive

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sudooom.cardroom/internal/config"
)

// Connect 创建 PostgreSQL 连接池并验证连通性
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS room_archive (
	room_id       TEXT        NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	last_activity TIMESTAMPTZ NOT NULL,
	archived_at   TIMESTAMPTZ NOT NULL,
	history_len   INTEGER     NOT NULL,
	PRIMARY KEY (room_id, created_at)
);

CREATE TABLE IF NOT EXISTS room_history (
	room_id         TEXT        NOT NULL,
	room_created_at TIMESTAMPTZ NOT NULL,
	seq             INTEGER     NOT NULL,
	entry_id        TEXT        NOT NULL,
	action          TEXT        NOT NULL,
	card_id         TEXT,
	card_suit       TEXT,
	card_value      TEXT,
	card_display    TEXT,
	card_full_name  TEXT,
	drawn_by        TEXT,
	performed_by    TEXT,
	cards_remaining INTEGER     NOT NULL,
	occurred_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (room_id, room_created_at, seq)
);
`

// Migrate 创建归档表
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return err
}
