package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sudooom.cardroom/internal/deck"
	"sudooom.cardroom/internal/room"
)

// Archiver 把被清理房间的历史写入 PostgreSQL
// 同一个房间码可能被复用，归档以 (room_id, created_at) 区分
type Archiver struct {
	db     *pgxpool.Pool
	now    func() time.Time
	logger *slog.Logger
}

func NewArchiver(db *pgxpool.Pool) *Archiver {
	return &Archiver{
		db:     db,
		now:    time.Now,
		logger: slog.Default().With("component", "Archiver"),
	}
}

// Ping 健康检查
func (a *Archiver) Ping(ctx context.Context) error {
	return a.db.Ping(ctx)
}

// Hook 作为 room.Reaper 的清理回调
func (a *Archiver) Hook() room.EvictFunc {
	return func(ctx context.Context, evicted []room.Evicted) {
		if err := a.Archive(ctx, evicted); err != nil {
			a.logger.Error("Failed to archive rooms", "count", len(evicted), "error", err)
		}
	}
}

// Archive 在一个事务内写入所有房间
func (a *Archiver) Archive(ctx context.Context, evicted []room.Evicted) error {
	if len(evicted) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	archivedAt := a.now()
	for _, e := range evicted {
		queueRoom(batch, e, archivedAt)
	}

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("archive batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}

	a.logger.Info("Rooms archived", "count", len(evicted), "statements", batch.Len())
	return nil
}

const (
	insertRoomSQL = `
		INSERT INTO room_archive (room_id, created_at, last_activity, archived_at, history_len)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, created_at) DO NOTHING
	`
	insertEntrySQL = `
		INSERT INTO room_history (room_id, room_created_at, seq, entry_id, action,
			card_id, card_suit, card_value, card_display, card_full_name,
			drawn_by, performed_by, cards_remaining, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (room_id, room_created_at, seq) DO NOTHING
	`
)

func queueRoom(batch *pgx.Batch, e room.Evicted, archivedAt time.Time) {
	batch.Queue(insertRoomSQL, e.ID, e.CreatedAt, e.LastActivity, archivedAt, len(e.History))
	for i, h := range e.History {
		batch.Queue(insertEntrySQL, entryArgs(e, i, h)...)
	}
}

func entryArgs(e room.Evicted, seq int, h room.HistoryEntry) []any {
	var cardID, suit, value, display, fullName *string
	if h.Card != nil {
		cardID, suit, value = &h.Card.ID, &h.Card.Suit, &h.Card.Value
		display, fullName = &h.Card.Display, &h.Card.FullName
	}
	return []any{
		e.ID, e.CreatedAt, seq, h.ID, h.Action,
		cardID, suit, value, display, fullName,
		nullable(h.DrawnBy), nullable(h.PerformedBy), h.CardsRemaining, h.Timestamp,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// History 读取某个房间最近一次归档的历史，按发生顺序返回
func (a *Archiver) History(ctx context.Context, roomID string) ([]room.HistoryEntry, error) {
	query := `
		SELECT h.entry_id, h.action, h.card_id, h.card_suit, h.card_value, h.card_display,
			h.card_full_name, h.drawn_by, h.performed_by, h.cards_remaining, h.occurred_at
		FROM room_history h
		WHERE h.room_id = $1 AND h.room_created_at = (
			SELECT MAX(created_at) FROM room_archive WHERE room_id = $1
		)
		ORDER BY h.seq
	`
	rows, err := a.db.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []room.HistoryEntry
	for rows.Next() {
		var (
			h                                  room.HistoryEntry
			cardID, suit, value, display, name *string
			drawnBy, performedBy               *string
		)
		if err := rows.Scan(&h.ID, &h.Action, &cardID, &suit, &value, &display,
			&name, &drawnBy, &performedBy, &h.CardsRemaining, &h.Timestamp); err != nil {
			return nil, err
		}
		if cardID != nil {
			h.Card = &deck.Card{ID: *cardID, Suit: deref(suit), Value: deref(value), Display: deref(display), FullName: deref(name)}
		}
		h.DrawnBy = deref(drawnBy)
		h.PerformedBy = deref(performedBy)
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
