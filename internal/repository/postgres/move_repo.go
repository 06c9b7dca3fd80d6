package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"gridlords/internal/model"
)

// MoveRepo handles move-log database operations.
type MoveRepo struct {
	db *sql.DB
}

// NewMoveRepo creates a MoveRepo.
func NewMoveRepo(db *sql.DB) *MoveRepo {
	return &MoveRepo{db: db}
}

// SaveMoves inserts a game's full move log in one transaction.
func (r *MoveRepo) SaveMoves(ctx context.Context, moves []model.MoveRecord) error {
	if len(moves) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO moves (game_id, seq, turn, seat, from_x, from_y, to_x, to_y, move_type, state_after)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		return fmt.Errorf("prepare insert move: %w", err)
	}
	defer stmt.Close()

	for _, m := range moves {
		_, err := stmt.ExecContext(ctx, m.GameID, m.Seq, m.Turn, m.Seat,
			m.FromX, m.FromY, m.ToX, m.ToY, m.MoveType, nullStr(m.StateAfter))
		if err != nil {
			return fmt.Errorf("insert move: %w", err)
		}
	}
	return tx.Commit()
}

// ListByGame returns a game's move log in play order.
func (r *MoveRepo) ListByGame(ctx context.Context, gameID string) ([]model.MoveRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, seq, turn, seat, from_x, from_y, to_x, to_y, move_type, state_after, created_at
		 FROM moves WHERE game_id = $1 ORDER BY seq`, gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("moves by game: %w", err)
	}
	defer rows.Close()

	var moves []model.MoveRecord
	for rows.Next() {
		var m model.MoveRecord
		var stateAfter sql.NullString
		if err := rows.Scan(&m.ID, &m.GameID, &m.Seq, &m.Turn, &m.Seat,
			&m.FromX, &m.FromY, &m.ToX, &m.ToY, &m.MoveType, &stateAfter, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		m.StateAfter = stateAfter.String
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
