package history

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS snap_rounds (
	match_id    TEXT        NOT NULL,
	match_seq   INTEGER     NOT NULL DEFAULT 0,
	round       INTEGER     NOT NULL,
	outcome     TEXT        NOT NULL,
	winner_id   TEXT        NOT NULL DEFAULT '',
	loser_id    TEXT        NOT NULL DEFAULT '',
	loss        INTEGER     NOT NULL DEFAULT 0,
	stakes      INTEGER     NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (match_id, match_seq, round)
)`

type pgRecorder struct {
	db *sql.DB
}

// NewPostgresRecorder 建表（若不存在）并返回记录器；db 由 storage.NewPostgres 打开
func NewPostgresRecorder(ctx context.Context, db *sql.DB) (Recorder, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create snap_rounds: %w", err)
	}
	return &pgRecorder{db: db}, nil
}

// 同一场同一轮重复记录时以最后一次为准
func (p *pgRecorder) RecordRound(ctx context.Context, r RoundRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO snap_rounds (match_id, match_seq, round, outcome, winner_id, loser_id, loss, stakes, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (match_id, match_seq, round) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			winner_id = EXCLUDED.winner_id,
			loser_id = EXCLUDED.loser_id,
			loss = EXCLUDED.loss,
			stakes = EXCLUDED.stakes,
			finished_at = EXCLUDED.finished_at`,
		r.MatchID, r.Match, r.Round, r.Outcome, r.WinnerID, r.LoserID, r.Loss, r.Stakes, r.FinishedAt)
	return err
}

func (p *pgRecorder) Rounds(ctx context.Context, matchID string) ([]RoundRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT match_id, match_seq, round, outcome, winner_id, loser_id, loss, stakes, finished_at
		FROM snap_rounds WHERE match_id = $1 ORDER BY match_seq, round`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoundRecord
	for rows.Next() {
		var r RoundRecord
		if err := rows.Scan(&r.MatchID, &r.Match, &r.Round, &r.Outcome, &r.WinnerID, &r.LoserID, &r.Loss, &r.Stakes, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
