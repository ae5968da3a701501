package server

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lox/holdemtables/internal/game"
)

//go:embed schema.sql
var schema embed.FS

// pgxDB is the part of *pgxpool.Pool the store uses.
type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore holds room configuration and hand results.
type PostgresStore struct {
	db pgxDB
}

// OpenPostgres connects to the database at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &PostgresStore{db: pool}, nil
}

func (s *PostgresStore) Close()                         { s.db.Close() }
func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, string(sqlBytes))
	return err
}

// SaveRoomConfig registers a room, keeping its status if it already exists.
func (s *PostgresStore) SaveRoomConfig(ctx context.Context, roomID string, rc RoomConfig) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO game_rooms(id, small_blind, big_blind, max_players, creator_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		  SET small_blind = EXCLUDED.small_blind,
		      big_blind = EXCLUDED.big_blind,
		      max_players = EXCLUDED.max_players,
		      creator_id = EXCLUDED.creator_id,
		      updated_at = now()
	`, roomID, rc.SmallBlind, rc.BigBlind, rc.MaxPlayers, rc.CreatorID)
	return err
}

func (s *PostgresStore) LoadRoomConfig(ctx context.Context, roomID string) (RoomConfig, error) {
	var rc RoomConfig
	err := s.db.QueryRow(ctx, `
		SELECT small_blind, big_blind, max_players, creator_id
		  FROM game_rooms WHERE id = $1
	`, roomID).Scan(&rc.SmallBlind, &rc.BigBlind, &rc.MaxPlayers, &rc.CreatorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoomConfig{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return rc, err
}

func (s *PostgresStore) SetRoomStatus(ctx context.Context, roomID, status string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE game_rooms SET status = $2, updated_at = now() WHERE id = $1
	`, roomID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return nil
}

func (s *PostgresStore) RecordHandResult(ctx context.Context, roomID string, deltas []game.SeatDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range deltas {
		batch.Queue(`
			INSERT INTO hand_results(room_id, seat_id, name, is_ai, chips_change, final_chips, winner)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, roomID, d.SeatID, d.Name, d.IsAI, d.Delta, d.FinalChips, d.Won)
	}
	br := s.db.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()
	for range deltas {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("record hand result: %w", err)
		}
	}
	return nil
}

// PlayerStats summarises a player's recorded hands.
type PlayerStats struct {
	SeatID    string `json:"seat_id"`
	Hands     int    `json:"hands"`
	Wins      int    `json:"wins"`
	NetChips  int    `json:"net_chips"`
	LastChips int    `json:"last_chips"`
}

// PlayerStats aggregates the hand results recorded for seatID.
func (s *PostgresStore) PlayerStats(ctx context.Context, seatID string) (PlayerStats, error) {
	st := PlayerStats{SeatID: seatID}
	err := s.db.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE winner),
		       coalesce(sum(chips_change), 0),
		       coalesce((SELECT final_chips FROM hand_results
		                  WHERE seat_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1), 0)
		  FROM hand_results WHERE seat_id = $1
	`, seatID).Scan(&st.Hands, &st.Wins, &st.NetChips, &st.LastChips)
	return st, err
}
