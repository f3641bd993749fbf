package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"llmwars/models"
)

// Store persists battle snapshots and votes. Persistence is best-effort by
// design: the orchestrator logs SaveBattle failures and keeps going, so
// implementations must never be required for a battle to succeed.
type Store interface {
	SaveBattle(ctx context.Context, state *models.BattleState) error
	LoadBattle(ctx context.Context, id string) (*models.BattleState, error)
	SaveVote(ctx context.Context, battleID string, provider models.Provider) error
	VoteCounts(ctx context.Context, battleID string) (map[models.Provider]int, error)
	Close() error
}

// zeroVoteCounts returns the default tally: zero for every known provider.
func zeroVoteCounts() map[models.Provider]int {
	counts := make(map[models.Provider]int, len(models.Providers))
	for _, p := range models.Providers {
		counts[p] = 0
	}
	return counts
}

// noopStore is the adapter used when no database is configured. Every method
// succeeds and returns empty results, so callers never branch on whether a
// database exists.
type noopStore struct{}

// Noop returns a Store that persists nothing.
func Noop() Store {
	return noopStore{}
}

func (noopStore) SaveBattle(context.Context, *models.BattleState) error { return nil }

func (noopStore) LoadBattle(context.Context, string) (*models.BattleState, error) {
	return nil, nil
}

func (noopStore) SaveVote(context.Context, string, models.Provider) error { return nil }

func (noopStore) VoteCounts(context.Context, string) (map[models.Provider]int, error) {
	return zeroVoteCounts(), nil
}

func (noopStore) Close() error { return nil }

type postgresStore struct {
	db *sql.DB
}

// Postgres connects to the database at url, verifies the connection and
// creates the schema.
func Postgres(url string) (Store, error) {
	conn, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &postgresStore{db: conn}, nil
}

// SaveBattle upserts a battle snapshot keyed by battle identifier.
func (s *postgresStore) SaveBattle(ctx context.Context, state *models.BattleState) error {
	configJSON, err := json.Marshal(state.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	messagesJSON, err := json.Marshal(state.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO battles (id, config, messages, status, current_round, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			config = EXCLUDED.config,
			messages = EXCLUDED.messages,
			status = EXCLUDED.status,
			current_round = EXCLUDED.current_round,
			error_message = EXCLUDED.error_message,
			updated_at = NOW()`,
		state.ID, configJSON, messagesJSON, string(state.Status), state.CurrentRound,
		nullableString(state.ErrorMessage))
	if err != nil {
		return fmt.Errorf("failed to save battle %s: %w", state.ID, err)
	}
	return nil
}

// LoadBattle returns the stored snapshot for id, or nil when unknown.
func (s *postgresStore) LoadBattle(ctx context.Context, id string) (*models.BattleState, error) {
	var (
		configJSON   []byte
		messagesJSON []byte
		status       string
		currentRound int
		errorMessage sql.NullString
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT config, messages, status, current_round, error_message FROM battles WHERE id = $1`, id)
	if err := row.Scan(&configJSON, &messagesJSON, &status, &currentRound, &errorMessage); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load battle %s: %w", id, err)
	}

	state := &models.BattleState{
		ID:           id,
		CurrentRound: currentRound,
		Status:       models.BattleStatus(status),
		ErrorMessage: errorMessage.String,
	}
	if err := json.Unmarshal(configJSON, &state.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config for battle %s: %w", id, err)
	}
	if err := json.Unmarshal(messagesJSON, &state.Messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages for battle %s: %w", id, err)
	}
	return state, nil
}

func (s *postgresStore) SaveVote(ctx context.Context, battleID string, provider models.Provider) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO votes (id, battle_id, provider, created_at) VALUES ($1, $2, $3, NOW())`,
		uuid.NewString(), battleID, string(provider))
	if err != nil {
		return fmt.Errorf("failed to save vote for battle %s: %w", battleID, err)
	}
	return nil
}

// VoteCounts tallies votes per provider for a battle. Providers with no
// votes are present with a zero count.
func (s *postgresStore) VoteCounts(ctx context.Context, battleID string) (map[models.Provider]int, error) {
	counts := zeroVoteCounts()

	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, COUNT(*) FROM votes WHERE battle_id = $1 GROUP BY provider`, battleID)
	if err != nil {
		log.Printf("Error counting votes for battle %s: %v", battleID, err)
		return counts, nil
	}
	defer rows.Close()

	for rows.Next() {
		var provider string
		var count int
		if err := rows.Scan(&provider, &count); err != nil {
			log.Printf("Error scanning vote row for battle %s: %v", battleID, err)
			continue
		}
		counts[models.Provider(provider)] = count
	}
	return counts, nil
}

func (s *postgresStore) Close() error {
	return s.db.Close()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
