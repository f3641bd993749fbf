package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"llmwars/db"
	"llmwars/models"
)

var (
	// ErrBattleNotFound means the identifier is unknown to both the
	// in-memory store and the durable store.
	ErrBattleNotFound = errors.New("battle not found")

	// ErrBattleBusy means a run or stream is already active for the
	// identifier. A battle is driven by at most one run at a time.
	ErrBattleBusy = errors.New("battle already running")
)

// defaultMessageDelay paces streamed messages so viewers can read them. It
// is a UX device, not backpressure.
const defaultMessageDelay = 2 * time.Second

const persistTimeout = 10 * time.Second

// BattleService orchestrates battles: it owns the in-memory battle table,
// drives rounds of provider calls in configuration order, and mirrors
// terminal snapshots to the durable store.
type BattleService struct {
	llm          TextGenerator
	store        db.Store
	messageDelay time.Duration

	mu      sync.RWMutex
	battles map[string]*models.BattleState
	running map[string]bool
}

// NewBattleService wires the orchestrator with its gateway and durable
// store. Pass db.Noop() when no database is configured.
func NewBattleService(llm TextGenerator, store db.Store) *BattleService {
	return &BattleService{
		llm:          llm,
		store:        store,
		messageDelay: defaultMessageDelay,
		battles:      make(map[string]*models.BattleState),
		running:      make(map[string]bool),
	}
}

// CreateBattle validates the request and stores a fresh pending battle.
func (s *BattleService) CreateBattle(req *models.BattleRequest) (*models.BattleState, error) {
	config, err := req.Validate()
	if err != nil {
		return nil, err
	}

	state := models.NewBattleState(config)
	s.mu.Lock()
	s.battles[state.ID] = state
	s.mu.Unlock()
	return state, nil
}

// GetBattle returns the battle for id, checking memory first and falling
// back to the durable store.
func (s *BattleService) GetBattle(ctx context.Context, id string) (*models.BattleState, error) {
	s.mu.RLock()
	state, ok := s.battles[id]
	s.mu.RUnlock()
	if ok {
		return state, nil
	}

	stored, err := s.store.LoadBattle(ctx, id)
	if err != nil {
		log.Printf("Error loading battle %s from store: %v", id, err)
	}
	if stored != nil {
		return stored, nil
	}
	return nil, ErrBattleNotFound
}

// GetBattleConfig returns the configuration for a battle, used to replay a
// past battle with the same setup.
func (s *BattleService) GetBattleConfig(ctx context.Context, id string) (*models.BattleConfig, error) {
	state, err := s.GetBattle(ctx, id)
	if err != nil {
		return nil, err
	}
	config := state.Config
	return &config, nil
}

// Response projects a battle state into its client-facing shape.
func (s *BattleService) Response(state *models.BattleState) *models.BattleResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]models.BattleMessage, len(state.Messages))
	copy(messages, state.Messages)

	return &models.BattleResponse{
		ID:           state.ID,
		Status:       state.Status,
		CurrentRound: state.CurrentRound,
		TotalRounds:  state.Config.Rounds,
		Messages:     messages,
		ErrorMessage: state.ErrorMessage,
	}
}

// AllBattles returns a response projection of every in-memory battle.
func (s *BattleService) AllBattles() []*models.BattleResponse {
	s.mu.RLock()
	states := make([]*models.BattleState, 0, len(s.battles))
	for _, state := range s.battles {
		states = append(states, state)
	}
	s.mu.RUnlock()

	responses := make([]*models.BattleResponse, 0, len(states))
	for _, state := range states {
		responses = append(responses, s.Response(state))
	}
	return responses
}

// Clear wipes the in-memory battle table. The durable store is untouched.
// Test and debug utility.
func (s *BattleService) Clear() {
	s.mu.Lock()
	s.battles = make(map[string]*models.BattleState)
	s.mu.Unlock()
}

// RunBattle runs every round to completion. Provider failures are captured
// into the battle state, not returned: the battle ends in Error status with
// whatever transcript was generated before the failure.
func (s *BattleService) RunBattle(ctx context.Context, id string) (*models.BattleState, error) {
	state, err := s.acquireRun(id)
	if err != nil {
		return nil, err
	}
	defer s.releaseRun(id)

	s.setStatus(state, models.StatusInProgress)

	if err := s.runRounds(ctx, state, nil); err != nil {
		s.failBattle(state, err)
		return state, nil
	}

	s.setStatus(state, models.StatusCompleted)
	s.persist(state)
	return state, nil
}

// RunBattleStream runs the battle like RunBattle but emits each transcript
// entry on the returned channel immediately after it is appended. Any
// transcript left by a previous run is discarded first, so a re-run always
// streams a clean battle. The message channel is closed when the run ends;
// the error channel then yields the terminal failure, if any. Cancelling
// ctx stops the producer, including mid-delay.
func (s *BattleService) RunBattleStream(ctx context.Context, id string) (<-chan models.BattleMessage, <-chan error, error) {
	state, err := s.acquireRun(id)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	state.Messages = []models.BattleMessage{}
	state.CurrentRound = 0
	state.ErrorMessage = ""
	state.Status = models.StatusInProgress
	s.mu.Unlock()

	messages := make(chan models.BattleMessage)
	errs := make(chan error, 1)

	go func() {
		// The run slot is released first so a consumer that drains the
		// channels can immediately start another run.
		defer close(messages)
		defer close(errs)
		defer s.releaseRun(id)

		emit := func(msg models.BattleMessage) error {
			select {
			case messages <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
			// Pacing between messages so viewers can follow along.
			select {
			case <-time.After(s.messageDelay):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := s.runRounds(ctx, state, emit); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Printf("Battle %s stream cancelled: %v", id, err)
				errs <- err
				return
			}
			s.failBattle(state, err)
			errs <- err
			return
		}

		s.setStatus(state, models.StatusCompleted)
		s.persist(state)
	}()

	return messages, errs, nil
}

// runRounds drives the round/participant loop. Participants are called
// strictly in configuration order: each call must see the exact transcript
// left by the previous one. When emit is non-nil it is invoked after every
// appended message; an emit error aborts the run.
func (s *BattleService) runRounds(ctx context.Context, state *models.BattleState, emit func(models.BattleMessage) error) error {
	for round := 1; round <= state.Config.Rounds; round++ {
		s.setRound(state, round)

		for _, llm := range state.Config.LLMs {
			content, err := s.generateResponse(ctx, state, llm)
			if err != nil {
				return err
			}

			msg := models.BattleMessage{
				Provider:    llm.Provider,
				Name:        llm.Name,
				Content:     content,
				RoundNumber: round,
			}
			s.appendMessage(state, msg)

			if emit != nil {
				if err := emit(msg); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// generateResponse builds the provider context from the transcript as it
// stands and calls the gateway.
func (s *BattleService) generateResponse(ctx context.Context, state *models.BattleState, llm models.LLMConfig) (string, error) {
	s.mu.RLock()
	history := make([]models.BattleMessage, len(state.Messages))
	copy(history, state.Messages)
	config := state.Config
	s.mu.RUnlock()

	systemPrompt := BuildSystemPrompt(llm.Persona, config.Topic, config.Mode, config.Language)
	turns := BuildConversation(history)

	return s.llm.GenerateResponse(ctx, llm.Provider, systemPrompt, turns)
}

// RecordVote stores one vote for a provider in a battle. Voting is
// decoupled from the run state machine; it only requires the identifier to
// exist.
func (s *BattleService) RecordVote(ctx context.Context, battleID string, provider models.Provider) error {
	if !provider.Valid() {
		return &models.ValidationError{Field: "provider", Reason: fmt.Sprintf("unknown provider %q", provider)}
	}
	if _, err := s.GetBattle(ctx, battleID); err != nil {
		return err
	}

	if err := s.store.SaveVote(ctx, battleID, provider); err != nil {
		log.Printf("Error saving vote for battle %s: %v", battleID, err)
	}
	return nil
}

// VoteCounts returns the tally for a battle, zero for providers without
// votes.
func (s *BattleService) VoteCounts(ctx context.Context, battleID string) (map[models.Provider]int, error) {
	return s.store.VoteCounts(ctx, battleID)
}

func (s *BattleService) acquireRun(id string) (*models.BattleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.battles[id]
	if !ok {
		return nil, ErrBattleNotFound
	}
	if s.running[id] {
		return nil, ErrBattleBusy
	}
	s.running[id] = true
	return state, nil
}

func (s *BattleService) releaseRun(id string) {
	s.mu.Lock()
	delete(s.running, id)
	s.mu.Unlock()
}

func (s *BattleService) setStatus(state *models.BattleState, status models.BattleStatus) {
	s.mu.Lock()
	state.Status = status
	s.mu.Unlock()
}

func (s *BattleService) setRound(state *models.BattleState, round int) {
	s.mu.Lock()
	state.CurrentRound = round
	s.mu.Unlock()
}

func (s *BattleService) appendMessage(state *models.BattleState, msg models.BattleMessage) {
	s.mu.Lock()
	state.Messages = append(state.Messages, msg)
	s.mu.Unlock()
}

func (s *BattleService) failBattle(state *models.BattleState, err error) {
	s.mu.Lock()
	state.Status = models.StatusError
	state.ErrorMessage = err.Error()
	s.mu.Unlock()
	s.persist(state)
}

// persist mirrors a snapshot to the durable store. Failures are logged and
// swallowed: losing a durability write must not fail the battle.
func (s *BattleService) persist(state *models.BattleState) {
	s.mu.RLock()
	snapshot := *state
	snapshot.Messages = make([]models.BattleMessage, len(state.Messages))
	copy(snapshot.Messages, state.Messages)
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.store.SaveBattle(ctx, &snapshot); err != nil {
		log.Printf("Error saving battle %s to store: %v", state.ID, err)
	}
}
