package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"equity-token/db"
	"equity-token/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb"
)

const (
	participantPrefix = "participant:"
	indexPrefix       = "index:"
	eventPrefix       = "event:"
	stateKey          = "state"
)

// ErrNotFound is returned when a participant is not stored
var ErrNotFound = errors.New("not found")

// It abstracts the storage layer from the ledger logic
type LedgerRepositoryInterface interface {
	LoadParticipants() ([]*models.Participant, error)
	GetParticipant(wallet common.Address) (*models.Participant, error)
	LoadState() (*models.TokenState, error)
	GetEvents(limit int) ([]*models.Event, error)
	Commit(cs *Changeset) error
}

// Changeset is everything one ledger operation writes. It is committed as a
// single LevelDB batch, so either all of it lands or none of it does.
type Changeset struct {
	Added   []*models.Participant
	Updated []*models.Participant
	State   *models.TokenState
	Events  []*models.Event
}

// LedgerRepository implements the LedgerRepositoryInterface using LevelDB as the storage backend
type LedgerRepository struct {
	db *db.LevelDB
}

// NewLedgerRepository creates and returns a new LedgerRepository instance
func NewLedgerRepository(db *db.LevelDB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func participantKey(wallet common.Address) []byte {
	return []byte(participantPrefix + strings.ToLower(wallet.Hex()))
}

func indexKey(index uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", indexPrefix, index))
}

// Commit writes the changeset atomically
func (r *LedgerRepository) Commit(cs *Changeset) error {
	batch := new(leveldb.Batch)

	for _, p := range cs.Added {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		batch.Put(participantKey(p.Wallet), data)
		batch.Put(indexKey(p.Index), []byte(p.Wallet.Hex()))
	}
	for _, p := range cs.Updated {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		batch.Put(participantKey(p.Wallet), data)
	}
	if cs.State != nil {
		data, err := json.Marshal(cs.State)
		if err != nil {
			return err
		}
		batch.Put([]byte(stateKey), data)
	}
	for _, e := range cs.Events {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		batch.Put([]byte(eventPrefix+e.ID), data)
	}

	if err := r.db.Write(batch); err != nil {
		return fmt.Errorf("commit ledger batch: %w", err)
	}
	return nil
}

// GetParticipant retrieves a participant by wallet
func (r *LedgerRepository) GetParticipant(wallet common.Address) (*models.Participant, error) {
	data, err := r.db.Get(participantKey(wallet))
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var p models.Participant
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadParticipants returns every participant in insertion order
func (r *LedgerRepository) LoadParticipants() ([]*models.Participant, error) {
	iter := r.db.NewPrefixIterator([]byte(indexPrefix))
	defer iter.Release()

	var participants []*models.Participant
	for iter.Next() {
		wallet := common.HexToAddress(string(iter.Value()))
		p, err := r.GetParticipant(wallet)
		if err != nil {
			return nil, fmt.Errorf("index %s points at %s: %w", iter.Key(), wallet.Hex(), err)
		}
		participants = append(participants, p)
	}
	return participants, iter.Error()
}

// LoadState returns the stored token state, or nil if the ledger is empty
func (r *LedgerRepository) LoadState() (*models.TokenState, error) {
	data, err := r.db.Get([]byte(stateKey))
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st models.TokenState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetEvents returns the most recent events, oldest first. limit <= 0 returns all.
func (r *LedgerRepository) GetEvents(limit int) ([]*models.Event, error) {
	iter := r.db.NewPrefixIterator([]byte(eventPrefix))
	defer iter.Release()

	var events []*models.Event
	for iter.Next() {
		var e models.Event
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}
