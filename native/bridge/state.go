package bridge

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"wacgbridge/storage"
)

// state is the per-call view of controller storage. Reads fall through to the
// database; writes are staged and reach the database only through commit, as
// one batch. Dropping a state without committing discards every staged write.
type state struct {
	db      storage.Database
	pending map[string][]byte
	order   []string
}

func newState(db storage.Database) *state {
	return &state{db: db, pending: make(map[string][]byte)}
}

func (s *state) get(key []byte, out interface{}) (bool, error) {
	raw, ok := s.pending[string(key)]
	if !ok {
		value, err := s.db.Get(key)
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("bridge state: read %s: %w", key, err)
		}
		raw = value
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("bridge state: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *state) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("bridge state: encode %s: %w", key, err)
	}
	k := string(key)
	if _, staged := s.pending[k]; !staged {
		s.order = append(s.order, k)
	}
	s.pending[k] = encoded
	return nil
}

// dirty reports whether any write is staged.
func (s *state) dirty() bool {
	return len(s.order) > 0
}

func (s *state) commit() error {
	if !s.dirty() {
		return nil
	}
	batch := s.db.NewBatch()
	for _, key := range s.order {
		batch.Put([]byte(key), s.pending[key])
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("bridge state: commit: %w", err)
	}
	s.pending = make(map[string][]byte)
	s.order = nil
	return nil
}

type storedConfig struct {
	Administrator     common.Address
	Operator          common.Address
	EmergencyRecovery common.Address
	Controller        common.Address
	ChainID           uint64
	OutboundMode      string
	Min               *big.Int
	MaxIn             *big.Int
	MaxOut            *big.Int
	CapIn             *big.Int
	CapOut            *big.Int
}

func (c storedConfig) params() Params {
	return Params{
		Roles: Roles{
			Administrator:     c.Administrator,
			Operator:          c.Operator,
			EmergencyRecovery: c.EmergencyRecovery,
		},
		Controller:   c.Controller,
		ChainID:      c.ChainID,
		OutboundMode: OutboundMode(c.OutboundMode),
		Limits: Limits{
			Min:    cloneAmount(c.Min),
			MaxIn:  cloneAmount(c.MaxIn),
			MaxOut: cloneAmount(c.MaxOut),
			CapIn:  cloneAmount(c.CapIn),
			CapOut: cloneAmount(c.CapOut),
		},
	}
}

func toStoredConfig(p Params) storedConfig {
	return storedConfig{
		Administrator:     p.Administrator,
		Operator:          p.Operator,
		EmergencyRecovery: p.EmergencyRecovery,
		Controller:        p.Controller,
		ChainID:           p.ChainID,
		OutboundMode:      string(p.OutboundMode),
		Min:               cloneAmount(p.Limits.Min),
		MaxIn:             cloneAmount(p.Limits.MaxIn),
		MaxOut:            cloneAmount(p.Limits.MaxOut),
		CapIn:             cloneAmount(p.Limits.CapIn),
		CapOut:            cloneAmount(p.Limits.CapOut),
	}
}

type storedCounters struct {
	TotalSupply  *big.Int
	WrappedIn    *big.Int
	UnwrappedOut *big.Int
	Emergency    *big.Int
	AdminBurned  *big.Int `rlp:"optional"`
}

type storedProcessed struct {
	Direction   uint8
	ProcessedAt uint64
}

func (s *state) schema() (uint64, bool, error) {
	var version uint64
	ok, err := s.get(schemaKey, &version)
	return version, ok, err
}

func (s *state) params() (Params, error) {
	var stored storedConfig
	ok, err := s.get(configKey, &stored)
	if err != nil {
		return Params{}, err
	}
	if !ok {
		return Params{}, ErrNotInitialised
	}
	return stored.params(), nil
}

func (s *state) putParams(p Params) error {
	return s.put(configKey, toStoredConfig(p))
}

func (s *state) paused() (bool, error) {
	var paused bool
	if _, err := s.get(pausedKey, &paused); err != nil {
		return false, err
	}
	return paused, nil
}

func (s *state) putPaused(paused bool) error {
	return s.put(pausedKey, paused)
}

func (s *state) counters() (storedCounters, error) {
	var stored storedCounters
	if _, err := s.get(countersKey, &stored); err != nil {
		return storedCounters{}, err
	}
	return storedCounters{
		TotalSupply:  new(big.Int).Set(amountOrZero(stored.TotalSupply)),
		WrappedIn:    new(big.Int).Set(amountOrZero(stored.WrappedIn)),
		UnwrappedOut: new(big.Int).Set(amountOrZero(stored.UnwrappedOut)),
		Emergency:    new(big.Int).Set(amountOrZero(stored.Emergency)),
		AdminBurned:  new(big.Int).Set(amountOrZero(stored.AdminBurned)),
	}, nil
}

func (s *state) putCounters(c storedCounters) error {
	return s.put(countersKey, c)
}

func (s *state) amountAt(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := s.get(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (s *state) balance(addr common.Address) (*big.Int, error) {
	return s.amountAt(balanceKey(addr))
}

func (s *state) putBalance(addr common.Address, amount *big.Int) error {
	return s.put(balanceKey(addr), amount)
}

func (s *state) allowance(owner, spender common.Address) (*big.Int, error) {
	return s.amountAt(allowanceKey(owner, spender))
}

func (s *state) putAllowance(owner, spender common.Address, amount *big.Int) error {
	return s.put(allowanceKey(owner, spender), amount)
}

func (s *state) usage(d Direction, day uint64, account common.Address) (*big.Int, error) {
	return s.amountAt(usageKey(d, day, account))
}

func (s *state) putUsage(d Direction, day uint64, account common.Address, amount *big.Int) error {
	return s.put(usageKey(d, day, account), amount)
}

func (s *state) processed(fp common.Hash) (bool, error) {
	return s.get(processedKey(fp), nil)
}

func (s *state) putProcessed(fp common.Hash, record storedProcessed) error {
	return s.put(processedKey(fp), record)
}

// foreign returns the amount of asset the controller holds.
func (s *state) foreign(asset common.Address) (*big.Int, error) {
	return s.amountAt(foreignKey(asset))
}

func (s *state) putForeign(asset common.Address, amount *big.Int) error {
	return s.put(foreignKey(asset), amount)
}

func (s *state) depositRecorded(id common.Hash) (bool, error) {
	return s.get(depositKey(id), nil)
}

func (s *state) putDeposit(id common.Hash, at int64) error {
	return s.put(depositKey(id), uint64(at))
}

func decodeAmount(raw []byte) (*big.Int, error) {
	value := new(big.Int)
	if err := rlp.DecodeBytes(raw, value); err != nil {
		return nil, err
	}
	return value, nil
}
