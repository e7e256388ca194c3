package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"apexcore/crypto"
	"apexcore/native/amm"
	"apexcore/native/lending"
	"apexcore/storage"
)

// Manager provides typed access to the protocol's persisted records. It
// satisfies the state interfaces of both native engines, so an engine wired to
// a manager over an Overlay stages its mutation and a manager over the raw
// database reads committed state.
type Manager struct {
	kv KV
}

// NewManager wraps the given key-value surface.
func NewManager(kv KV) *Manager {
	return &Manager{kv: kv}
}

var errNotInitialised = errors.New("state: manager not initialised")

// storedPool is the wire form of the AMM pool record.
type storedPool struct {
	ReserveAPT  *big.Int
	ReserveAPEX *big.Int
	TotalShares *big.Int
}

// storedLiquidityPosition is the wire form of an LP share record.
type storedLiquidityPosition struct {
	Addr   []byte
	Shares *big.Int
}

// storedLendingPosition is the wire form of a borrower record.
type storedLendingPosition struct {
	Addr            []byte
	Collateral      *big.Int
	PrincipalDebt   *big.Int
	AccruedInterest *big.Int
	LastAccrual     uint64
}

// storedTotals is the wire form of the protocol aggregates.
type storedTotals struct {
	TotalCollateral *big.Int
	TotalDebt       *big.Int
	TotalFees       *big.Int
	TreasuryAPT     *big.Int
}

func (m *Manager) get(key []byte) ([]byte, error) {
	if m == nil || m.kv == nil {
		return nil, errNotInitialised
	}
	value, err := m.kv.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	return value, err
}

// GetPool loads the AMM pool, or nil when it has never been written.
func (m *Manager) GetPool() (*amm.Pool, error) {
	raw, err := m.get(poolKey)
	if err != nil || raw == nil {
		return nil, err
	}
	var stored storedPool
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode pool: %w", err)
	}
	return &amm.Pool{
		ReserveAPT:  nonNil(stored.ReserveAPT),
		ReserveAPEX: nonNil(stored.ReserveAPEX),
		TotalShares: nonNil(stored.TotalShares),
	}, nil
}

// PutPool persists the AMM pool record.
func (m *Manager) PutPool(pool *amm.Pool) error {
	if m == nil || m.kv == nil {
		return errNotInitialised
	}
	if pool == nil {
		return errors.New("state: nil pool")
	}
	encoded, err := rlp.EncodeToBytes(&storedPool{
		ReserveAPT:  nonNil(pool.ReserveAPT),
		ReserveAPEX: nonNil(pool.ReserveAPEX),
		TotalShares: nonNil(pool.TotalShares),
	})
	if err != nil {
		return fmt.Errorf("state: encode pool: %w", err)
	}
	return m.kv.Put(poolKey, encoded)
}

// GetLiquidityPosition loads an LP record, or nil when absent.
func (m *Manager) GetLiquidityPosition(addr crypto.Address) (*amm.LiquidityPosition, error) {
	raw, err := m.get(liquidityPositionKey(addr))
	if err != nil || raw == nil {
		return nil, err
	}
	var stored storedLiquidityPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode liquidity position: %w", err)
	}
	return &amm.LiquidityPosition{
		Addr:   crypto.NewAddress(crypto.ApexPrefix, stored.Addr),
		Shares: nonNil(stored.Shares),
	}, nil
}

// PutLiquidityPosition persists an LP record.
func (m *Manager) PutLiquidityPosition(position *amm.LiquidityPosition) error {
	if m == nil || m.kv == nil {
		return errNotInitialised
	}
	if position == nil {
		return errors.New("state: nil liquidity position")
	}
	encoded, err := rlp.EncodeToBytes(&storedLiquidityPosition{
		Addr:   position.Addr.Bytes(),
		Shares: nonNil(position.Shares),
	})
	if err != nil {
		return fmt.Errorf("state: encode liquidity position: %w", err)
	}
	return m.kv.Put(liquidityPositionKey(position.Addr), encoded)
}

// DeleteLiquidityPosition removes an LP record.
func (m *Manager) DeleteLiquidityPosition(addr crypto.Address) error {
	if m == nil || m.kv == nil {
		return errNotInitialised
	}
	return m.kv.Delete(liquidityPositionKey(addr))
}

// GetPosition loads a borrower record, or nil when absent.
func (m *Manager) GetPosition(addr crypto.Address) (*lending.UserPosition, error) {
	raw, err := m.get(lendingPositionKey(addr))
	if err != nil || raw == nil {
		return nil, err
	}
	var stored storedLendingPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode lending position: %w", err)
	}
	return &lending.UserPosition{
		Addr:            crypto.NewAddress(crypto.ApexPrefix, stored.Addr),
		Collateral:      nonNil(stored.Collateral),
		PrincipalDebt:   nonNil(stored.PrincipalDebt),
		AccruedInterest: nonNil(stored.AccruedInterest),
		LastAccrual:     stored.LastAccrual,
	}, nil
}

// PutPosition persists a borrower record.
func (m *Manager) PutPosition(position *lending.UserPosition) error {
	if m == nil || m.kv == nil {
		return errNotInitialised
	}
	if position == nil {
		return errors.New("state: nil lending position")
	}
	encoded, err := rlp.EncodeToBytes(&storedLendingPosition{
		Addr:            position.Addr.Bytes(),
		Collateral:      nonNil(position.Collateral),
		PrincipalDebt:   nonNil(position.PrincipalDebt),
		AccruedInterest: nonNil(position.AccruedInterest),
		LastAccrual:     position.LastAccrual,
	})
	if err != nil {
		return fmt.Errorf("state: encode lending position: %w", err)
	}
	return m.kv.Put(lendingPositionKey(position.Addr), encoded)
}

// DeletePosition removes a borrower record.
func (m *Manager) DeletePosition(addr crypto.Address) error {
	if m == nil || m.kv == nil {
		return errNotInitialised
	}
	return m.kv.Delete(lendingPositionKey(addr))
}

// GetTotals loads the protocol aggregates, or nil when never written.
func (m *Manager) GetTotals() (*lending.ProtocolTotals, error) {
	raw, err := m.get(lendingTotalsKey)
	if err != nil || raw == nil {
		return nil, err
	}
	var stored storedTotals
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode totals: %w", err)
	}
	return &lending.ProtocolTotals{
		TotalCollateral: nonNil(stored.TotalCollateral),
		TotalDebt:       nonNil(stored.TotalDebt),
		TotalFees:       nonNil(stored.TotalFees),
		TreasuryAPT:     nonNil(stored.TreasuryAPT),
	}, nil
}

// PutTotals persists the protocol aggregates.
func (m *Manager) PutTotals(totals *lending.ProtocolTotals) error {
	if m == nil || m.kv == nil {
		return errNotInitialised
	}
	if totals == nil {
		return errors.New("state: nil totals")
	}
	encoded, err := rlp.EncodeToBytes(&storedTotals{
		TotalCollateral: nonNil(totals.TotalCollateral),
		TotalDebt:       nonNil(totals.TotalDebt),
		TotalFees:       nonNil(totals.TotalFees),
		TreasuryAPT:     nonNil(totals.TreasuryAPT),
	})
	if err != nil {
		return fmt.Errorf("state: encode totals: %w", err)
	}
	return m.kv.Put(lendingTotalsKey, encoded)
}

func nonNil(value *big.Int) *big.Int {
	if value == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(value)
}
