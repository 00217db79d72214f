package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"mintvault/core/types"
	"mintvault/crypto"
	"mintvault/native/auction"
	"mintvault/native/position"
	"mintvault/storage"
)

var errNilRecord = errors.New("state: nil record")

// Key prefixes. Accounts and positions are keyed by raw address bytes,
// auctions by their big-endian id.
var (
	prefixAccount  = []byte("acct/")
	prefixPosition = []byte("pos/")
	prefixAuction  = []byte("auction/")
	keyAuctionSeq  = []byte("meta/auction-seq")
	keyHeight      = []byte("meta/height")
	keySeeded      = []byte("meta/seeded")
)

// Ledger persists accounts, positions and auctions as JSON records in a
// key-value store. It satisfies the state interfaces of the position engine,
// the auction engine and the reward hook. Every method is an atomic
// read-modify-write on a single record; cross-record invariants are owned by
// the engines.
type Ledger struct {
	db storage.Database

	// guards the auction id sequence read-increment-write.
	seqMu sync.Mutex
}

// NewLedger wraps the database in a ledger.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

func accountKey(addr crypto.Address) []byte {
	return append(append([]byte(nil), prefixAccount...), addr.Bytes()...)
}

func positionKey(addr crypto.Address) []byte {
	return append(append([]byte(nil), prefixPosition...), addr.Bytes()...)
}

func auctionKey(id uint64) []byte {
	key := append([]byte(nil), prefixAuction...)
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], id)
	return append(key, raw[:]...)
}

// GetAccount returns the stored account or nil when the address has never
// been funded.
func (l *Ledger) GetAccount(addr crypto.Address) (*types.Account, error) {
	raw, err := l.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	account := new(types.Account)
	if err := json.Unmarshal(raw, account); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	return account, nil
}

// PutAccount persists the account record.
func (l *Ledger) PutAccount(addr crypto.Address, account *types.Account) error {
	if account == nil {
		return errNilRecord
	}
	raw, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	return l.db.Put(accountKey(addr), raw)
}

// GetPosition returns the stored position or nil when none exists.
func (l *Ledger) GetPosition(addr crypto.Address) (*position.Position, error) {
	raw, err := l.db.Get(positionKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pos := new(position.Position)
	if err := json.Unmarshal(raw, pos); err != nil {
		return nil, fmt.Errorf("state: decode position: %w", err)
	}
	return pos, nil
}

// PutPosition persists the position record.
func (l *Ledger) PutPosition(addr crypto.Address, pos *position.Position) error {
	if pos == nil {
		return errNilRecord
	}
	raw, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("state: encode position: %w", err)
	}
	return l.db.Put(positionKey(addr), raw)
}

// DeletePosition removes the position record entirely. A deleted position is
// indistinguishable from one that never existed, which is what permits
// re-initialization after close or liquidation.
func (l *Ledger) DeletePosition(addr crypto.Address) error {
	return l.db.Delete(positionKey(addr))
}

// GetSupply returns the venue-wide supply accounting record.
func (l *Ledger) GetSupply() (*position.Supply, error) {
	raw, err := l.db.Get([]byte("meta/supply"))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	supply := new(position.Supply)
	if err := json.Unmarshal(raw, supply); err != nil {
		return nil, fmt.Errorf("state: decode supply: %w", err)
	}
	return supply, nil
}

// PutSupply persists the supply accounting record.
func (l *Ledger) PutSupply(supply *position.Supply) error {
	if supply == nil {
		return errNilRecord
	}
	raw, err := json.Marshal(supply)
	if err != nil {
		return fmt.Errorf("state: encode supply: %w", err)
	}
	return l.db.Put([]byte("meta/supply"), raw)
}

// AuctionGet returns the auction record and whether it exists.
func (l *Ledger) AuctionGet(id uint64) (*auction.Auction, bool, error) {
	raw, err := l.db.Get(auctionKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	a := new(auction.Auction)
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, false, fmt.Errorf("state: decode auction: %w", err)
	}
	return a, true, nil
}

// AuctionPut persists the auction record under its id.
func (l *Ledger) AuctionPut(a *auction.Auction) error {
	if a == nil {
		return errNilRecord
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("state: encode auction: %w", err)
	}
	return l.db.Put(auctionKey(a.ID), raw)
}

// NextAuctionID increments and returns the auction id sequence. Ids start at
// 1 so the zero value never names a real auction.
func (l *Ledger) NextAuctionID() (uint64, error) {
	l.seqMu.Lock()
	defer l.seqMu.Unlock()
	var next uint64 = 1
	raw, err := l.db.Get(keyAuctionSeq)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}
	if err == nil && len(raw) == 8 {
		next = binary.BigEndian.Uint64(raw) + 1
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	if err := l.db.Put(keyAuctionSeq, buf[:]); err != nil {
		return 0, err
	}
	return next, nil
}

// Height returns the persisted accrual block height, zero when unset.
func (l *Ledger) Height() (uint64, error) {
	raw, err := l.db.Get(keyHeight)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("state: malformed height record")
	}
	return binary.BigEndian.Uint64(raw), nil
}

// SetHeight persists the accrual block height.
func (l *Ledger) SetHeight(height uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	return l.db.Put(keyHeight, buf[:])
}

// Seeded reports whether genesis balances were already applied.
func (l *Ledger) Seeded() (bool, error) {
	_, err := l.db.Get(keySeeded)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkSeeded records that genesis balances were applied.
func (l *Ledger) MarkSeeded() error {
	return l.db.Put(keySeeded, []byte{1})
}
