// Package simulate executes programmable transactions against an in-memory
// ledger holding DeepBook-style pools, a name registry and settlement
// vaults. A transaction either applies completely or not at all. It backs
// transaction-level tests and the CLI dry run.
package simulate

import (
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/onchain"
)

// PriceFunc returns the registry price, in reward-token units, for a label
// and a number of years.
type PriceFunc func(label string, years int) domain.Amount

// Config describes the simulated chain.
type Config struct {
	Env          onchain.Env
	RewardCoin   domain.Coin
	BaseCoin     domain.Coin
	RegistryFee  PriceFunc
	Now          domain.Clock
	NameSuffix   string
	DeepFeePerTx domain.Amount // DEEP charged per swap on non-whitelisted pools
}

type object struct {
	id      string
	owner   string // "" while the value lives only inside a transaction
	typ     string
	coin    bool
	balance *big.Int

	// registration NFT
	name    string
	expires time.Time

	// execution ticket
	ticketFor string

	deleted bool
}

func (o *object) clone() *object {
	c := *o
	if o.balance != nil {
		c.balance = new(big.Int).Set(o.balance)
	}
	return &c
}

// Pool is a simulated order book.
type Pool struct {
	Meta    onchain.Pool
	Asks    []domain.PriceLevel
	Bids    []domain.PriceLevel
	Reserve map[string]*big.Int // net units by coin type, may go negative
}

func (p *Pool) clone() *Pool {
	c := &Pool{
		Meta:    p.Meta,
		Asks:    append([]domain.PriceLevel(nil), p.Asks...),
		Bids:    append([]domain.PriceLevel(nil), p.Bids...),
		Reserve: make(map[string]*big.Int, len(p.Reserve)),
	}
	for k, v := range p.Reserve {
		c.Reserve[k] = new(big.Int).Set(v)
	}
	return c
}

// Vault is the on-chain state of a settlement vault.
type Vault struct {
	ID           string
	CoinType     string
	Owner        string
	Beneficiary  string
	FeeRecipient string
	Domain       string
	Years        int
	Budget       *big.Int
	Reward       *big.Int
	Fee          *big.Int
	Escrow       *big.Int
	ExpiresAt    time.Time
	Status       domain.VaultStatus
}

func (v *Vault) clone() *Vault {
	c := *v
	for _, p := range []**big.Int{&c.Budget, &c.Reward, &c.Fee, &c.Escrow} {
		*p = new(big.Int).Set(*p)
	}
	return &c
}

type state struct {
	objects  map[string]*object
	pools    map[string]*Pool
	vaults   map[string]*Vault
	names    map[string]string // full name -> nft id
	treasury map[string]*big.Int
	gas      map[string]string // owner -> gas coin id
	nextID   uint64
}

func (s *state) clone() *state {
	c := &state{
		objects:  make(map[string]*object, len(s.objects)),
		pools:    make(map[string]*Pool, len(s.pools)),
		vaults:   make(map[string]*Vault, len(s.vaults)),
		names:    make(map[string]string, len(s.names)),
		treasury: make(map[string]*big.Int, len(s.treasury)),
		gas:      make(map[string]string, len(s.gas)),
		nextID:   s.nextID,
	}
	for k, v := range s.objects {
		c.objects[k] = v.clone()
	}
	for k, v := range s.pools {
		c.pools[k] = v.clone()
	}
	for k, v := range s.vaults {
		c.vaults[k] = v.clone()
	}
	for k, v := range s.names {
		c.names[k] = v
	}
	for k, v := range s.treasury {
		c.treasury[k] = new(big.Int).Set(v)
	}
	for k, v := range s.gas {
		c.gas[k] = v
	}
	return c
}

func (s *state) newID() string {
	s.nextID++
	id, _ := domain.NormalizeAddress(fmt.Sprintf("0x%x", 0xc0ffee0000+s.nextID))
	return id
}

// Ledger is the simulated chain. It is safe for concurrent use.
type Ledger struct {
	mu  sync.Mutex
	cfg Config
	st  *state
}

// NewLedger returns an empty ledger.
func NewLedger(cfg Config) *Ledger {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NameSuffix == "" {
		cfg.NameSuffix = ".sui"
	}
	return &Ledger{
		cfg: cfg,
		st: &state{
			objects:  make(map[string]*object),
			pools:    make(map[string]*Pool),
			vaults:   make(map[string]*Vault),
			names:    make(map[string]string),
			treasury: make(map[string]*big.Int),
			gas:      make(map[string]string),
		},
	}
}

// Fund mints a coin object for owner and returns its id. The first base-coin
// object funded for an owner becomes their gas coin.
func (l *Ledger) Fund(owner string, coin domain.Coin, amount domain.Amount) (string, error) {
	norm, err := domain.NormalizeAddress(owner)
	if err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.st.newID()
	l.st.objects[id] = &object{id: id, owner: norm, typ: coin.Type, coin: true, balance: amount.Big()}
	if coin.Type == l.cfg.BaseCoin.Type {
		if _, ok := l.st.gas[norm]; !ok {
			l.st.gas[norm] = id
		}
	}
	return id, nil
}

// AddPool seeds an order book. Depth levels are copied.
func (l *Ledger) AddPool(meta onchain.Pool, depth domain.Depth) error {
	id, err := domain.NormalizeAddress(meta.ID)
	if err != nil {
		return fmt.Errorf("simulate: pool %s: %w", meta.Name, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.st.pools[id] = &Pool{
		Meta:    meta,
		Asks:    append([]domain.PriceLevel(nil), depth.Asks...),
		Bids:    append([]domain.PriceLevel(nil), depth.Bids...),
		Reserve: make(map[string]*big.Int),
	}
	return nil
}

// Balance sums owner's coin objects of coinType.
func (l *Ledger) Balance(owner, coinType string) domain.Amount {
	norm, _ := domain.NormalizeAddress(owner)
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.AmountFromBig(l.st.balance(norm, coinType))
}

func (s *state) balance(owner, coinType string) *big.Int {
	total := new(big.Int)
	for _, o := range s.objects {
		if o.coin && !o.deleted && o.owner == owner && o.typ == coinType {
			total.Add(total, o.balance)
		}
	}
	return total
}

// Coins lists owner's coin objects of coinType with their balances.
func (l *Ledger) Coins(owner, coinType string) map[string]domain.Amount {
	norm, _ := domain.NormalizeAddress(owner)
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]domain.Amount)
	for _, o := range l.st.objects {
		if o.coin && !o.deleted && o.owner == norm && o.typ == coinType {
			out[o.id] = domain.AmountFromBig(o.balance)
		}
	}
	return out
}

// GasCoin returns owner's gas coin id.
func (l *Ledger) GasCoin(owner string) (string, bool) {
	norm, _ := domain.NormalizeAddress(owner)
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.st.gas[norm]
	return id, ok
}

// NFT describes a registration.
type NFT struct {
	ID      string
	Owner   string
	Name    string
	Expires time.Time
}

// Registration looks up a registered name.
func (l *Ledger) Registration(fullName string) (NFT, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.st.names[fullName]
	if !ok {
		return NFT{}, false
	}
	o := l.st.objects[id]
	return NFT{ID: o.id, Owner: o.owner, Name: o.name, Expires: o.expires}, true
}

// Vault returns a copy of a vault's state.
func (l *Ledger) Vault(id string) (Vault, bool) {
	norm, _ := domain.NormalizeAddress(id)
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.st.vaults[norm]
	if !ok {
		return Vault{}, false
	}
	return *v.clone(), true
}

// Supply is the total of coinType held anywhere on the ledger: owned
// coins, pool reserves, the registry treasury and vault escrows. Pool
// reserves start at zero, so a pool that paid out more than it took in
// contributes a negative amount; Supply only changes on Fund.
func (l *Ledger) Supply(coinType string) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := new(big.Int)
	for _, o := range l.st.objects {
		if o.coin && !o.deleted && o.typ == coinType {
			total.Add(total, o.balance)
		}
	}
	for _, p := range l.st.pools {
		if r, ok := p.Reserve[coinType]; ok {
			total.Add(total, r)
		}
	}
	if t, ok := l.st.treasury[coinType]; ok {
		total.Add(total, t)
	}
	for _, v := range l.st.vaults {
		if v.CoinType == coinType {
			total.Add(total, v.Escrow)
		}
	}
	return total
}

// Treasury is the registry's accumulated revenue in coinType.
func (l *Ledger) Treasury(coinType string) domain.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.AmountFromBig(l.st.treasury[coinType])
}

func ownedSnapshot(s *state) map[string]map[string]*big.Int {
	out := make(map[string]map[string]*big.Int)
	for _, o := range s.objects {
		if !o.coin || o.deleted || o.owner == "" || o.owner == sharedOwner {
			continue
		}
		byType, ok := out[o.owner]
		if !ok {
			byType = make(map[string]*big.Int)
			out[o.owner] = byType
		}
		if _, ok := byType[o.typ]; !ok {
			byType[o.typ] = new(big.Int)
		}
		byType[o.typ].Add(byType[o.typ], o.balance)
	}
	return out
}

func deltas(before, after map[string]map[string]*big.Int) map[string]map[string]*big.Int {
	out := make(map[string]map[string]*big.Int)
	add := func(owner, typ string, v *big.Int, sign int) {
		if _, ok := out[owner]; !ok {
			out[owner] = make(map[string]*big.Int)
		}
		if _, ok := out[owner][typ]; !ok {
			out[owner][typ] = new(big.Int)
		}
		if sign > 0 {
			out[owner][typ].Add(out[owner][typ], v)
		} else {
			out[owner][typ].Sub(out[owner][typ], v)
		}
	}
	for owner, m := range after {
		for typ, v := range m {
			add(owner, typ, v, 1)
		}
	}
	for owner, m := range before {
		for typ, v := range m {
			add(owner, typ, v, -1)
		}
	}
	for owner, m := range out {
		for typ, v := range m {
			if v.Sign() == 0 {
				delete(m, typ)
			}
		}
		if len(m) == 0 {
			delete(out, owner)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
