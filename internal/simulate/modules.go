package simulate

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/onchain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/ptb"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/quotemath"
)

const statusExecuting domain.VaultStatus = "executing"

const year = 365 * 24 * time.Hour

func reserve(p *Pool, coinType string) *big.Int {
	r, ok := p.Reserve[coinType]
	if !ok {
		r = new(big.Int)
		p.Reserve[coinType] = r
	}
	return r
}

// swap(pool, coin_in, deep_in, min_out, clock) -> (base, quote, deep)
func (e *executor) swap(cmd int, call *ptb.MoveCall) error {
	if err := wantArgs(cmd, call, 5, 2); err != nil {
		return err
	}
	var buyBase bool
	switch call.Function {
	case onchain.FnQuoteForBase:
		buyBase = true
	case onchain.FnBaseForQuote:
	default:
		return abort(cmd, "unknown pool function %s", call.Function)
	}

	poolID, mutable, err := e.shared(cmd, call.Arguments[0])
	if err != nil {
		return err
	}
	pool, ok := e.st.pools[poolID]
	if !ok {
		return abort(cmd, "pool %s does not exist", poolID)
	}
	if !mutable {
		return abort(cmd, "pool %s passed immutably", pool.Meta.Name)
	}
	base, quote := pool.Meta.Base, pool.Meta.Quote
	if call.TypeArguments[0] != base.Type || call.TypeArguments[1] != quote.Type {
		return abort(cmd, "type arguments do not match pool %s", pool.Meta.Name)
	}

	inCoin, outCoin := quote, base
	if !buyBase {
		inCoin, outCoin = base, quote
	}
	in, err := e.takeCoin(cmd, call.Arguments[1], inCoin.Type)
	if err != nil {
		return err
	}
	deep, err := e.takeCoin(cmd, call.Arguments[2], e.cfg.Env.FeeCoin.Type)
	if err != nil {
		return err
	}
	minOut, err := e.u64(cmd, call.Arguments[3])
	if err != nil {
		return err
	}
	if _, _, err := e.shared(cmd, call.Arguments[4]); err != nil {
		return err
	}

	if !pool.Meta.Whitelisted {
		fee := e.cfg.DeepFeePerTx.Big()
		if deep.balance.Cmp(fee) < 0 {
			return abort(cmd, "pool %s needs %s DEEP in fees, have %s", pool.Meta.Name, fee, deep.balance)
		}
		deep.balance.Sub(deep.balance, fee)
		reserve(pool, deep.typ).Add(reserve(pool, deep.typ), fee)
	}

	var out, spent *big.Int
	if buyBase {
		out, spent = fill(&pool.Asks, in.balance, inCoin.Decimals, outCoin.Decimals, false)
	} else {
		out, spent = fill(&pool.Bids, in.balance, inCoin.Decimals, outCoin.Decimals, true)
	}
	if out.Cmp(new(big.Int).SetUint64(minOut)) < 0 {
		return abort(cmd, "%s returned %s %s, below minimum %d", pool.Meta.Name, out, outCoin.Symbol, minOut)
	}
	reserve(pool, inCoin.Type).Add(reserve(pool, inCoin.Type), spent)
	reserve(pool, outCoin.Type).Sub(reserve(pool, outCoin.Type), out)

	leftover := new(big.Int).Sub(in.balance, spent)
	outObj := e.mint(outCoin.Type, out, "")
	leftObj := e.mint(inCoin.Type, leftover, "")
	deepObj := e.mint(deep.typ, deep.balance, "")
	if buyBase {
		e.results[cmd] = []string{outObj.id, leftObj.id, deepObj.id}
	} else {
		e.results[cmd] = []string{leftObj.id, outObj.id, deepObj.id}
	}
	return nil
}

// fill walks levels with input units. Asks are (price quote/base, qty base)
// and are bought with quote; bids are sold into with base. It consumes the
// levels it takes and returns the output and the input actually spent.
func fill(levels *[]domain.PriceLevel, input *big.Int, inDecimals, outDecimals int32, sell bool) (out, spent *big.Int) {
	remaining := quotemath.FromUnits(domain.AmountFromBig(input), inDecimals)
	got := decimal.Zero
	book := *levels
	i := 0
	for ; i < len(book) && remaining.IsPositive(); i++ {
		lvl := book[i]
		var cost decimal.Decimal // input needed to clear the level
		if sell {
			cost = lvl.Quantity
		} else {
			cost = lvl.Price.Mul(lvl.Quantity)
		}
		if remaining.GreaterThanOrEqual(cost) {
			if sell {
				got = got.Add(lvl.Quantity.Mul(lvl.Price))
			} else {
				got = got.Add(lvl.Quantity)
			}
			remaining = remaining.Sub(cost)
			continue
		}
		// partial fill
		if sell {
			take := remaining.Truncate(inDecimals)
			got = got.Add(take.Mul(lvl.Price))
			book[i].Quantity = lvl.Quantity.Sub(take)
			remaining = remaining.Sub(take)
		} else {
			take := remaining.Div(lvl.Price).Truncate(outDecimals)
			got = got.Add(take)
			book[i].Quantity = lvl.Quantity.Sub(take)
			remaining = remaining.Sub(take.Mul(lvl.Price))
		}
		break
	}
	*levels = book[i:]
	if len(*levels) > 0 && !(*levels)[0].Quantity.IsPositive() {
		*levels = (*levels)[1:]
	}

	out = quotemath.ToUnitsFloor(got, outDecimals).Big()
	left := quotemath.ToUnitsFloor(remaining, inDecimals).Big()
	spent = new(big.Int).Sub(input, left)
	return out, spent
}

func (e *executor) price(label string, years int) *big.Int {
	if e.cfg.RegistryFee == nil {
		return new(big.Int)
	}
	return e.cfg.RegistryFee(label, years).Big()
}

func (e *executor) addTreasury(coinType string, v *big.Int) {
	t, ok := e.st.treasury[coinType]
	if !ok {
		t = new(big.Int)
		e.st.treasury[coinType] = t
	}
	t.Add(t, v)
}

// register(suins, name, years, payment, clock) -> nft
func (e *executor) register(cmd int, call *ptb.MoveCall) error {
	if err := wantArgs(cmd, call, 5, 0); err != nil {
		return err
	}
	if _, _, err := e.shared(cmd, call.Arguments[0]); err != nil {
		return err
	}
	name, err := e.str(cmd, call.Arguments[1])
	if err != nil {
		return err
	}
	years, err := e.u8(cmd, call.Arguments[2])
	if err != nil {
		return err
	}
	if years < 1 || years > 5 {
		return abort(cmd, "years %d out of range", years)
	}
	if id, ok := e.st.names[name]; ok {
		if nft := e.st.objects[id]; e.now.Before(nft.expires) {
			return abort(cmd, "%s is registered until %s", name, nft.expires.Format(time.RFC3339))
		}
	}
	payment, err := e.takeCoin(cmd, call.Arguments[3], e.cfg.RewardCoin.Type)
	if err != nil {
		return err
	}
	if _, _, err := e.shared(cmd, call.Arguments[4]); err != nil {
		return err
	}
	price := e.price(e.label(name), int(years))
	if payment.balance.Cmp(price) < 0 {
		return abort(cmd, "payment %s below price %s", payment.balance, price)
	}
	e.addTreasury(payment.typ, payment.balance)

	id := e.st.newID()
	e.st.objects[id] = &object{
		id:      id,
		typ:     e.cfg.Env.Packages.NFTType,
		name:    name,
		expires: e.now.Add(time.Duration(years) * year),
	}
	e.st.names[name] = id
	e.results[cmd] = []string{id}
	e.registered = append(e.registered, name)
	return nil
}

// renew(suins, &mut nft, years, payment, clock)
func (e *executor) renew(cmd int, call *ptb.MoveCall) error {
	if err := wantArgs(cmd, call, 5, 0); err != nil {
		return err
	}
	if _, _, err := e.shared(cmd, call.Arguments[0]); err != nil {
		return err
	}
	nft, err := e.object(cmd, call.Arguments[1])
	if err != nil {
		return err
	}
	if nft.typ != e.cfg.Env.Packages.NFTType || nft.name == "" {
		return abort(cmd, "object %s is not a registration", nft.id)
	}
	years, err := e.u8(cmd, call.Arguments[2])
	if err != nil {
		return err
	}
	if years < 1 || years > 5 {
		return abort(cmd, "years %d out of range", years)
	}
	payment, err := e.takeCoin(cmd, call.Arguments[3], e.cfg.RewardCoin.Type)
	if err != nil {
		return err
	}
	if _, _, err := e.shared(cmd, call.Arguments[4]); err != nil {
		return err
	}
	price := e.price(e.label(nft.name), int(years))
	if payment.balance.Cmp(price) < 0 {
		return abort(cmd, "payment %s below price %s", payment.balance, price)
	}
	e.addTreasury(payment.typ, payment.balance)

	from := nft.expires
	if e.now.After(from) {
		from = e.now
	}
	nft.expires = from.Add(time.Duration(years) * year)
	e.registered = append(e.registered, nft.name)
	return nil
}

func (e *executor) vault(cmd int, call *ptb.MoveCall) error {
	switch call.Function {
	case onchain.FnVaultCreate:
		return e.vaultCreate(cmd, call)
	case onchain.FnVaultBegin:
		return e.vaultBegin(cmd, call)
	case onchain.FnVaultFinalize:
		return e.vaultFinalize(cmd, call)
	case onchain.FnVaultCancel:
		return e.vaultCancel(cmd, call)
	}
	return abort(cmd, "unknown vault function %s", call.Function)
}

func (e *executor) vaultCreate(cmd int, call *ptb.MoveCall) error {
	if err := wantArgs(cmd, call, 10, 1); err != nil {
		return err
	}
	coinType := call.TypeArguments[0]
	funds, err := e.takeCoin(cmd, call.Arguments[0], coinType)
	if err != nil {
		return err
	}
	v := &Vault{CoinType: coinType, Owner: e.sender, Status: domain.VaultStatusCreated}
	if v.Beneficiary, err = e.address(cmd, call.Arguments[1]); err != nil {
		return err
	}
	if v.FeeRecipient, err = e.address(cmd, call.Arguments[2]); err != nil {
		return err
	}
	if v.Domain, err = e.str(cmd, call.Arguments[3]); err != nil {
		return err
	}
	years, err := e.u8(cmd, call.Arguments[4])
	if err != nil {
		return err
	}
	v.Years = int(years)
	amounts := make([]*big.Int, 3)
	for i := range amounts {
		n, err := e.u64(cmd, call.Arguments[5+i])
		if err != nil {
			return err
		}
		amounts[i] = new(big.Int).SetUint64(n)
	}
	v.Budget, v.Reward, v.Fee = amounts[0], amounts[1], amounts[2]
	expires, err := e.u64(cmd, call.Arguments[8])
	if err != nil {
		return err
	}
	v.ExpiresAt = time.UnixMilli(int64(expires))
	if _, _, err := e.shared(cmd, call.Arguments[9]); err != nil {
		return err
	}

	total := new(big.Int).Add(v.Budget, v.Reward)
	total.Add(total, v.Fee)
	if funds.balance.Cmp(total) != 0 {
		return abort(cmd, "vault funds %s, terms need %s", funds.balance, total)
	}
	if !v.ExpiresAt.After(e.now) {
		return abort(cmd, "vault expiry is in the past")
	}
	v.Escrow = new(big.Int).Set(funds.balance)
	v.ID = e.st.newID()
	e.st.vaults[v.ID] = v
	e.vaults = append(e.vaults, v.ID)
	return nil
}

func (e *executor) loadVault(cmd int, call *ptb.MoveCall) (*Vault, error) {
	id, mutable, err := e.shared(cmd, call.Arguments[0])
	if err != nil {
		return nil, err
	}
	v, ok := e.st.vaults[id]
	if !ok {
		return nil, abort(cmd, "vault %s does not exist", id)
	}
	if !mutable {
		return nil, abort(cmd, "vault %s passed immutably", id)
	}
	if call.TypeArguments[0] != v.CoinType {
		return nil, abort(cmd, "vault %s holds %s", id, v.CoinType)
	}
	return v, nil
}

func (e *executor) vaultBegin(cmd int, call *ptb.MoveCall) error {
	if err := wantArgs(cmd, call, 2, 1); err != nil {
		return err
	}
	v, err := e.loadVault(cmd, call)
	if err != nil {
		return err
	}
	if v.Status != domain.VaultStatusCreated {
		return abort(cmd, "vault %s is %s", v.ID, v.Status)
	}
	if !e.now.Before(v.ExpiresAt) {
		return abort(cmd, "vault %s expired", v.ID)
	}
	v.Escrow.Sub(v.Escrow, v.Budget)
	v.Status = statusExecuting

	budget := e.mint(v.CoinType, v.Budget, "")
	ticketID := e.st.newID()
	e.st.objects[ticketID] = &object{id: ticketID, typ: "ticket", ticketFor: v.ID}
	e.results[cmd] = []string{budget.id, ticketID}
	return nil
}

func (e *executor) vaultFinalize(cmd int, call *ptb.MoveCall) error {
	if err := wantArgs(cmd, call, 3, 1); err != nil {
		return err
	}
	v, err := e.loadVault(cmd, call)
	if err != nil {
		return err
	}
	ticket, err := e.take(cmd, call.Arguments[1])
	if err != nil {
		return err
	}
	if ticket.ticketFor != v.ID || v.Status != statusExecuting {
		return abort(cmd, "ticket does not belong to vault %s", v.ID)
	}
	nft, err := e.take(cmd, call.Arguments[2])
	if err != nil {
		return err
	}
	if nft.typ != e.cfg.Env.Packages.NFTType || (nft.name != v.Domain && e.label(nft.name) != v.Domain) {
		return abort(cmd, "registration %q does not match vault domain %q", nft.name, v.Domain)
	}
	// the NFT leaves the transaction owned by the beneficiary
	nft.deleted = false
	nft.owner = v.Beneficiary

	e.mint(v.CoinType, v.Fee, v.FeeRecipient)
	reward := e.mint(v.CoinType, v.Reward, "")
	v.Escrow.Sub(v.Escrow, v.Fee)
	v.Escrow.Sub(v.Escrow, v.Reward)
	v.Status = domain.VaultStatusExecuted
	e.results[cmd] = []string{reward.id}
	return nil
}

func (e *executor) vaultCancel(cmd int, call *ptb.MoveCall) error {
	if err := wantArgs(cmd, call, 2, 1); err != nil {
		return err
	}
	v, err := e.loadVault(cmd, call)
	if err != nil {
		return err
	}
	if v.Owner != e.sender {
		return abort(cmd, "only the vault owner may cancel")
	}
	if v.Status != domain.VaultStatusCreated {
		return abort(cmd, "vault %s is %s", v.ID, v.Status)
	}
	refund := e.mint(v.CoinType, v.Escrow, "")
	v.Escrow = new(big.Int)
	v.Status = domain.VaultStatusCancelled
	e.results[cmd] = []string{refund.id}
	return nil
}
