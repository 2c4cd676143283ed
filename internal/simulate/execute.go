package simulate

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/ptb"
)

const sharedOwner = "shared"

// ErrAbort marks a transaction the chain would reject. Nothing is applied.
var ErrAbort = errors.New("simulate: transaction aborted")

func abort(cmd int, format string, args ...any) error {
	return fmt.Errorf("%w: command %d: %s", ErrAbort, cmd, fmt.Sprintf(format, args...))
}

// Result reports what an executed transaction changed.
type Result struct {
	// Deltas is the net change of owned coin balances, by owner then coin type.
	Deltas map[string]map[string]*big.Int
	// Vaults are the ids of vaults the transaction created.
	Vaults []string
	// Registered are the names registered or renewed.
	Registered []string
}

// Delta returns owner's net change in coinType.
func (r Result) Delta(owner, coinType string) *big.Int {
	norm, _ := domain.NormalizeAddress(owner)
	if m, ok := r.Deltas[norm]; ok {
		if v, ok := m[coinType]; ok {
			return new(big.Int).Set(v)
		}
	}
	return new(big.Int)
}

// Execute runs tx atomically.
func (l *Ledger) Execute(tx *ptb.Transaction) (Result, error) {
	if tx == nil {
		return Result{}, fmt.Errorf("%w: nil transaction", ErrAbort)
	}
	sender, err := domain.NormalizeAddress(tx.Sender)
	if err != nil {
		return Result{}, fmt.Errorf("%w: sender: %v", ErrAbort, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	work := l.st.clone()
	before := ownedSnapshot(work)
	ex := &executor{
		cfg:     l.cfg,
		st:      work,
		tx:      tx,
		sender:  sender,
		now:     l.cfg.Now(),
		results: make([][]string, len(tx.Commands)),
	}
	if err := ex.run(); err != nil {
		return Result{}, err
	}
	l.st = work
	return Result{
		Deltas:     deltas(before, ownedSnapshot(work)),
		Vaults:     ex.vaults,
		Registered: ex.registered,
	}, nil
}

type executor struct {
	cfg        Config
	st         *state
	tx         *ptb.Transaction
	sender     string
	now        time.Time
	results    [][]string
	vaults     []string
	registered []string
}

func (e *executor) run() error {
	for i, cmd := range e.tx.Commands {
		var err error
		switch {
		case cmd.SplitCoins != nil:
			err = e.splitCoins(i, cmd.SplitCoins)
		case cmd.MergeCoins != nil:
			err = e.mergeCoins(i, cmd.MergeCoins)
		case cmd.TransferObjects != nil:
			err = e.transferObjects(i, cmd.TransferObjects)
		case cmd.MoveCall != nil:
			err = e.moveCall(i, cmd.MoveCall)
		default:
			err = abort(i, "empty command")
		}
		if err != nil {
			return err
		}
	}
	for _, id := range sortedKeys(e.st.objects) {
		o := e.st.objects[id]
		if o.owner == "" && !o.deleted {
			return fmt.Errorf("%w: unused value %s of type %s", ErrAbort, o.id, o.typ)
		}
	}
	return nil
}

func (e *executor) input(cmd int, a ptb.Argument) (ptb.Input, error) {
	if int(a.Index) >= len(e.tx.Inputs) {
		return ptb.Input{}, abort(cmd, "input %d out of range", a.Index)
	}
	return e.tx.Inputs[a.Index], nil
}

func (e *executor) pure(cmd int, a ptb.Argument) ([]byte, error) {
	if a.Kind != ptb.ArgInput {
		return nil, abort(cmd, "%s is not a pure input", a)
	}
	in, err := e.input(cmd, a)
	if err != nil {
		return nil, err
	}
	if in.Pure == nil {
		return nil, abort(cmd, "%s is not a pure input", a)
	}
	return in.Pure.Bytes, nil
}

func (e *executor) u64(cmd int, a ptb.Argument) (uint64, error) {
	raw, err := e.pure(cmd, a)
	if err != nil {
		return 0, err
	}
	v, err := ptb.DecodeU64(raw)
	if err != nil {
		return 0, abort(cmd, "%s: %v", a, err)
	}
	return v, nil
}

func (e *executor) u8(cmd int, a ptb.Argument) (uint8, error) {
	raw, err := e.pure(cmd, a)
	if err != nil {
		return 0, err
	}
	v, err := ptb.DecodeU8(raw)
	if err != nil {
		return 0, abort(cmd, "%s: %v", a, err)
	}
	return v, nil
}

func (e *executor) str(cmd int, a ptb.Argument) (string, error) {
	raw, err := e.pure(cmd, a)
	if err != nil {
		return "", err
	}
	v, err := ptb.DecodeString(raw)
	if err != nil {
		return "", abort(cmd, "%s: %v", a, err)
	}
	return v, nil
}

func (e *executor) address(cmd int, a ptb.Argument) (string, error) {
	raw, err := e.pure(cmd, a)
	if err != nil {
		return "", err
	}
	v, err := ptb.DecodeAddress(raw)
	if err != nil {
		return "", abort(cmd, "%s: %v", a, err)
	}
	return v, nil
}

// shared returns the id of a shared object input.
func (e *executor) shared(cmd int, a ptb.Argument) (string, bool, error) {
	if a.Kind != ptb.ArgInput {
		return "", false, abort(cmd, "%s is not a shared object input", a)
	}
	in, err := e.input(cmd, a)
	if err != nil {
		return "", false, err
	}
	if in.Object == nil || in.Object.SharedObject == nil {
		return "", false, abort(cmd, "%s is not a shared object input", a)
	}
	id, _ := domain.NormalizeAddress(in.Object.SharedObject.ObjectID)
	return id, in.Object.SharedObject.Mutable, nil
}

// object resolves an argument to a live object the sender may use.
func (e *executor) object(cmd int, a ptb.Argument) (*object, error) {
	var id string
	switch a.Kind {
	case ptb.ArgGasCoin:
		gas, ok := e.st.gas[e.sender]
		if !ok {
			return nil, abort(cmd, "sender has no gas coin")
		}
		id = gas
	case ptb.ArgInput:
		in, err := e.input(cmd, a)
		if err != nil {
			return nil, err
		}
		if in.Object != nil && in.Object.SharedObject != nil {
			return nil, abort(cmd, "%s is shared, not an owned object", a)
		}
		id, _ = domain.NormalizeAddress(in.ObjectID())
		if id == "" {
			return nil, abort(cmd, "%s is not an object input", a)
		}
	case ptb.ArgResult, ptb.ArgNestedResult:
		if int(a.Index) >= cmd {
			return nil, abort(cmd, "%s refers to a later command", a)
		}
		res := e.results[a.Index]
		if int(a.Nested) >= len(res) {
			return nil, abort(cmd, "%s: command %d returned %d values", a, a.Index, len(res))
		}
		id = res[a.Nested]
	default:
		return nil, abort(cmd, "unknown argument %s", a)
	}

	o, ok := e.st.objects[id]
	if !ok {
		return nil, abort(cmd, "object %s does not exist", id)
	}
	if o.deleted {
		return nil, abort(cmd, "%s was already consumed", a)
	}
	if o.owner != "" && o.owner != e.sender {
		return nil, abort(cmd, "object %s is owned by %s", id, o.owner)
	}
	return o, nil
}

// take resolves an argument passed by value and consumes it.
func (e *executor) take(cmd int, a ptb.Argument) (*object, error) {
	if a.Kind == ptb.ArgGasCoin {
		return nil, abort(cmd, "gas coin cannot be passed by value")
	}
	o, err := e.object(cmd, a)
	if err != nil {
		return nil, err
	}
	o.deleted = true
	return o, nil
}

func (e *executor) takeCoin(cmd int, a ptb.Argument, coinType string) (*object, error) {
	o, err := e.take(cmd, a)
	if err != nil {
		return nil, err
	}
	if !o.coin || o.typ != coinType {
		return nil, abort(cmd, "%s is %s, want Coin<%s>", a, o.typ, coinType)
	}
	return o, nil
}

func (e *executor) mint(coinType string, amount *big.Int, owner string) *object {
	id := e.st.newID()
	o := &object{id: id, owner: owner, typ: coinType, coin: true, balance: new(big.Int).Set(amount)}
	e.st.objects[id] = o
	return o
}

func (e *executor) splitCoins(cmd int, c *ptb.SplitCoins) error {
	src, err := e.object(cmd, c.Coin)
	if err != nil {
		return err
	}
	if !src.coin {
		return abort(cmd, "split source %s is not a coin", src.typ)
	}
	amounts := make([]*big.Int, 0, len(c.Amounts))
	total := new(big.Int)
	for _, a := range c.Amounts {
		v, err := e.u64(cmd, a)
		if err != nil {
			return err
		}
		n := new(big.Int).SetUint64(v)
		amounts = append(amounts, n)
		total.Add(total, n)
	}
	if src.balance.Cmp(total) < 0 {
		return abort(cmd, "split %s from a coin holding %s", total, src.balance)
	}
	src.balance.Sub(src.balance, total)
	for _, n := range amounts {
		e.results[cmd] = append(e.results[cmd], e.mint(src.typ, n, "").id)
	}
	return nil
}

func (e *executor) mergeCoins(cmd int, c *ptb.MergeCoins) error {
	dst, err := e.object(cmd, c.Destination)
	if err != nil {
		return err
	}
	if !dst.coin {
		return abort(cmd, "merge destination %s is not a coin", dst.typ)
	}
	for _, a := range c.Sources {
		src, err := e.takeCoin(cmd, a, dst.typ)
		if err != nil {
			return err
		}
		if src.id == dst.id {
			return abort(cmd, "merge of a coin into itself")
		}
		dst.balance.Add(dst.balance, src.balance)
	}
	return nil
}

func (e *executor) transferObjects(cmd int, c *ptb.TransferObjects) error {
	to, err := e.address(cmd, c.Address)
	if err != nil {
		return err
	}
	for _, a := range c.Objects {
		o, err := e.object(cmd, a)
		if err != nil {
			return err
		}
		if o.ticketFor != "" {
			return abort(cmd, "execution ticket cannot be transferred")
		}
		o.owner = to
	}
	return nil
}

func (e *executor) moveCall(cmd int, call *ptb.MoveCall) error {
	pkg, _ := domain.NormalizeAddress(call.Package)
	is := func(p string) bool {
		norm, err := domain.NormalizeAddress(p)
		return err == nil && norm == pkg
	}
	pk := e.cfg.Env.Packages
	fn := call.Module + "::" + call.Function

	switch {
	case is("0x2") && fn == "coin::zero":
		return e.coinZero(cmd, call)
	case is(pk.DeepBook) && call.Module == "pool":
		return e.swap(cmd, call)
	case is(pk.Registration) && fn == "register::register":
		return e.register(cmd, call)
	case is(pk.Registration) && fn == "renew::renew":
		return e.renew(cmd, call)
	case is(pk.Vault) && call.Module == "vault":
		return e.vault(cmd, call)
	}
	return abort(cmd, "unknown function %s", call.Target())
}

func wantArgs(cmd int, call *ptb.MoveCall, n, typeArgs int) error {
	if len(call.Arguments) != n {
		return abort(cmd, "%s takes %d arguments, got %d", call.Function, n, len(call.Arguments))
	}
	if len(call.TypeArguments) != typeArgs {
		return abort(cmd, "%s takes %d type arguments, got %d", call.Function, typeArgs, len(call.TypeArguments))
	}
	return nil
}

func (e *executor) coinZero(cmd int, call *ptb.MoveCall) error {
	if err := wantArgs(cmd, call, 0, 1); err != nil {
		return err
	}
	e.results[cmd] = []string{e.mint(call.TypeArguments[0], new(big.Int), "").id}
	return nil
}

func (e *executor) label(full string) string {
	return strings.TrimSuffix(full, e.cfg.NameSuffix)
}
