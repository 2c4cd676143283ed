// Package ptb builds Sui programmable transactions. Every coin or object a
// command produces is returned as a linear Handle that must be consumed
// exactly once, by passing it by value to a call, merging it into another
// coin or transferring it. Finish rejects a build that leaks or reuses one.
package ptb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// Value is anything that can be passed as a command argument. Passing a
// Handle consumes it; use Borrow to pass one by reference.
type Value interface {
	argument() Argument
}

// HandleKind says what a command result carries.
type HandleKind string

const (
	KindCoin   HandleKind = "coin"
	KindObject HandleKind = "object"
	// KindCopy marks a droppable value, such as a u64, that is not tracked.
	KindCopy HandleKind = "copy"
)

// Handle is a linear reference to a command result.
type Handle struct {
	id   int
	arg  Argument
	Kind HandleKind
	Type string
}

func (h Handle) argument() Argument { return h.arg }

// Arg returns the underlying argument without consuming the handle.
func (h Handle) Arg() Argument { return h.arg }

// Result declares one return value of a MoveCall.
type Result struct {
	Kind  HandleKind
	Type  string
	Label string
}

// Coin declares a Coin<coinType> return.
func Coin(coinType, label string) Result { return Result{Kind: KindCoin, Type: coinType, Label: label} }

// Object declares an object return, such as an NFT or a hot potato.
func Object(typ, label string) Result { return Result{Kind: KindObject, Type: typ, Label: label} }

type handleState struct {
	label      string
	createdBy  int
	consumed   bool
	consumedBy int
}

// Builder accumulates inputs and commands. Errors are sticky and reported by
// Finish.
type Builder struct {
	sender    string
	gasBudget uint64

	inputs    []Input
	objectIdx map[string]int
	commands  []Command
	handles   []*handleState
	errs      []error
}

// NewBuilder starts a transaction for sender.
func NewBuilder(sender string, gasBudget uint64) *Builder {
	b := &Builder{gasBudget: gasBudget, objectIdx: make(map[string]int)}
	norm, err := domain.NormalizeAddress(sender)
	if err != nil {
		b.fail(fmt.Errorf("sender: %w", err))
	}
	b.sender = norm
	return b
}

func (b *Builder) fail(err error) {
	b.errs = append(b.errs, err)
}

// Err returns the first recorded error, if any.
func (b *Builder) Err() error {
	if len(b.errs) == 0 {
		return nil
	}
	return b.errs[0]
}

// Gas is the gas coin.
func (b *Builder) Gas() Argument { return Argument{Kind: ArgGasCoin} }

func (b *Builder) pure(v []byte) Argument {
	b.inputs = append(b.inputs, Input{Pure: &PureArg{Bytes: v}})
	return Argument{Kind: ArgInput, Index: uint16(len(b.inputs) - 1)}
}

// PureU64 adds a u64 input.
func (b *Builder) PureU64(v uint64) Argument { return b.pure(EncodeU64(v)) }

// PureAmount adds an amount as a u64 input.
func (b *Builder) PureAmount(a domain.Amount) Argument {
	v, ok := a.Uint64()
	if !ok {
		b.fail(fmt.Errorf("%w: %s overflows u64", domain.ErrInvalidAmount, a))
	}
	return b.PureU64(v)
}

// PureU8 adds a u8 input.
func (b *Builder) PureU8(v uint8) Argument { return b.pure(EncodeU8(v)) }

// PureBool adds a bool input.
func (b *Builder) PureBool(v bool) Argument { return b.pure(EncodeBool(v)) }

// PureString adds a string input.
func (b *Builder) PureString(s string) Argument { return b.pure(EncodeString(s)) }

// PureAddress adds an address input.
func (b *Builder) PureAddress(addr string) Argument {
	enc, err := EncodeAddress(addr)
	if err != nil {
		b.fail(err)
		enc = make([]byte, domain.AddressLength)
	}
	return b.pure(enc)
}

// PureOptionU64 adds an Option<u64> input.
func (b *Builder) PureOptionU64(v *uint64) Argument {
	if v == nil {
		return b.pure(EncodeOption(nil))
	}
	return b.pure(EncodeOption(EncodeU64(*v)))
}

func (b *Builder) object(id string, in Input, merge func(existing *Input)) Argument {
	norm, err := domain.NormalizeAddress(id)
	if err != nil {
		b.fail(fmt.Errorf("object id: %w", err))
		norm = id
	}
	if idx, ok := b.objectIdx[norm]; ok {
		if merge != nil {
			merge(&b.inputs[idx])
		}
		return Argument{Kind: ArgInput, Index: uint16(idx)}
	}
	b.inputs = append(b.inputs, in)
	idx := len(b.inputs) - 1
	b.objectIdx[norm] = idx
	return Argument{Kind: ArgInput, Index: uint16(idx)}
}

// SharedObject adds a shared object input. Adding the same object twice
// returns the first input, upgraded to mutable if either use needs it.
func (b *Builder) SharedObject(id string, initialSharedVersion uint64, mutable bool) Argument {
	norm, _ := domain.NormalizeAddress(id)
	ref := &SharedObjectRef{
		ObjectID:             norm,
		InitialSharedVersion: strconv.FormatUint(initialSharedVersion, 10),
		Mutable:              mutable,
	}
	return b.object(id, Input{Object: &ObjectArg{SharedObject: ref}}, func(existing *Input) {
		if existing.Object != nil && existing.Object.SharedObject != nil && mutable {
			existing.Object.SharedObject.Mutable = true
		}
	})
}

// OwnedObject adds an owned object input. Without a version the object is
// left for the signer's wallet to resolve.
func (b *Builder) OwnedObject(id, version, digest string) Argument {
	norm, _ := domain.NormalizeAddress(id)
	if version == "" || digest == "" {
		return b.object(id, Input{UnresolvedObject: &UnresolvedObject{ObjectID: norm}}, nil)
	}
	ref := &ObjectRef{ObjectID: norm, Version: version, Digest: digest}
	return b.object(id, Input{Object: &ObjectArg{ImmOrOwnedObject: ref}}, nil)
}

func (b *Builder) newHandle(cmd int, nested int, kind HandleKind, typ, label string) Handle {
	b.handles = append(b.handles, &handleState{label: label, createdBy: cmd})
	return Handle{
		id:   len(b.handles),
		arg:  Argument{Kind: ArgNestedResult, Index: uint16(cmd), Nested: uint16(nested)},
		Kind: kind,
		Type: typ,
	}
}

// consume marks v as used by the next command when it is a tracked handle.
func (b *Builder) consume(v Value) Argument {
	h, ok := v.(Handle)
	if !ok || h.Kind == KindCopy {
		return v.argument()
	}
	if h.id <= 0 || h.id > len(b.handles) {
		b.fail(fmt.Errorf("ptb: handle %s does not belong to this builder", h.arg))
		return h.arg
	}
	st := b.handles[h.id-1]
	if st.consumed {
		b.fail(fmt.Errorf("%w: %s (%s) already used by command %d", domain.ErrValueReused, st.label, h.arg, st.consumedBy))
		return h.arg
	}
	st.consumed = true
	st.consumedBy = len(b.commands)
	return h.arg
}

// Borrow passes a handle by reference without consuming it.
func (b *Builder) Borrow(h Handle) Argument { return h.arg }

// MoveCall appends a call to target ("package::module::function"). Handles in
// args are consumed; the declared returns come back as new handles.
func (b *Builder) MoveCall(target string, typeArgs []string, args []Value, returns ...Result) []Handle {
	parts := strings.Split(target, "::")
	if len(parts) != 3 {
		b.fail(fmt.Errorf("ptb: bad move call target %q", target))
		parts = []string{target, "", ""}
	}
	pkg := parts[0]
	if norm, err := domain.NormalizeAddress(pkg); err == nil {
		pkg = norm
	}
	call := &MoveCall{
		Package:       pkg,
		Module:        parts[1],
		Function:      parts[2],
		TypeArguments: append([]string{}, typeArgs...),
		Arguments:     make([]Argument, 0, len(args)),
	}
	for _, a := range args {
		call.Arguments = append(call.Arguments, b.consume(a))
	}
	cmd := len(b.commands)
	b.commands = append(b.commands, Command{MoveCall: call})

	out := make([]Handle, 0, len(returns))
	for i, r := range returns {
		label := r.Label
		if label == "" {
			label = fmt.Sprintf("%s#%d", call.Function, i)
		}
		out = append(out, b.newHandle(cmd, i, r.Kind, r.Type, label))
	}
	return out
}

// SplitCoins splits amounts off src, which is borrowed, not consumed.
func (b *Builder) SplitCoins(src Value, coinType, label string, amounts ...Value) []Handle {
	split := &SplitCoins{Coin: src.argument(), Amounts: make([]Argument, 0, len(amounts))}
	for _, a := range amounts {
		split.Amounts = append(split.Amounts, b.consume(a))
	}
	cmd := len(b.commands)
	b.commands = append(b.commands, Command{SplitCoins: split})

	out := make([]Handle, len(amounts))
	for i := range amounts {
		l := label
		if len(amounts) > 1 {
			l = fmt.Sprintf("%s#%d", label, i)
		}
		out[i] = b.newHandle(cmd, i, KindCoin, coinType, l)
	}
	return out
}

// Split is SplitCoins for a single amount.
func (b *Builder) Split(src Value, coinType, label string, amount domain.Amount) Handle {
	return b.SplitCoins(src, coinType, label, b.PureAmount(amount))[0]
}

// MergeCoins folds sources into dst. Sources are consumed; dst is not.
func (b *Builder) MergeCoins(dst Value, sources ...Value) {
	if len(sources) == 0 {
		return
	}
	merge := &MergeCoins{Destination: dst.argument(), Sources: make([]Argument, 0, len(sources))}
	for _, s := range sources {
		merge.Sources = append(merge.Sources, b.consume(s))
	}
	b.commands = append(b.commands, Command{MergeCoins: merge})
}

// TransferObjects sends objects to recipient, consuming them.
func (b *Builder) TransferObjects(recipient string, objects ...Value) {
	if len(objects) == 0 {
		return
	}
	transfer := &TransferObjects{Objects: make([]Argument, 0, len(objects))}
	for _, o := range objects {
		transfer.Objects = append(transfer.Objects, b.consume(o))
	}
	transfer.Address = b.PureAddress(recipient)
	b.commands = append(b.commands, Command{TransferObjects: transfer})
}

// Unconsumed lists the labels of handles not yet consumed.
func (b *Builder) Unconsumed() []string {
	var out []string
	for _, st := range b.handles {
		if !st.consumed {
			out = append(out, fmt.Sprintf("%s from command %d", st.label, st.createdBy))
		}
	}
	return out
}

// Finish checks linear use and returns the transaction.
func (b *Builder) Finish() (*Transaction, error) {
	errs := append([]error(nil), b.errs...)
	if left := b.Unconsumed(); len(left) > 0 {
		errs = append(errs, fmt.Errorf("%w: %s", domain.ErrUnconsumedValue, strings.Join(left, ", ")))
	}
	if len(b.commands) == 0 {
		errs = append(errs, errors.New("ptb: no commands"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("ptb: finish: %w", err)
	}

	return &Transaction{
		Version:  TransactionVersion,
		Sender:   b.sender,
		GasData:  GasData{Budget: strconv.FormatUint(b.gasBudget, 10)},
		Inputs:   append([]Input(nil), b.inputs...),
		Commands: append([]Command(nil), b.commands...),
	}, nil
}
