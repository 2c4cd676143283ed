package ptb

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

const (
	sender = "0xa11ce"
	sui    = "0x2::sui::SUI"
	ns     = "0x5145::ns::NS"
)

func TestBCSPrimitives(t *testing.T) {
	require.Equal(t, []byte{0x40, 0xe2, 0x01, 0, 0, 0, 0, 0}, EncodeU64(123456))
	v, err := DecodeU64(EncodeU64(123456))
	require.NoError(t, err)
	require.Equal(t, uint64(123456), v)

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	enc := EncodeString(string(long))
	require.Equal(t, []byte{0xc8, 0x01}, enc[:2])
	s, err := DecodeString(enc)
	require.NoError(t, err)
	require.Equal(t, string(long), s)

	addr, err := EncodeAddress("0x2")
	require.NoError(t, err)
	require.Len(t, addr, 32)
	back, err := DecodeAddress(addr)
	require.NoError(t, err)
	require.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000002", back)

	require.Equal(t, []byte{0}, EncodeOption(nil))
	require.Equal(t, []byte{1, 7}, EncodeOption(EncodeU8(7)))
	_, err = DecodeBool([]byte{2})
	require.Error(t, err)
}

func TestBuilderLinearUse(t *testing.T) {
	b := NewBuilder(sender, 50_000_000)
	coin := b.Split(b.Gas(), sui, "sui_in", domain.NewAmount(1000))
	outs := b.MoveCall("0xdee9::pool::swap_exact_quote_for_base", []string{ns, sui},
		[]Value{b.SharedObject("0xb001", 1, true), coin, b.PureU64(10)},
		Coin(ns, "ns_out"), Coin(sui, "sui_left"))
	b.MergeCoins(b.Gas(), outs[1])
	b.TransferObjects(sender, outs[0])

	tx, err := b.Finish()
	require.NoError(t, err)
	require.Len(t, tx.Commands, 4)
	require.Equal(t, "MoveCall", tx.Commands[1].Name())
	require.Equal(t, ArgNestedResult, tx.Commands[1].MoveCall.Arguments[1].Kind)
	require.Equal(t, "0x000000000000000000000000000000000000000000000000000000000000dee9", tx.Commands[1].MoveCall.Package)
}

func TestBuilderRejectsUnconsumed(t *testing.T) {
	b := NewBuilder(sender, 1)
	coin := b.Split(b.Gas(), sui, "dust", domain.NewAmount(5))
	_ = coin

	_, err := b.Finish()
	require.ErrorIs(t, err, domain.ErrUnconsumedValue)
	require.Contains(t, err.Error(), "dust")
}

func TestBuilderRejectsReuse(t *testing.T) {
	b := NewBuilder(sender, 1)
	coin := b.Split(b.Gas(), sui, "coin", domain.NewAmount(5))
	b.TransferObjects(sender, coin)
	b.TransferObjects("0xb0b", coin)

	_, err := b.Finish()
	require.ErrorIs(t, err, domain.ErrValueReused)
}

func TestBorrowDoesNotConsume(t *testing.T) {
	b := NewBuilder(sender, 1)
	coin := b.Split(b.Gas(), sui, "coin", domain.NewAmount(5))
	part := b.Split(coin, sui, "part", domain.NewAmount(2))
	b.MoveCall("0x2::coin::value", []string{sui}, []Value{b.Borrow(coin)})
	b.MergeCoins(coin, part)
	b.TransferObjects(sender, coin)

	_, err := b.Finish()
	require.NoError(t, err)
}

func TestSharedObjectDeduplicates(t *testing.T) {
	b := NewBuilder(sender, 1)
	first := b.SharedObject("0x6", 1, false)
	second := b.SharedObject("0x0000000000000000000000000000000000000000000000000000000000000006", 1, true)
	require.Equal(t, first, second)
	b.MoveCall("0x2::clock::timestamp_ms", nil, []Value{first})

	tx, err := b.Finish()
	require.NoError(t, err)
	require.Len(t, tx.Inputs, 1)
	require.True(t, tx.Inputs[0].Object.SharedObject.Mutable)
}

func TestBadAddressesAreSticky(t *testing.T) {
	b := NewBuilder("not-an-address", 1)
	coin := b.Split(b.Gas(), sui, "c", domain.NewAmount(1))
	b.TransferObjects("0xzz", coin)

	_, err := b.Finish()
	require.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestTransactionRoundTrip(t *testing.T) {
	b := NewBuilder(sender, 10)
	coin := b.Split(b.Gas(), sui, "c", domain.NewAmount(42))
	nft := b.MoveCall("0xd22b::payment::register", nil,
		[]Value{b.SharedObject("0x5", 3, true), b.PureString("abc.sui"), b.PureU8(1), coin},
		Object("0xd22b::suins_registration::SuinsRegistration", "nft"))
	b.TransferObjects(sender, nft[0])
	tx, err := b.Finish()
	require.NoError(t, err)

	enc, err := tx.Base64()
	require.NoError(t, err)
	decoded, err := DecodeBase64(enc)
	require.NoError(t, err)
	require.Equal(t, tx.Commands, decoded.Commands)
	require.Equal(t, tx.Inputs, decoded.Inputs)

	d1, err := tx.Digest()
	require.NoError(t, err)
	d2, err := decoded.Digest()
	require.NoError(t, err)
	require.Equal(t, d1, d2)
	require.Len(t, d1, 66)

	raw, err := tx.JSON()
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	require.EqualValues(t, 2, generic["version"])
}

func TestArgumentJSON(t *testing.T) {
	for _, a := range []Argument{
		{Kind: ArgGasCoin},
		{Kind: ArgInput, Index: 3},
		{Kind: ArgResult, Index: 1},
		{Kind: ArgNestedResult, Index: 2, Nested: 1},
	} {
		raw, err := json.Marshal(a)
		require.NoError(t, err)
		var back Argument
		require.NoError(t, json.Unmarshal(raw, &back))
		require.Equal(t, a, back)
	}
}
