package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAmountJSON(t *testing.T) {
	big := MustParseAmount("18446744073709551617000")
	raw, err := json.Marshal(struct {
		A Amount `json:"a"`
	}{big})
	require.NoError(t, err)
	require.JSONEq(t, `{"a":"18446744073709551617000"}`, string(raw))

	var out struct {
		A Amount `json:"a"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, 0, out.A.Cmp(big))

	require.NoError(t, json.Unmarshal([]byte(`{"a":42}`), &out))
	require.Equal(t, "42", out.A.String())

	require.Error(t, json.Unmarshal([]byte(`{"a":"1.5"}`), &out))
	require.Error(t, json.Unmarshal([]byte(`{"a":"-1"}`), &out))
}

func TestAmountArithmetic(t *testing.T) {
	a, b := NewAmount(7), NewAmount(10)
	require.Equal(t, "0", a.Sub(b).String())
	require.Equal(t, "3", b.Sub(a).String())
	require.Equal(t, "17", a.Add(b).String())
	require.Equal(t, a, a.Min(b))
	require.Equal(t, b, a.Max(b))
	require.Equal(t, "0", NewAmount(-5).String())

	var zero Amount
	require.True(t, zero.IsZero())
	require.Equal(t, "7", zero.Add(a).String())

	_, ok := MustParseAmount("18446744073709551616").Uint64()
	require.False(t, ok)
	u, ok := b.Uint64()
	require.True(t, ok)
	require.Equal(t, uint64(10), u)
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("0x2")
	require.NoError(t, err)
	require.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000002", got)

	got, err = NormalizeAddress("0xABCDEF")
	require.NoError(t, err)
	require.Len(t, got, 66)
	require.Equal(t, "abcdef", got[60:])

	for _, bad := range []string{"", "0x", "abc", "0xzz", "0x" + fmt.Sprintf("%065d", 1)} {
		_, err := NormalizeAddress(bad)
		require.ErrorIs(t, err, ErrInvalidAddress, bad)
	}
	require.True(t, IsAddress(BurnAddress))
}

func TestCoinLookup(t *testing.T) {
	set := CoinSet{
		Base:   Coin{Symbol: "SUI", Type: "0x2::sui::SUI", Decimals: 9},
		Reward: Coin{Symbol: "NS", Type: "0x5145::ns::NS", Decimals: 6},
	}
	c, err := set.Lookup("sui", nil)
	require.NoError(t, err)
	require.Equal(t, int32(9), c.Decimals)

	c, err = set.Lookup("0x0000000000000000000000000000000000000000000000000000000000000002::sui::SUI", nil)
	require.NoError(t, err)
	require.Equal(t, "SUI", c.Symbol)

	_, err = set.Lookup("WAL", nil)
	require.ErrorIs(t, err, ErrUnknownAsset)

	c, err = set.Lookup("WAL", []Coin{{Symbol: "WAL", Type: "0x356a::wal::WAL", Decimals: 9}})
	require.NoError(t, err)
	require.Equal(t, "WAL", c.Symbol)
}

func TestVaultTransitions(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := VaultRecord{ID: "v1", Status: VaultStatusCreated,
		RegistrationBudget: NewAmount(1000), ExecutorReward: NewAmount(50), ProtocolFee: NewAmount(10)}
	require.Equal(t, "1060", v.TotalEscrowed().String())

	require.Error(t, v.Transition(VaultStatusCreated, now))
	require.NoError(t, v.Transition(VaultStatusExecuted, now))
	require.Equal(t, VaultStatusExecuted, v.Status)
	require.Equal(t, now, v.UpdatedAt)

	err := v.Transition(VaultStatusCancelled, now)
	require.ErrorIs(t, err, ErrVaultTerminal)
}

func TestIsInputError(t *testing.T) {
	require.True(t, IsInputError(fmt.Errorf("pricing: %w", ErrInvalidYears)))
	require.False(t, IsInputError(errors.New("boom")))
	require.False(t, IsInputError(ErrVaultTerminal))
}
