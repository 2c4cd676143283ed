package ptb

import (
	"encoding/json"
	"fmt"
)

// ArgumentKind is the variant of a command argument.
type ArgumentKind string

const (
	ArgGasCoin      ArgumentKind = "GasCoin"
	ArgInput        ArgumentKind = "Input"
	ArgResult       ArgumentKind = "Result"
	ArgNestedResult ArgumentKind = "NestedResult"
)

// Argument references the gas coin, an input or a command result.
type Argument struct {
	Kind   ArgumentKind
	Index  uint16
	Nested uint16
}

func (a Argument) argument() Argument { return a }

// String renders the argument the way the JSON form spells it.
func (a Argument) String() string {
	switch a.Kind {
	case ArgGasCoin:
		return "GasCoin"
	case ArgNestedResult:
		return fmt.Sprintf("NestedResult(%d,%d)", a.Index, a.Nested)
	default:
		return fmt.Sprintf("%s(%d)", a.Kind, a.Index)
	}
}

func (a Argument) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case ArgGasCoin:
		return json.Marshal(map[string]bool{"GasCoin": true})
	case ArgInput:
		return json.Marshal(map[string]uint16{"Input": a.Index})
	case ArgResult:
		return json.Marshal(map[string]uint16{"Result": a.Index})
	case ArgNestedResult:
		return json.Marshal(map[string][2]uint16{"NestedResult": {a.Index, a.Nested}})
	default:
		return nil, fmt.Errorf("ptb: unknown argument kind %q", a.Kind)
	}
}

func (a *Argument) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		switch ArgumentKind(k) {
		case ArgGasCoin:
			*a = Argument{Kind: ArgGasCoin}
			return nil
		case ArgInput, ArgResult:
			var idx uint16
			if err := json.Unmarshal(v, &idx); err != nil {
				return err
			}
			*a = Argument{Kind: ArgumentKind(k), Index: idx}
			return nil
		case ArgNestedResult:
			var pair [2]uint16
			if err := json.Unmarshal(v, &pair); err != nil {
				return err
			}
			*a = Argument{Kind: ArgNestedResult, Index: pair[0], Nested: pair[1]}
			return nil
		}
	}
	return fmt.Errorf("ptb: unrecognised argument %s", data)
}

// Input is a transaction input: pure bytes or an object reference.
type Input struct {
	Pure             *PureArg          `json:"Pure,omitempty"`
	Object           *ObjectArg        `json:"Object,omitempty"`
	UnresolvedObject *UnresolvedObject `json:"UnresolvedObject,omitempty"`
}

// PureArg is a BCS-encoded value. encoding/json renders []byte as base64.
type PureArg struct {
	Bytes []byte `json:"bytes"`
}

// ObjectArg is a fully resolved object input.
type ObjectArg struct {
	ImmOrOwnedObject *ObjectRef       `json:"ImmOrOwnedObject,omitempty"`
	SharedObject     *SharedObjectRef `json:"SharedObject,omitempty"`
	Receiving        *ObjectRef       `json:"Receiving,omitempty"`
}

// ObjectRef pins an owned object version.
type ObjectRef struct {
	ObjectID string `json:"objectId"`
	Version  string `json:"version"`
	Digest   string `json:"digest"`
}

// SharedObjectRef references a shared object.
type SharedObjectRef struct {
	ObjectID             string `json:"objectId"`
	InitialSharedVersion string `json:"initialSharedVersion"`
	Mutable              bool   `json:"mutable"`
}

// UnresolvedObject is an object the signer's wallet resolves before signing.
type UnresolvedObject struct {
	ObjectID string `json:"objectId"`
}

// ObjectID returns the id of an object input, or "" for pure inputs.
func (in Input) ObjectID() string {
	switch {
	case in.UnresolvedObject != nil:
		return in.UnresolvedObject.ObjectID
	case in.Object == nil:
		return ""
	case in.Object.ImmOrOwnedObject != nil:
		return in.Object.ImmOrOwnedObject.ObjectID
	case in.Object.SharedObject != nil:
		return in.Object.SharedObject.ObjectID
	case in.Object.Receiving != nil:
		return in.Object.Receiving.ObjectID
	}
	return ""
}

// Command is one step of a programmable transaction. Exactly one field is set.
type Command struct {
	MoveCall        *MoveCall        `json:"MoveCall,omitempty"`
	SplitCoins      *SplitCoins      `json:"SplitCoins,omitempty"`
	MergeCoins      *MergeCoins      `json:"MergeCoins,omitempty"`
	TransferObjects *TransferObjects `json:"TransferObjects,omitempty"`
}

// MoveCall invokes package::module::function.
type MoveCall struct {
	Package       string     `json:"package"`
	Module        string     `json:"module"`
	Function      string     `json:"function"`
	TypeArguments []string   `json:"typeArguments"`
	Arguments     []Argument `json:"arguments"`
}

// Target is the fully qualified function name.
func (m MoveCall) Target() string {
	return m.Package + "::" + m.Module + "::" + m.Function
}

// SplitCoins splits amounts off a coin; each amount becomes a new coin.
type SplitCoins struct {
	Coin    Argument   `json:"coin"`
	Amounts []Argument `json:"amounts"`
}

// MergeCoins folds sources into destination.
type MergeCoins struct {
	Destination Argument   `json:"destination"`
	Sources     []Argument `json:"sources"`
}

// TransferObjects sends objects to an address.
type TransferObjects struct {
	Objects []Argument `json:"objects"`
	Address Argument   `json:"address"`
}

// Name returns the command's variant name.
func (c Command) Name() string {
	switch {
	case c.MoveCall != nil:
		return "MoveCall"
	case c.SplitCoins != nil:
		return "SplitCoins"
	case c.MergeCoins != nil:
		return "MergeCoins"
	case c.TransferObjects != nil:
		return "TransferObjects"
	}
	return ""
}

// GasData is the gas section. Price, owner and payment are left to the signer.
type GasData struct {
	Budget  string      `json:"budget"`
	Price   *string     `json:"price"`
	Owner   *string     `json:"owner"`
	Payment []ObjectRef `json:"payment"`
}
