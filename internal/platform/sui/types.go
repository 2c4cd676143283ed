package sui

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NamesPage is the result of suix_resolveNameServiceNames.
type NamesPage struct {
	Data        []string `json:"data"`
	HasNextPage bool     `json:"hasNextPage"`
	NextCursor  *string  `json:"nextCursor"`
}

// ObjectResponse is the result of sui_getObject.
type ObjectResponse struct {
	Data  *ObjectData     `json:"data"`
	Error json.RawMessage `json:"error,omitempty"`
}

// ObjectData is an object's metadata plus its parsed Move content.
type ObjectData struct {
	ObjectID string          `json:"objectId"`
	Version  string          `json:"version"`
	Digest   string          `json:"digest"`
	Type     string          `json:"type"`
	Owner    json.RawMessage `json:"owner"`
	Content  *MoveContent    `json:"content"`
}

// MoveContent is the moveObject content of an object.
type MoveContent struct {
	DataType string          `json:"dataType"`
	Type     string          `json:"type"`
	Fields   json.RawMessage `json:"fields"`
}

// SharedVersion returns the initial shared version when the object is
// shared, and false otherwise.
func (o ObjectData) SharedVersion() (uint64, bool) {
	var owner struct {
		Shared *struct {
			InitialSharedVersion json.Number `json:"initial_shared_version"`
		} `json:"Shared"`
	}
	if err := json.Unmarshal(o.Owner, &owner); err != nil || owner.Shared == nil {
		return 0, false
	}
	v, err := strconv.ParseUint(owner.Shared.InitialSharedVersion.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CoinPage is the result of suix_getCoins.
type CoinPage struct {
	Data        []CoinObject `json:"data"`
	HasNextPage bool         `json:"hasNextPage"`
	NextCursor  *string      `json:"nextCursor"`
}

// CoinObject is one owned coin.
type CoinObject struct {
	CoinType     string        `json:"coinType"`
	CoinObjectID string        `json:"coinObjectId"`
	Version      string        `json:"version"`
	Digest       string        `json:"digest"`
	Balance      domain.Amount `json:"balance"`
}
