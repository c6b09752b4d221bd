package rpcclient

import (
	"encoding/json"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc/result"
)

func blockParam(params []any, block *types.Hash) []any {
	if block != nil {
		params = append(params, block.Hex())
	}
	return params
}

func (c *Client) getHash(method string, params []any) (types.Hash, error) {
	var resp string
	if err := c.performRequest(method, params, &resp); err != nil {
		return types.Hash{}, err
	}
	h, err := types.NewHashFromHexString(resp)
	if err != nil {
		return types.Hash{}, fmt.Errorf("%s: bad hash: %w", method, err)
	}
	return h, nil
}

func (c *Client) getString(method string) (string, error) {
	var resp string
	if err := c.performRequest(method, nil, &resp); err != nil {
		return "", err
	}
	return resp, nil
}

// Call performs an arbitrary RPC call returning raw JSON result.
func (c *Client) Call(method string, params ...any) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.performRequest(method, params, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetMetadata returns hex-encoded runtime metadata (state_getMetadata).
func (c *Client) GetMetadata() (string, error) {
	return c.getString("state_getMetadata")
}

// GetRuntimeVersion returns runtime version at the given block, nil means
// the best one.
func (c *Client) GetRuntimeVersion(block *types.Hash) (*result.RuntimeVersion, error) {
	var resp = new(result.RuntimeVersion)
	if err := c.performRequest("state_getRuntimeVersion", blockParam(nil, block), resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetBlockHash returns the hash of the block with the given number.
func (c *Client) GetBlockHash(number uint64) (types.Hash, error) {
	return c.getHash("chain_getBlockHash", []any{number})
}

// GetBestBlockHash returns the hash of the best block.
func (c *Client) GetBestBlockHash() (types.Hash, error) {
	return c.getHash("chain_getBlockHash", nil)
}

// GetFinalizedHead returns the hash of the last finalized block.
func (c *Client) GetFinalizedHead() (types.Hash, error) {
	return c.getHash("chain_getFinalizedHead", nil)
}

// GetHeader returns block header, nil hash means the best block. Unknown
// blocks produce nil header.
func (c *Client) GetHeader(block *types.Hash) (*types.Header, error) {
	var resp *types.Header
	if err := c.performRequest("chain_getHeader", blockParam(nil, block), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SystemChain returns the chain name.
func (c *Client) SystemChain() (string, error) {
	return c.getString("system_chain")
}

// SystemName returns the node implementation name.
func (c *Client) SystemName() (string, error) {
	return c.getString("system_name")
}

// SystemVersion returns the node implementation version.
func (c *Client) SystemVersion() (string, error) {
	return c.getString("system_version")
}

// SystemProperties returns chain properties.
func (c *Client) SystemProperties() (*result.Properties, error) {
	var resp = new(result.Properties)
	if err := c.performRequest("system_properties", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SystemHealth returns node health status.
func (c *Client) SystemHealth() (*result.Health, error) {
	var resp = new(result.Health)
	if err := c.performRequest("system_health", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetStorage returns the value stored under the key, nil if there is none.
func (c *Client) GetStorage(key []byte, block *types.Hash) ([]byte, error) {
	var resp *string
	params := blockParam([]any{codec.HexEncodeToString(key)}, block)
	if err := c.performRequest("state_getStorage", params, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	v, err := codec.HexDecodeString(*resp)
	if err != nil {
		return nil, fmt.Errorf("state_getStorage: bad value: %w", err)
	}
	return v, nil
}

// QueryStorageAt returns values of all the keys at the given block in a single
// request (state_queryStorageAt).
func (c *Client) QueryStorageAt(keys [][]byte, block *types.Hash) ([]result.StorageChangeSet, error) {
	hexKeys := make([]string, len(keys))
	for i := range keys {
		hexKeys[i] = codec.HexEncodeToString(keys[i])
	}
	var resp []result.StorageChangeSet
	if err := c.performRequest("state_queryStorageAt", blockParam([]any{hexKeys}, block), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetKeysPaged returns up to count keys with the given prefix following
// startKey (which can be nil).
func (c *Client) GetKeysPaged(prefix []byte, count uint32, startKey []byte, block *types.Hash) ([][]byte, error) {
	params := []any{codec.HexEncodeToString(prefix), count, nil}
	if startKey != nil {
		params[2] = codec.HexEncodeToString(startKey)
	}
	var resp []string
	if err := c.performRequest("state_getKeysPaged", blockParam(params, block), &resp); err != nil {
		return nil, err
	}
	keys := make([][]byte, 0, len(resp))
	for _, k := range resp {
		b, err := codec.HexDecodeString(k)
		if err != nil {
			return nil, fmt.Errorf("state_getKeysPaged: bad key: %w", err)
		}
		keys = append(keys, b)
	}
	return keys, nil
}

// StateCall invokes runtime API method with SCALE-encoded arguments and
// returns SCALE-encoded result (state_call).
func (c *Client) StateCall(method string, data []byte, block *types.Hash) ([]byte, error) {
	var resp string
	params := blockParam([]any{method, codec.HexEncodeToString(data)}, block)
	if err := c.performRequest("state_call", params, &resp); err != nil {
		return nil, err
	}
	v, err := codec.HexDecodeString(resp)
	if err != nil {
		return nil, fmt.Errorf("state_call: bad result: %w", err)
	}
	return v, nil
}

// AccountNextIndex returns the next nonce of the account taking transaction
// pool into account (system_accountNextIndex).
func (c *Client) AccountNextIndex(address string) (uint32, error) {
	var resp uint32
	if err := c.performRequest("system_accountNextIndex", []any{address}, &resp); err != nil {
		return 0, err
	}
	return resp, nil
}

// SubmitExtrinsic submits signed extrinsic and returns its hash once the node
// accepts it into the pool (author_submitExtrinsic).
func (c *Client) SubmitExtrinsic(ext types.Extrinsic) (types.Hash, error) {
	enc, err := codec.EncodeToHex(ext)
	if err != nil {
		return types.Hash{}, fmt.Errorf("failed to encode extrinsic: %w", err)
	}
	h, err := c.getHash("author_submitExtrinsic", []any{enc})
	if err != nil {
		return types.Hash{}, err
	}
	extrinsicsSubmitted.Inc()
	return h, nil
}
