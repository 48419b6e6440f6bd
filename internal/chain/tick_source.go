package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const slot0ABIJSON = `[
  {
    "inputs": [],
    "name": "slot0",
    "outputs": [
      {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"internalType": "int24", "name": "tick", "type": "int24"},
      {"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
      {"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
      {"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
      {"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
      {"internalType": "bool", "name": "unlocked", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	slot0ABI     abi.ABI
	slot0ABIOnce sync.Once
	slot0ABIErr  error
)

func slot0ABIInstance() (abi.ABI, error) {
	slot0ABIOnce.Do(func() {
		slot0ABI, slot0ABIErr = abi.JSON(strings.NewReader(slot0ABIJSON))
	})
	return slot0ABI, slot0ABIErr
}

// CurrentTick reads a pool's current price tick from slot0.
func (c *Client) CurrentTick(ctx context.Context, pool common.Address) (int32, error) {
	parsed, err := slot0ABIInstance()
	if err != nil {
		return 0, fmt.Errorf("parse slot0 abi: %w", err)
	}

	data, err := parsed.Pack("slot0")
	if err != nil {
		return 0, fmt.Errorf("pack slot0: %w", err)
	}

	resp, err := c.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("call slot0: %w", err)
	}

	values, err := parsed.Unpack("slot0", resp)
	if err != nil {
		return 0, fmt.Errorf("unpack slot0: %w", err)
	}
	if len(values) < 2 {
		return 0, fmt.Errorf("slot0 returned %d values", len(values))
	}

	tick, ok := values[1].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("slot0 tick has unexpected type %T", values[1])
	}
	if !tick.IsInt64() || tick.Int64() > 1<<23-1 || tick.Int64() < -(1<<23) {
		return 0, fmt.Errorf("slot0 tick out of int24 range: %s", tick)
	}
	return int32(tick.Int64()), nil
}
