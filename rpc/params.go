package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"apexcore/crypto"
	"apexcore/native/amm"
)

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("expected a single params object")
	}
	return json.Unmarshal(req.Params[0], out)
}

// parseAmount decodes a base-10 octa amount. Engines re-validate positivity;
// this only rejects unparseable input so errors surface as parameter faults.
func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, errors.New("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func parseAddress(value string) (crypto.Address, error) {
	return crypto.DecodeAddress(strings.TrimSpace(value))
}

func parseAsset(value string) (amm.Asset, error) {
	asset := amm.Asset(strings.ToUpper(strings.TrimSpace(value)))
	if !asset.Valid() {
		return "", fmt.Errorf("unknown asset %q", value)
	}
	return asset, nil
}
