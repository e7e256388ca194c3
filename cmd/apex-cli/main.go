package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

var rpcEndpoint = defaultRPCEndpoint()

func defaultRPCEndpoint() string {
	if url := strings.TrimSpace(os.Getenv("APEX_RPC_URL")); url != "" {
		return url
	}
	return "http://127.0.0.1:8080/rpc"
}

func main() {
	args := os.Args[1:]
	if len(args) > 1 && args[0] == "--rpc" {
		rpcEndpoint = args[1]
		args = args[2:]
	}
	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	rest := args[1:]
	var err error
	switch command {
	case "swap":
		err = requireArgs(rest, 2, "swap <asset-in> <amount-in> [min-out]")
		if err == nil {
			params := map[string]string{"assetIn": rest[0], "amountIn": rest[1]}
			if len(rest) > 2 {
				params["minAmountOut"] = rest[2]
			}
			err = call("dex_swap", params)
		}
	case "quote":
		err = requireArgs(rest, 2, "quote <asset-in> <amount-in>")
		if err == nil {
			err = call("dex_quote", map[string]string{"assetIn": rest[0], "amountIn": rest[1]})
		}
	case "add-liquidity":
		err = requireArgs(rest, 3, "add-liquidity <provider> <amount-apt> <amount-apex>")
		if err == nil {
			err = call("dex_addLiquidity", map[string]string{
				"provider": rest[0], "amountApt": rest[1], "amountApex": rest[2],
			})
		}
	case "remove-liquidity":
		err = requireArgs(rest, 2, "remove-liquidity <provider> <shares>")
		if err == nil {
			err = call("dex_removeLiquidity", map[string]string{"provider": rest[0], "shares": rest[1]})
		}
	case "reserves":
		err = call("dex_getReserves", map[string]string{})
	case "spot-price":
		err = requireArgs(rest, 1, "spot-price <asset>")
		if err == nil {
			err = call("dex_spotPrice", map[string]string{"asset": rest[0]})
		}
	case "deposit":
		err = requireArgs(rest, 2, "deposit <address> <amount>")
		if err == nil {
			err = call("lend_depositCollateral", map[string]string{"address": rest[0], "amount": rest[1]})
		}
	case "withdraw":
		err = requireArgs(rest, 2, "withdraw <address> <amount>")
		if err == nil {
			err = call("lend_withdrawCollateral", map[string]string{"address": rest[0], "amount": rest[1]})
		}
	case "borrow":
		err = requireArgs(rest, 2, "borrow <address> <amount>")
		if err == nil {
			err = call("lend_borrow", map[string]string{"address": rest[0], "amount": rest[1]})
		}
	case "repay":
		err = requireArgs(rest, 2, "repay <address> <amount>")
		if err == nil {
			err = call("lend_repay", map[string]string{"address": rest[0], "amount": rest[1]})
		}
	case "repay-interest":
		err = requireArgs(rest, 1, "repay-interest <address>")
		if err == nil {
			err = call("lend_repayInterest", map[string]string{"address": rest[0]})
		}
	case "liquidate":
		err = requireArgs(rest, 2, "liquidate <liquidator> <borrower>")
		if err == nil {
			err = call("lend_liquidate", map[string]string{"liquidator": rest[0], "borrower": rest[1]})
		}
	case "position":
		err = requireArgs(rest, 1, "position <address>")
		if err == nil {
			err = call("lend_getPosition", map[string]string{"address": rest[0]})
		}
	case "totals":
		err = call("lend_getTotals", map[string]string{})
	case "ratio":
		err = requireArgs(rest, 1, "ratio <address>")
		if err == nil {
			err = call("lend_collateralRatio", map[string]string{"address": rest[0]})
		}
	case "price":
		err = requireArgs(rest, 1, "price <asset>")
		if err == nil {
			err = call("oracle_price", map[string]string{"asset": rest[0]})
		}
	default:
		printUsage()
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func requireArgs(args []string, count int, usage string) error {
	if len(args) < count {
		return fmt.Errorf("usage: apex-cli %s", usage)
	}
	return nil
}

func call(method string, params map[string]string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  []interface{}{params},
	})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Post(rpcEndpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return err
	}
	if decoded.Error != nil {
		return fmt.Errorf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, decoded.Result, "", "  "); err != nil {
		fmt.Println(string(decoded.Result))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func printUsage() {
	fmt.Println(`apex-cli - JSON-RPC client for apexd

Usage:
  apex-cli [--rpc <url>] <command> [args]

Pool commands:
  swap <asset-in> <amount-in> [min-out]
  quote <asset-in> <amount-in>
  add-liquidity <provider> <amount-apt> <amount-apex>
  remove-liquidity <provider> <shares>
  reserves
  spot-price <asset>

Lending commands:
  deposit <address> <amount>
  withdraw <address> <amount>
  borrow <address> <amount>
  repay <address> <amount>
  repay-interest <address>
  liquidate <liquidator> <borrower>
  position <address>
  totals
  ratio <address>
  price <asset>

Amounts are integers in octas (1e8 fixed point). Assets are APT or APEX.
Set APEX_RPC_URL to override the default endpoint.`)
}
