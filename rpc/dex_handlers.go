package rpc

import (
	"math/big"
	"net/http"
)

type dexSwapParams struct {
	AssetIn      string `json:"assetIn"`
	AmountIn     string `json:"amountIn"`
	MinAmountOut string `json:"minAmountOut,omitempty"`
}

type dexQuoteParams struct {
	AssetIn  string `json:"assetIn"`
	AmountIn string `json:"amountIn"`
}

type dexLiquidityParams struct {
	Provider   string `json:"provider"`
	AmountAPT  string `json:"amountApt"`
	AmountAPEX string `json:"amountApex"`
}

type dexRemoveLiquidityParams struct {
	Provider string `json:"provider"`
	Shares   string `json:"shares"`
}

type dexAccountParams struct {
	Address string `json:"address"`
}

type dexAssetParams struct {
	Asset string `json:"asset"`
}

type dexSwapResult struct {
	AmountOut string `json:"amountOut"`
}

type dexQuoteResult struct {
	AmountOut string `json:"amountOut"`
}

type dexReservesResult struct {
	ReserveAPT  string `json:"reserveApt"`
	ReserveAPEX string `json:"reserveApex"`
}

type dexLiquidityResult struct {
	SharesMinted string `json:"sharesMinted"`
}

type dexWithdrawalResult struct {
	AmountAPT  string `json:"amountApt"`
	AmountAPEX string `json:"amountApex"`
}

type dexSharesResult struct {
	Shares string `json:"shares"`
}

type dexPriceResult struct {
	Asset string `json:"asset"`
	Price string `json:"price"`
}

func (s *Server) handleDexSwap(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dexSwapParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	asset, err := parseAsset(params.AssetIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amountIn, err := parseAmount(params.AmountIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var minOut *big.Int
	if params.MinAmountOut != "" {
		parsed, err := parseAmount(params.MinAmountOut)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		minOut = parsed
	}
	out, err := s.node.Swap(asset, amountIn, minOut)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, dexSwapResult{AmountOut: out.String()})
}

func (s *Server) handleDexQuote(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dexQuoteParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	asset, err := parseAsset(params.AssetIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amountIn, err := parseAmount(params.AmountIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	out, err := s.node.QuoteSwap(asset, amountIn)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, dexQuoteResult{AmountOut: out.String()})
}

func (s *Server) handleDexAddLiquidity(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dexLiquidityParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	provider, err := parseAddress(params.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amountAPT, err := parseAmount(params.AmountAPT)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amountAPEX, err := parseAmount(params.AmountAPEX)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	minted, err := s.node.AddLiquidity(provider, amountAPT, amountAPEX)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, dexLiquidityResult{SharesMinted: minted.String()})
}

func (s *Server) handleDexRemoveLiquidity(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dexRemoveLiquidityParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	provider, err := parseAddress(params.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	shares, err := parseAmount(params.Shares)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	outAPT, outAPEX, err := s.node.RemoveLiquidity(provider, shares)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, dexWithdrawalResult{AmountAPT: outAPT.String(), AmountAPEX: outAPEX.String()})
}

func (s *Server) handleDexGetReserves(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	reserveAPT, reserveAPEX, err := s.node.PoolReserves()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, dexReservesResult{
		ReserveAPT:  reserveAPT.String(),
		ReserveAPEX: reserveAPEX.String(),
	})
}

func (s *Server) handleDexSpotPrice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dexAssetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	asset, err := parseAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	price, err := s.node.SpotPrice(asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, dexPriceResult{Asset: string(asset), Price: price.String()})
}

func (s *Server) handleDexLiquidityOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dexAccountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	shares, err := s.node.LiquidityShares(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, dexSharesResult{Shares: shares.String()})
}
