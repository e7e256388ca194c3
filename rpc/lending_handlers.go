package rpc

import (
	"net/http"
)

type lendAmountParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type lendAccountParams struct {
	Address string `json:"address"`
}

type lendLiquidateParams struct {
	Liquidator string `json:"liquidator"`
	Borrower   string `json:"borrower"`
}

type lendPositionResult struct {
	Address         string `json:"address"`
	Collateral      string `json:"collateral"`
	PrincipalDebt   string `json:"principalDebt"`
	AccruedInterest string `json:"accruedInterest"`
	LastAccrual     uint64 `json:"lastAccrual"`
}

type lendTotalsResult struct {
	TotalCollateral string `json:"totalCollateral"`
	TotalDebt       string `json:"totalDebt"`
	TotalFees       string `json:"totalFees"`
	TreasuryAPT     string `json:"treasuryApt"`
}

type lendBorrowResult struct {
	Disbursed string `json:"disbursed"`
}

type lendRepayResult struct {
	Applied string `json:"applied"`
	Fee     string `json:"fee"`
}

type lendLiquidateResult struct {
	LiquidatorReward string `json:"liquidatorReward"`
	TreasuryShare    string `json:"treasuryShare"`
}

type lendRatioResult struct {
	RatioBps uint64 `json:"ratioBps"`
}

type lendLiquidatableResult struct {
	Liquidatable bool `json:"liquidatable"`
}

type lendOkResult struct {
	OK bool `json:"ok"`
}

func (s *Server) handleLendDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.DepositCollateral(addr, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, lendOkResult{OK: true})
}

func (s *Server) handleLendWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.WithdrawCollateral(addr, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, lendOkResult{OK: true})
}

func (s *Server) handleLendBorrow(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	disbursed, err := s.node.Borrow(addr, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, lendBorrowResult{Disbursed: disbursed.String()})
}

func (s *Server) handleLendRepay(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	applied, fee, err := s.node.Repay(addr, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, lendRepayResult{Applied: applied.String(), Fee: fee.String()})
}

func (s *Server) handleLendRepayInterest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendAccountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	applied, fee, err := s.node.RepayInterestOnly(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, lendRepayResult{Applied: applied.String(), Fee: fee.String()})
}

func (s *Server) handleLendLiquidate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendLiquidateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	liquidator, err := parseAddress(params.Liquidator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	borrower, err := parseAddress(params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	reward, treasury, err := s.node.Liquidate(liquidator, borrower)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, lendLiquidateResult{
		LiquidatorReward: reward.String(),
		TreasuryShare:    treasury.String(),
	})
}

func (s *Server) handleLendGetPosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendAccountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	position, err := s.node.LendingPosition(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, lendPositionResult{
		Address:         position.Addr.String(),
		Collateral:      position.Collateral.String(),
		PrincipalDebt:   position.PrincipalDebt.String(),
		AccruedInterest: position.AccruedInterest.String(),
		LastAccrual:     position.LastAccrual,
	})
}

func (s *Server) handleLendGetTotals(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	totals, err := s.node.ProtocolTotals()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, lendTotalsResult{
		TotalCollateral: totals.TotalCollateral.String(),
		TotalDebt:       totals.TotalDebt.String(),
		TotalFees:       totals.TotalFees.String(),
		TreasuryAPT:     totals.TreasuryAPT.String(),
	})
}

func (s *Server) handleLendCollateralRatio(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendAccountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ratio, err := s.node.CollateralRatio(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, lendRatioResult{RatioBps: ratio})
}

func (s *Server) handleLendIsLiquidatable(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendAccountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	liquidatable, err := s.node.IsLiquidatable(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, lendLiquidatableResult{Liquidatable: liquidatable})
}

func (s *Server) handleOraclePrice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
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
	price, err := s.node.PriceUSD(asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, dexPriceResult{Asset: string(asset), Price: price.String()})
}
