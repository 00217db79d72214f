package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"mintvault/crypto"
	"mintvault/native/position"
)

type vaultInitializeParams struct {
	Account        string `json:"account"`
	ReferencePrice string `json:"referencePrice"`
}

type vaultBorrowParams struct {
	Account    string `json:"account"`
	Collateral string `json:"collateral"`
	Amount     string `json:"amount"`
}

type vaultRepayParams struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type vaultLiquidateParams struct {
	Liquidator string `json:"liquidator"`
	Borrower   string `json:"borrower"`
}

type vaultAccountParams struct {
	Account string `json:"account"`
}

type vaultAmountParams struct {
	Amount string `json:"amount"`
}

type vaultPositionResult struct {
	Position *position.Position `json:"position"`
}

type vaultHealthResult struct {
	TotalDue           string `json:"totalDue"`
	RequiredCollateral string `json:"requiredCollateral"`
	Healthy            bool   `json:"healthy"`
}

type vaultRequiredCollateralResult struct {
	Required string `json:"required"`
}

type vaultLiquidateResult struct {
	AuctionID uint64 `json:"auctionId"`
}

type vaultSupplyResult struct {
	Supply *position.Supply `json:"supply"`
}

type ackResult struct {
	OK bool `json:"ok"`
}

func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected one parameter object", nil)
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter", err.Error())
		return false
	}
	return true
}

func parseAddress(w http.ResponseWriter, req *RPCRequest, field, raw string) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams,
			fmt.Sprintf("invalid %s address", field), err.Error())
		return crypto.Address{}, false
	}
	return addr, true
}

func parseAmount(w http.ResponseWriter, req *RPCRequest, field, raw string) (*big.Int, bool) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams,
			fmt.Sprintf("invalid %s amount", field), nil)
		return nil, false
	}
	return value, true
}

func (s *Server) handleVaultInitialize(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultInitializeParams
	if !decodeParams(w, req, &params) {
		return
	}
	account, ok := parseAddress(w, req, "account", params.Account)
	if !ok {
		return
	}
	price, ok := parseAmount(w, req, "referencePrice", params.ReferencePrice)
	if !ok {
		return
	}
	if err := s.positions.Initialize(account, price); err != nil {
		s.writeEngineError(w, req, req.Method, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleVaultBorrow(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultBorrowParams
	if !decodeParams(w, req, &params) {
		return
	}
	account, ok := parseAddress(w, req, "account", params.Account)
	if !ok {
		return
	}
	collateral, ok := parseAmount(w, req, "collateral", params.Collateral)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, "borrow", params.Amount)
	if !ok {
		return
	}
	if err := s.positions.Borrow(account, collateral, amount); err != nil {
		s.writeEngineError(w, req, req.Method, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleVaultRepay(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultRepayParams
	if !decodeParams(w, req, &params) {
		return
	}
	account, ok := parseAddress(w, req, "account", params.Account)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, "repay", params.Amount)
	if !ok {
		return
	}
	if err := s.positions.Repay(account, amount); err != nil {
		s.writeEngineError(w, req, req.Method, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleVaultLiquidate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultLiquidateParams
	if !decodeParams(w, req, &params) {
		return
	}
	liquidator, ok := parseAddress(w, req, "liquidator", params.Liquidator)
	if !ok {
		return
	}
	borrower, ok := parseAddress(w, req, "borrower", params.Borrower)
	if !ok {
		return
	}
	auctionID, err := s.positions.Liquidate(liquidator, borrower)
	if err != nil {
		s.writeEngineError(w, req, req.Method, err)
		return
	}
	writeResult(w, req.ID, vaultLiquidateResult{AuctionID: auctionID})
}

func (s *Server) handleVaultGetPosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultAccountParams
	if !decodeParams(w, req, &params) {
		return
	}
	account, ok := parseAddress(w, req, "account", params.Account)
	if !ok {
		return
	}
	pos, err := s.positions.GetPosition(account)
	if err != nil {
		s.writeEngineError(w, req, req.Method, err)
		return
	}
	writeResult(w, req.ID, vaultPositionResult{Position: pos})
}

func (s *Server) handleVaultHealthCheck(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultAccountParams
	if !decodeParams(w, req, &params) {
		return
	}
	account, ok := parseAddress(w, req, "account", params.Account)
	if !ok {
		return
	}
	totalDue, required, healthy, err := s.positions.HealthCheck(account)
	if err != nil {
		s.writeEngineError(w, req, req.Method, err)
		return
	}
	writeResult(w, req.ID, vaultHealthResult{
		TotalDue:           totalDue.String(),
		RequiredCollateral: required.String(),
		Healthy:            healthy,
	})
}

func (s *Server) handleVaultRequiredCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultAmountParams
	if !decodeParams(w, req, &params) {
		return
	}
	amount, ok := parseAmount(w, req, "borrow", params.Amount)
	if !ok {
		return
	}
	required := s.positions.RequiredCollateral(amount)
	writeResult(w, req.ID, vaultRequiredCollateralResult{Required: required.String()})
}

func (s *Server) handleVaultGetSupply(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	supply, err := s.positions.GetSupply()
	if err != nil {
		s.writeEngineError(w, req, req.Method, err)
		return
	}
	writeResult(w, req.ID, vaultSupplyResult{Supply: supply})
}
