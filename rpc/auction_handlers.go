package rpc

import (
	"net/http"

	"mintvault/native/auction"
)

type auctionIDParams struct {
	AuctionID uint64 `json:"auctionId"`
}

type auctionBidParams struct {
	AuctionID uint64 `json:"auctionId"`
	Bidder    string `json:"bidder"`
	Payment   string `json:"payment"`
}

type auctionPriceResult struct {
	Price string `json:"price"`
}

type auctionResult struct {
	Auction *auction.Auction `json:"auction"`
}

func (s *Server) handleAuctionGetPrice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params auctionIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	price, err := s.auctions.CurrentPrice(params.AuctionID)
	if err != nil {
		s.writeEngineError(w, req, req.Method, err)
		return
	}
	writeResult(w, req.ID, auctionPriceResult{Price: price.String()})
}

func (s *Server) handleAuctionGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params auctionIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	record, ok, err := s.auctions.GetAuction(params.AuctionID)
	if err != nil {
		s.writeEngineError(w, req, req.Method, err)
		return
	}
	if !ok {
		s.writeEngineError(w, req, req.Method, auction.ErrAuctionNotActive)
		return
	}
	writeResult(w, req.ID, auctionResult{Auction: record})
}

func (s *Server) handleAuctionBid(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params auctionBidParams
	if !decodeParams(w, req, &params) {
		return
	}
	bidder, ok := parseAddress(w, req, "bidder", params.Bidder)
	if !ok {
		return
	}
	payment, ok := parseAmount(w, req, "payment", params.Payment)
	if !ok {
		return
	}
	if err := s.auctions.Bid(params.AuctionID, bidder, payment); err != nil {
		s.writeEngineError(w, req, req.Method, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}
