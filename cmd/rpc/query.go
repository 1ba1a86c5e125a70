package rpc

import (
	"net/http"

	"github.com/canopy-network/votechain/bft"
	"github.com/canopy-network/votechain/lib"
	"github.com/julienschmidt/httprouter"
)

// Version responds with the software version
func (s *Server) Version(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	write(w, SoftwareVersion, http.StatusOK)
}

// Vote buffers a vote and acknowledges it with 201
func (s *Server) Vote(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(voteRequest)
	if ok := unmarshal(w, r, req); !ok {
		return
	}
	if _, err := s.controller.SubmitVote(req.VoterID, req.CandidateID); err != nil {
		write(w, err, statusCode(err))
		return
	}
	write(w, MessageResponse{Message: VoteReceivedMessage}, http.StatusCreated)
}

// PrePrepare handles a block proposal from the primary
func (s *Server) PrePrepare(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.consensusMessage(w, r, bft.PrePrepare, s.controller.HandlePrePrepare)
}

// Prepare handles a PREPARE vote
func (s *Server) Prepare(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.consensusMessage(w, r, bft.Prepare, s.controller.HandlePrepare)
}

// Commit handles a COMMIT vote
func (s *Server) Commit(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.consensusMessage(w, r, bft.Commit, s.controller.HandleCommit)
}

// Chain responds with the full committed chain
func (s *Server) Chain(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	chain := s.controller.Chain()
	write(w, ChainResponse{Length: len(chain), Chain: chain}, http.StatusOK)
}

// Height responds with the number of committed blocks, genesis included
func (s *Server) Height(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	write(w, HeightResponse{Height: s.controller.Consensus.Ledger().Height()}, http.StatusOK)
}

// BlockByHeight responds with the block at the requested index
func (s *Server) BlockByHeight(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(heightRequest)
	if ok := unmarshal(w, r, req); !ok {
		return
	}
	block, err := s.controller.Consensus.Ledger().BlockByIndex(req.Height)
	if err != nil {
		write(w, err, statusCode(err))
		return
	}
	write(w, block, http.StatusOK)
}

// BlockByHash responds with the block with the requested hash
func (s *Server) BlockByHash(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(hashRequest)
	if ok := unmarshal(w, r, req); !ok {
		return
	}
	block, err := s.controller.Consensus.Ledger().BlockByHash(req.Hash)
	if err != nil {
		write(w, err, statusCode(err))
		return
	}
	write(w, block, http.StatusOK)
}

// Pending responds with the block in flight and the buffered votes
func (s *Server) Pending(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	write(w, PendingResponse{
		Block: s.controller.Consensus.PendingBlock(),
		Votes: s.controller.Mempool.Votes(),
	}, http.StatusOK)
}

// consensusMessage decodes a wire message of the expected type and feeds it to the controller
func (s *Server) consensusMessage(w http.ResponseWriter, r *http.Request, expected bft.MessageType, handle func(bft.Message) (bft.Result, lib.ErrorI)) {
	bz, ok := readBody(w, r)
	if !ok {
		return
	}
	msg, err := bft.DecodeMessage(bz, expected)
	if err != nil {
		s.logger.Warnf("Rejected %s message: %s", expected, err.Error())
		write(w, err, http.StatusBadRequest)
		return
	}
	res, err := handle(msg)
	if err != nil {
		write(w, err, statusCode(err))
		return
	}
	write(w, StatusResponse{Status: res.Status}, http.StatusOK)
}
