package rpc

import (
	"net/http"

	"github.com/canopy-network/votechain/bft"
	"github.com/canopy-network/votechain/lib"
)

// statusCode maps a module error to the http status written back to the caller
// malformed input is a client error, a conflict with the replica's state is a 409
func statusCode(err lib.ErrorI) int {
	switch {
	case err == nil:
		return http.StatusOK
	case bft.IsDecodeError(err),
		lib.IsCode(err, lib.RPCModule, lib.CodeMissingVote),
		lib.IsCode(err, lib.MainModule, lib.CodeJSONUnmarshal):
		return http.StatusBadRequest
	case lib.IsCode(err, lib.ConsensusModule, lib.CodeWrongView),
		lib.IsCode(err, lib.ConsensusModule, lib.CodeBlockAlreadyCommitted),
		lib.IsCode(err, lib.ConsensusModule, lib.CodeNotPrimary),
		lib.IsCode(err, lib.StorageModule, lib.CodeChainLinkage):
		return http.StatusConflict
	case lib.IsCode(err, lib.StorageModule, lib.CodeBlockNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
