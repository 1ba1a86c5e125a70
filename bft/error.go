package bft

import (
	"fmt"

	"github.com/canopy-network/votechain/lib"
)

func ErrMessageDecode(reason string) lib.ErrorI {
	return lib.NewError(lib.CodeMessageDecode, lib.ConsensusModule, fmt.Sprintf("malformed consensus message: %s", reason))
}

func ErrUnknownMessageType(t string) lib.ErrorI {
	return lib.NewError(lib.CodeUnknownMessageType, lib.ConsensusModule, fmt.Sprintf("unknown consensus message type: %q", t))
}

func ErrMismatchMessageType(got, expected MessageType) lib.ErrorI {
	return lib.NewError(lib.CodeMismatchMessageType, lib.ConsensusModule, fmt.Sprintf("expected a %s message, got %s", expected, got))
}

func ErrWrongView(got, expected uint64) lib.ErrorI {
	return lib.NewError(lib.CodeWrongView, lib.ConsensusModule, fmt.Sprintf("message view %d doesn't match replica view %d", got, expected))
}

func ErrNotPrimary() lib.ErrorI {
	return lib.NewError(lib.CodeNotPrimary, lib.ConsensusModule, "only the primary may create blocks")
}

func ErrEmptyBlock() lib.ErrorI {
	return lib.NewError(lib.CodeEmptyBlock, lib.ConsensusModule, "cannot create a block without votes")
}

func ErrBlockAlreadyCommitted(hash string) lib.ErrorI {
	return lib.NewError(lib.CodeBlockAlreadyCommitted, lib.ConsensusModule, fmt.Sprintf("block %s is already committed", lib.ShortHashString(hash)))
}

// IsDecodeError() reports whether err was produced while decoding a wire message
func IsDecodeError(err error) bool {
	return lib.IsCode(err, lib.ConsensusModule, lib.CodeMessageDecode) ||
		lib.IsCode(err, lib.ConsensusModule, lib.CodeUnknownMessageType) ||
		lib.IsCode(err, lib.ConsensusModule, lib.CodeMismatchMessageType)
}
