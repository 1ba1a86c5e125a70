package store

import (
	"fmt"

	"github.com/canopy-network/votechain/lib"
)

func ErrChainLinkage(reason string) lib.ErrorI {
	return lib.NewError(lib.CodeChainLinkage, lib.StorageModule, fmt.Sprintf("chain linkage violated: %s", reason))
}

func ErrEmptyChain() lib.ErrorI {
	return lib.NewError(lib.CodeEmptyChain, lib.StorageModule, "the chain has no blocks")
}

func ErrInvalidGenesis(reason string) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidGenesis, lib.StorageModule, fmt.Sprintf("invalid genesis block: %s", reason))
}

func ErrBlockNotFound(key string) lib.ErrorI {
	return lib.NewError(lib.CodeBlockNotFound, lib.StorageModule, fmt.Sprintf("block %s not found", key))
}

func ErrCorruptedChainData(index uint64, err error) lib.ErrorI {
	return lib.NewError(lib.CodeCorruptedChainData, lib.StorageModule, fmt.Sprintf("block at index %d is corrupted: %s", index, err.Error()))
}
