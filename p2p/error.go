package p2p

import (
	"fmt"

	"github.com/canopy-network/votechain/lib"
)

func ErrBroadcast(peerID uint64, err error) lib.ErrorI {
	return lib.NewError(lib.CodeBroadcast, lib.P2PModule, fmt.Sprintf("send to peer %d failed with err: %s", peerID, err.Error()))
}

func ErrUnknownPeer(peerID uint64) lib.ErrorI {
	return lib.NewError(lib.CodeUnknownPeer, lib.P2PModule, fmt.Sprintf("peer %d is not in the peer set", peerID))
}

func ErrPublisherStart(err error) lib.ErrorI {
	return lib.NewError(lib.CodePublisherStart, lib.P2PModule, fmt.Sprintf("publisher.Listen() failed with err: %s", err.Error()))
}

func ErrPublish(err error) lib.ErrorI {
	return lib.NewError(lib.CodePublish, lib.P2PModule, fmt.Sprintf("publisher.Send() failed with err: %s", err.Error()))
}
