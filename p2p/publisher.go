package p2p

import (
	"context"
	"sync"

	"github.com/canopy-network/votechain/lib"
	"github.com/go-zeromq/zmq4"
)

// BlockTopic is the first frame of every published block
const BlockTopic = "block"

// Publisher announces committed blocks on a ZeroMQ PUB socket
// subscribers receive a two frame message: the topic and the json block
type Publisher struct {
	socket zmq4.Socket        // bound PUB socket
	cancel context.CancelFunc // stops the socket
	log    lib.LoggerI        // logging
	mu     sync.Mutex         // sockets are not safe for concurrent sends
}

// NewPublisher() binds a PUB socket when events are enabled, otherwise it returns nil
func NewPublisher(c lib.EventsConfig, l lib.LoggerI) (*Publisher, lib.ErrorI) {
	if !c.EventsEnabled {
		return nil, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	socket := zmq4.NewPub(ctx)
	if err := socket.Listen(c.PublishAddress); err != nil {
		cancel()
		return nil, ErrPublisherStart(err)
	}
	l.Infof("Publishing committed blocks on %s", c.PublishAddress)
	return &Publisher{socket: socket, cancel: cancel, log: l}, nil
}

// PublishBlock() sends the block to every subscriber of BlockTopic
func (p *Publisher) PublishBlock(block *lib.Block) lib.ErrorI {
	if p == nil {
		return nil
	}
	bz, err := lib.MarshalJSON(block)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if e := p.socket.Send(zmq4.NewMsgFrom([]byte(BlockTopic), bz)); e != nil {
		return ErrPublish(e)
	}
	p.log.Debugf("Published block %d (%s)", block.Index, block.ShortHash())
	return nil
}

// Addr() returns the bound address, useful when binding port 0
func (p *Publisher) Addr() string {
	if p == nil || p.socket.Addr() == nil {
		return ""
	}
	return p.socket.Addr().String()
}

// Close() unbinds the socket
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.socket.Close(); err != nil {
		p.log.Warnf("Closing publisher failed with err: %s", err.Error())
	}
	p.cancel()
}
