package rpc

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/canopy-network/votechain/bft"
	"github.com/canopy-network/votechain/lib"
)

type Client struct {
	rpcURL   string
	adminURL string
	client   http.Client
}

func NewClient(rpcURL, adminURL string) *Client {
	return &Client{
		rpcURL:   strings.TrimRight(rpcURL, "/"),
		adminURL: strings.TrimRight(adminURL, "/"),
		client:   http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Version() (version *string, err lib.ErrorI) {
	version = new(string)
	err = c.get(VersionRouteName, version)
	return
}

func (c *Client) SubmitVote(voterID, candidateID string) (p *MessageResponse, err lib.ErrorI) {
	p = new(MessageResponse)
	bz, err := lib.MarshalJSON(voteRequest{VoterID: voterID, CandidateID: candidateID})
	if err != nil {
		return nil, err
	}
	err = c.post(VoteRouteName, bz, p)
	return
}

func (c *Client) Chain() (p *ChainResponse, err lib.ErrorI) {
	p = new(ChainResponse)
	err = c.get(ChainRouteName, p)
	return
}

func (c *Client) Height() (p *HeightResponse, err lib.ErrorI) {
	p = new(HeightResponse)
	err = c.post(HeightRouteName, nil, p)
	return
}

func (c *Client) BlockByHeight(height uint64) (p *lib.Block, err lib.ErrorI) {
	p = new(lib.Block)
	bz, err := lib.MarshalJSON(heightRequest{Height: height})
	if err != nil {
		return nil, err
	}
	err = c.post(BlockByHeightRouteName, bz, p)
	return
}

func (c *Client) BlockByHash(hash string) (p *lib.Block, err lib.ErrorI) {
	p = new(lib.Block)
	bz, err := lib.MarshalJSON(hashRequest{Hash: hash})
	if err != nil {
		return nil, err
	}
	err = c.post(BlockByHashRouteName, bz, p)
	return
}

func (c *Client) Pending() (p *PendingResponse, err lib.ErrorI) {
	p = new(PendingResponse)
	err = c.post(PendingRouteName, nil, p)
	return
}

func (c *Client) ConsensusInfo() (p *bft.ConsensusInfo, err lib.ErrorI) {
	p = new(bft.ConsensusInfo)
	err = c.get(ConsensusInfoRouteName, p, true)
	return
}

func (c *Client) PeerInfo() (p *PeerInfoResponse, err lib.ErrorI) {
	p = new(PeerInfoResponse)
	err = c.get(PeerInfoRouteName, p, true)
	return
}

func (c *Client) Config() (p *lib.Config, err lib.ErrorI) {
	p = new(lib.Config)
	err = c.get(ConfigRouteName, p, true)
	return
}

func (c *Client) ResourceUsage() (p *ResourceUsageResponse, err lib.ErrorI) {
	p = new(ResourceUsageResponse)
	err = c.get(ResourceUsageRouteName, p, true)
	return
}

func (c *Client) url(routeName string, admin ...bool) string {
	if admin != nil && admin[0] {
		return c.adminURL + routePaths[routeName].Path
	}
	return c.rpcURL + routePaths[routeName].Path
}

func (c *Client) post(routeName string, json []byte, ptr any, admin ...bool) lib.ErrorI {
	resp, err := c.client.Post(c.url(routeName, admin...), ApplicationJSON, bytes.NewBuffer(json))
	if err != nil {
		return lib.ErrPostRequest(err)
	}
	return c.unmarshal(resp, ptr)
}

func (c *Client) get(routeName string, ptr any, admin ...bool) lib.ErrorI {
	resp, err := c.client.Get(c.url(routeName, admin...))
	if err != nil {
		return lib.ErrGetRequest(err)
	}
	return c.unmarshal(resp, ptr)
}

func (c *Client) unmarshal(resp *http.Response, ptr any) lib.ErrorI {
	defer func() { _ = resp.Body.Close() }()
	bz, err := io.ReadAll(resp.Body)
	if err != nil {
		return lib.ErrReadBody(err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return lib.ErrHttpStatus(resp.Status, resp.StatusCode, bz)
	}
	return lib.UnmarshalJSON(bz, ptr)
}
