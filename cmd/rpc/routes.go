package rpc

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// Votechain RPC Paths
const (
	VersionRoutePath       = "/v1/"
	VoteRoutePath          = "/vote"
	PrePrepareRoutePath    = "/pre-prepare"
	PrepareRoutePath       = "/prepare"
	CommitRoutePath        = "/commit"
	ChainRoutePath         = "/chain"
	HeightRoutePath        = "/v1/query/height"
	BlockByHeightRoutePath = "/v1/query/block-by-height"
	BlockByHashRoutePath   = "/v1/query/block-by-hash"
	PendingRoutePath       = "/v1/query/pending"
	// admin
	ResourceUsageRoutePath = "/v1/admin/resource-usage"
	PeerInfoRoutePath      = "/v1/admin/peer-info"
	ConsensusInfoRoutePath = "/v1/admin/consensus-info"
	ConfigRoutePath        = "/v1/admin/config"
	LogsRoutePath          = "/v1/admin/log"
)

const (
	VersionRouteName       = "version"
	VoteRouteName          = "vote"
	PrePrepareRouteName    = "pre-prepare"
	PrepareRouteName       = "prepare"
	CommitRouteName        = "commit"
	ChainRouteName         = "chain"
	HeightRouteName        = "height"
	BlockByHeightRouteName = "block-by-height"
	BlockByHashRouteName   = "block-by-hash"
	PendingRouteName       = "pending"
	// admin
	ResourceUsageRouteName = "resource-usage"
	PeerInfoRouteName      = "peer-info"
	ConsensusInfoRouteName = "consensus-info"
	ConfigRouteName        = "config"
	LogsRouteName          = "log"
)

// routes contains the method and path for a votechain command
type routes map[string]struct {
	Method string
	Path   string
}

// routePaths is a mapping from route names to their corresponding HTTP methods and paths.
var routePaths = routes{
	VersionRouteName:       {Method: http.MethodGet, Path: VersionRoutePath},
	VoteRouteName:          {Method: http.MethodPost, Path: VoteRoutePath},
	PrePrepareRouteName:    {Method: http.MethodPost, Path: PrePrepareRoutePath},
	PrepareRouteName:       {Method: http.MethodPost, Path: PrepareRoutePath},
	CommitRouteName:        {Method: http.MethodPost, Path: CommitRoutePath},
	ChainRouteName:         {Method: http.MethodGet, Path: ChainRoutePath},
	HeightRouteName:        {Method: http.MethodPost, Path: HeightRoutePath},
	BlockByHeightRouteName: {Method: http.MethodPost, Path: BlockByHeightRoutePath},
	BlockByHashRouteName:   {Method: http.MethodPost, Path: BlockByHashRoutePath},
	PendingRouteName:       {Method: http.MethodPost, Path: PendingRoutePath},
	// admin
	ResourceUsageRouteName: {Method: http.MethodGet, Path: ResourceUsageRoutePath},
	PeerInfoRouteName:      {Method: http.MethodGet, Path: PeerInfoRoutePath},
	ConsensusInfoRouteName: {Method: http.MethodGet, Path: ConsensusInfoRoutePath},
	ConfigRouteName:        {Method: http.MethodGet, Path: ConfigRoutePath},
	LogsRouteName:          {Method: http.MethodGet, Path: LogsRoutePath},
}

// httpRouteHandlers is a custom type that maps strings to httprouter handle functions
type httpRouteHandlers map[string]httprouter.Handle

// createRouter initializes the protocol and query router
// the consensus routes are the ones the peers' p2p modules post to
func createRouter(s *Server) *httprouter.Router {
	var r = httpRouteHandlers{
		VersionRouteName:       s.Version,
		VoteRouteName:          s.Vote,
		PrePrepareRouteName:    s.PrePrepare,
		PrepareRouteName:       s.Prepare,
		CommitRouteName:        s.Commit,
		ChainRouteName:         s.Chain,
		HeightRouteName:        s.Height,
		BlockByHeightRouteName: s.BlockByHeight,
		BlockByHashRouteName:   s.BlockByHash,
		PendingRouteName:       s.Pending,
	}
	return newRouter(s, r)
}

// createAdminRouter initializes the router of the admin api
func createAdminRouter(s *Server) *httprouter.Router {
	var r = httpRouteHandlers{
		ResourceUsageRouteName: s.ResourceUsage,
		PeerInfoRouteName:      s.PeerInfo,
		ConsensusInfoRouteName: s.ConsensusInfo,
		ConfigRouteName:        s.Config,
		LogsRouteName:          logsHandler(s),
	}
	return newRouter(s, r)
}

func newRouter(s *Server, r httpRouteHandlers) *httprouter.Router {
	router := httprouter.New()
	for name, handler := range r {
		// retrieve the path configuration for the current route name
		path := routePaths[name]
		// add the handler for the specific path and HTTP method to the router
		router.Handle(path.Method, path.Path, logHandler{path.Path, handler, s.logger}.Handle)
	}
	return router
}
