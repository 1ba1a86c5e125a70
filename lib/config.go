package lib

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

/* This file implements the 'user controlled' configuration of each module of the replica */

const (
	// FILE NAMES in the 'data directory'
	ConfigFilePath = "config.json" // the file path for the replica configuration

	// ENVIRONMENT overrides applied on top of the config file
	EnvFaultTolerance = "VOTECHAIN_FAULT_TOLERANCE" // number of byzantine replicas tolerated
	EnvPeers          = "VOTECHAIN_PEERS"           // comma separated id=url list
	EnvNodeID         = "VOTECHAIN_NODE_ID"         // the id of this replica

	// port offsets: replica n listens on BaseRPCPort + n, BaseAdminPort + n and so on
	BaseRPCPort     = 5000
	BaseAdminPort   = 6000
	BaseMetricsPort = 9090
	BasePublishPort = 7000
)

// Config is the structure of the user configuration options for a replica
type Config struct {
	MainConfig      // main options spanning over all modules
	RPCConfig       // rpc API options
	ConsensusConfig // bft options
	P2PConfig       // peer options
	StoreConfig     // data directory options
	MetricsConfig   // telemetry options
	EventsConfig    // committed block publishing options
}

// DefaultConfig() returns a Config with developer set options
func DefaultConfig() Config {
	return Config{
		MainConfig:      DefaultMainConfig(),
		RPCConfig:       DefaultRPCConfig(),
		ConsensusConfig: DefaultConsensusConfig(),
		P2PConfig:       DefaultP2PConfig(),
		StoreConfig:     DefaultStoreConfig(),
		MetricsConfig:   DefaultMetricsConfig(),
		EventsConfig:    DefaultEventsConfig(),
	}
}

// MAIN CONFIG BELOW

type MainConfig struct {
	LogLevel string `json:"logLevel"` // any level includes the levels above it: debug < info < warning < error
	NodeID   uint64 `json:"nodeID"`   // the identifier of this replica within the peer set
	Primary  bool   `json:"primary"`  // whether this replica proposes blocks (static, no leader rotation)
}

// DefaultMainConfig() sets log level to 'info' and runs as replica 1
func DefaultMainConfig() MainConfig {
	return MainConfig{
		LogLevel: "info",
		NodeID:   1,
		Primary:  false,
	}
}

// GetLogLevel() parses the log string in the config file into a LogLevel Enum
func (m *MainConfig) GetLogLevel() int32 { return ParseLogLevel(m.LogLevel) }

// RPC CONFIG BELOW

type RPCConfig struct {
	RPCPort   string `json:"rpcPort"`   // the port where the protocol and query rpc is served
	AdminPort string `json:"adminPort"` // the port where the admin rpc is served
	RPCUrl    string `json:"rpcURL"`    // the url the cli uses to reach the rpc server
	AdminUrl  string `json:"adminURL"`  // the url the cli uses to reach the admin rpc server
	TimeoutS  int    `json:"timeoutS"`  // the rpc request timeout in seconds
}

// DefaultRPCConfig() serves replica 1 on localhost:5001 and its admin api on localhost:6001
func DefaultRPCConfig() RPCConfig {
	return RPCConfig{
		RPCPort:   "5001",
		AdminPort: "6001",
		RPCUrl:    "http://localhost:5001",
		AdminUrl:  "http://localhost:6001",
		TimeoutS:  3,
	}
}

// CONSENSUS CONFIG BELOW

// ConsensusConfig defines the quorum parameters and the proposal policy
// NOTES:
// - the peer set is expected to have 3f+1 replicas
// - prepared requires 2f PREPARE votes, committed requires 2f+1 COMMIT votes
type ConsensusConfig struct {
	FaultTolerance   uint64  `json:"faultTolerance"`   // f: the number of byzantine replicas tolerated
	View             uint64  `json:"view"`             // the static consensus round identifier
	BatchSize        int     `json:"batchSize"`        // number of buffered votes that triggers a proposal on the primary
	GenesisTimestamp float64 `json:"genesisTimestamp"` // must be identical on every replica so the genesis hashes agree
}

// DefaultConsensusConfig() tolerates a single faulty replica
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		FaultTolerance:   1,
		View:             0,
		BatchSize:        2,
		GenesisTimestamp: 0,
	}
}

// P2P CONFIG BELOW

// P2PConfig defines the static replica set
type P2PConfig struct {
	Peers              map[uint64]string `json:"peers"`              // replica id -> base url, this replica included
	BroadcastTimeoutMS int               `json:"broadcastTimeoutMS"` // per peer send timeout, unreachable peers are skipped
}

// DefaultP2PConfig() is a local 3f+1 = 4 replica network on ports 5001-5004
func DefaultP2PConfig() P2PConfig {
	peers := make(map[uint64]string)
	for id := uint64(1); id <= 4; id++ {
		peers[id] = fmt.Sprintf("http://localhost:%d", BaseRPCPort+id)
	}
	return P2PConfig{
		Peers:              peers,
		BroadcastTimeoutMS: 2000,
	}
}

// PeerIDs() returns the ids of the peer set in ascending order
func (p *P2PConfig) PeerIDs() (ids []uint64) {
	for id := range p.Peers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return
}

// ParsePeers() converts a comma separated 'id=url' list into a peer map
func ParsePeers(s string) (map[uint64]string, ErrorI) {
	peers := make(map[uint64]string)
	for _, entry := range strings.Split(s, ",") {
		if entry = strings.TrimSpace(entry); entry == "" {
			continue
		}
		idStr, url, found := strings.Cut(entry, "=")
		if !found || url == "" {
			return nil, ErrInvalidPeerConfig(entry)
		}
		id, err := strconv.ParseUint(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, ErrInvalidPeerConfig(entry)
		}
		peers[id] = strings.TrimRight(strings.TrimSpace(url), "/")
	}
	return peers, nil
}

// STORE CONFIG BELOW

// StoreConfig holds the data directory, the ledger itself is memory only
type StoreConfig struct {
	DataDirPath string `json:"dataDirPath"` // path of the designated folder for config and logs
}

// DefaultDataDirPath() is $USERHOME/.votechain
func DefaultDataDirPath() string {
	// get the user home
	home, err := os.UserHomeDir()
	// if unable to get the user home
	if err != nil {
		// fatal error
		panic(err)
	}
	// exit with full default data directory path
	return filepath.Join(home, ".votechain")
}

// DefaultStoreConfig() returns the default data directory
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		DataDirPath: DefaultDataDirPath(),
	}
}

// METRICS CONFIG BELOW

// MetricsConfig represents the configuration for the metrics server
type MetricsConfig struct {
	MetricsEnabled    bool   `json:"metricsEnabled"`    // if the metrics are enabled
	PrometheusAddress string `json:"prometheusAddress"` // the address of the server
}

// DefaultMetricsConfig() returns the default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MetricsEnabled:    true,
		PrometheusAddress: "0.0.0.0:9091",
	}
}

// EVENTS CONFIG BELOW

// EventsConfig configures the ZeroMQ publisher of committed blocks
type EventsConfig struct {
	EventsEnabled  bool   `json:"eventsEnabled"`  // if committed blocks are published
	PublishAddress string `json:"publishAddress"` // zmq endpoint the PUB socket binds to
}

// DefaultEventsConfig() keeps publishing off
func DefaultEventsConfig() EventsConfig {
	return EventsConfig{
		EventsEnabled:  false,
		PublishAddress: "tcp://127.0.0.1:7001",
	}
}

// ApplyNodeID() sets the replica id and moves every listener to the per replica default ports
func (c *Config) ApplyNodeID(id uint64) {
	c.NodeID = id
	c.RPCPort = strconv.FormatUint(BaseRPCPort+id, 10)
	c.AdminPort = strconv.FormatUint(BaseAdminPort+id, 10)
	c.RPCUrl = "http://localhost:" + c.RPCPort
	c.AdminUrl = "http://localhost:" + c.AdminPort
	c.PrometheusAddress = fmt.Sprintf("0.0.0.0:%d", BaseMetricsPort+id)
	c.PublishAddress = fmt.Sprintf("tcp://127.0.0.1:%d", BasePublishPort+id)
}

// ApplyEnv() overrides the config with values found in the environment
func (c *Config) ApplyEnv(getenv func(string) string) ErrorI {
	if v := getenv(EnvNodeID); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return ErrInvalidArgument()
		}
		c.ApplyNodeID(id)
	}
	if v := getenv(EnvFaultTolerance); v != "" {
		f, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return ErrInvalidArgument()
		}
		c.FaultTolerance = f
	}
	if v := getenv(EnvPeers); v != "" {
		peers, err := ParsePeers(v)
		if err != nil {
			return err
		}
		c.Peers = peers
	}
	return nil
}

// WriteToFile() saves the Config object to a JSON file
func (c Config) WriteToFile(filepath string) error {
	// convert the config to indented 'pretty' json bytes
	jsonBytes, err := json.MarshalIndent(c, "", "  ")
	// if an error occurred during the conversion
	if err != nil {
		// exit with error
		return err
	}
	// write the config.json file to the data directory
	return os.WriteFile(filepath, jsonBytes, os.ModePerm)
}

// NewConfigFromFile() populates a Config object from a JSON file
func NewConfigFromFile(filepath string) (Config, error) {
	// read the file into bytes
	fileBytes, err := os.ReadFile(filepath)
	// if an error occurred
	if err != nil {
		// exit with error
		return Config{}, err
	}
	// define the default config to fill in any blanks in the file
	c := DefaultConfig()
	// the peer set is replaced as a whole rather than merged with the default set
	c.Peers = nil
	// populate the default config with the file bytes
	if err = json.Unmarshal(fileBytes, &c); err != nil {
		// exit with error
		return Config{}, err
	}
	if c.Peers == nil {
		c.Peers = DefaultP2PConfig().Peers
	}
	// exit
	return c, nil
}
