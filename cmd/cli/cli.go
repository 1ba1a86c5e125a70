package cli

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/canopy-network/votechain/cmd/rpc"
	"github.com/canopy-network/votechain/controller"
	"github.com/canopy-network/votechain/lib"
	"github.com/canopy-network/votechain/p2p"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var rootCmd = &cobra.Command{
	Use:   "votechain",
	Short: "a pbft replicated vote ledger",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initialize(cmd)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(rpc.SoftwareVersion)
	},
}

var startCmd = &cobra.Command{
	Use:   "start --id=1 --primary",
	Short: "start a replica",
	Run: func(cmd *cobra.Command, args []string) {
		Start()
	},
}

var (
	client, config, l = &rpc.Client{}, lib.Config{}, lib.LoggerI(nil)
	DataDir, nodeID   = "", uint64(0)
	primary           = false
)

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(voteCmd)
	rootCmd.PersistentFlags().StringVar(&DataDir, "data-dir", lib.DefaultDataDirPath(), "custom data directory location")
	rootCmd.PersistentFlags().Uint64Var(&nodeID, "id", 0, "the replica id, selects the per replica ports")
	startCmd.Flags().BoolVar(&primary, "primary", false, "propose blocks from this replica")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// initialize() loads the configuration: file < environment < flags
func initialize(cmd *cobra.Command) {
	// every local replica gets its own folder unless a data directory is given
	if nodeID != 0 && !cmd.Flags().Changed("data-dir") {
		DataDir = filepath.Join(DataDir, "node-"+strconv.FormatUint(nodeID, 10))
	}
	config = InitializeDataDirectory(DataDir, lib.NewDefaultLogger())
	if err := config.ApplyEnv(os.Getenv); err != nil {
		log.Fatal(err.Error())
	}
	if nodeID != 0 {
		config.ApplyNodeID(nodeID)
	}
	if primary {
		config.Primary = true
	}
	l = lib.NewLogger(lib.LoggerConfig{
		Level:  config.GetLogLevel(),
		Prefix: "node " + strconv.FormatUint(config.NodeID, 10),
	}, config.DataDirPath)
	client = rpc.NewClient(config.RPCUrl, config.AdminUrl)
}

// Start() is the entrypoint of the replica
func Start() {
	// initialize the metrics server
	metrics := lib.NewMetricsServer(config.MetricsConfig, config.NodeID, l)
	// bind the committed block publisher (if enabled)
	publisher, err := p2p.NewPublisher(config.EventsConfig, l)
	if err != nil {
		l.Fatal(err.Error())
	}
	var blocks controller.Publisher
	if publisher != nil {
		blocks = publisher
	}
	// create the outbound transport to the static peer set
	peers := p2p.New(config, metrics, l)
	// create a new instance of the replica
	app, err := controller.New(config, peers, blocks, metrics, l)
	if err != nil {
		l.Fatal(err.Error())
	}
	// initialize the rpc server
	rpcServer := rpc.NewServer(app, config, l)
	// start the metrics server
	metrics.Start()
	// start the rpc server
	rpcServer.Start()
	l.Infof("Replica %d started (primary=%t, f=%d, peers=%d)", config.NodeID, config.Primary, config.FaultTolerance, len(config.Peers))
	// block until a kill signal is received
	waitForKill()
	// gracefully stop the rpc server
	rpcServer.Stop()
	// drain in-flight broadcasts
	peers.Stop()
	// unbind the publisher
	publisher.Close()
	// gracefully stop the metrics server
	metrics.Stop()
	// exit
	os.Exit(0)
}

// waitForKill() blocks until a kill signal is received
func waitForKill() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGABRT)
	// block until kill signal is received
	s := <-stop
	l.Infof("Exit command %s received", s)
}

// InitializeDataDirectory() populates the data directory with the configuration file if missing
func InitializeDataDirectory(dataDirPath string, log lib.LoggerI) (c lib.Config) {
	// make the data dir if missing
	if err := os.MkdirAll(dataDirPath, os.ModePerm); err != nil {
		log.Fatal(err.Error())
	}
	// make the config.json file if missing
	configFilePath := filepath.Join(dataDirPath, lib.ConfigFilePath)
	if _, err := os.Stat(configFilePath); errors.Is(err, os.ErrNotExist) {
		log.Infof("Creating %s file", lib.ConfigFilePath)
		if err = lib.DefaultConfig().WriteToFile(configFilePath); err != nil {
			log.Fatal(err.Error())
		}
	}
	// load the config from file
	c, err := lib.NewConfigFromFile(configFilePath)
	if err != nil {
		log.Fatal(err.Error())
	}
	c.DataDirPath = dataDirPath
	return
}

func writeToConsole(a any, err error) {
	if err != nil {
		l.Fatal(err.Error())
	}
	switch a.(type) {
	case int, uint32, uint64:
		p := message.NewPrinter(language.English)
		if _, err := p.Printf("%d\n", a); err != nil {
			l.Fatal(err.Error())
		}
	case string:
		fmt.Println(a)
	case *string:
		fmt.Println(*a.(*string))
	default:
		s, err := lib.MarshalJSONIndentString(a)
		if err != nil {
			l.Fatal(err.Error())
		}
		fmt.Println(s)
	}
}
