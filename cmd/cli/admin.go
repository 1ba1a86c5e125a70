package cli

import (
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "query the replica admin rpc",
}

func init() {
	adminCmd.AddCommand(consensusInfoCmd)
	adminCmd.AddCommand(peerInfoCmd)
	adminCmd.AddCommand(configCmd)
	adminCmd.AddCommand(resourceUsageCmd)
}

var (
	consensusInfoCmd = &cobra.Command{
		Use:   "consensus-info",
		Short: "the phase, pending block and quorum votes of the replica",
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.ConsensusInfo())
		},
	}

	peerInfoCmd = &cobra.Command{
		Use:   "peer-info",
		Short: "the static replica set",
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.PeerInfo())
		},
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "the running configuration of the replica",
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.Config())
		},
	}

	resourceUsageCmd = &cobra.Command{
		Use:   "resource-usage",
		Short: "process and host resource usage",
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.ResourceUsage())
		},
	}
)
