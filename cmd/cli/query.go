package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "query the replica rpc",
}

func init() {
	queryCmd.AddCommand(chainCmd)
	queryCmd.AddCommand(heightCmd)
	queryCmd.AddCommand(blkByHeightCmd)
	queryCmd.AddCommand(blkByHashCmd)
	queryCmd.AddCommand(pendingCmd)
}

var (
	chainCmd = &cobra.Command{
		Use:   "chain",
		Short: "query the full committed chain",
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.Chain())
		},
	}

	heightCmd = &cobra.Command{
		Use:   "height",
		Short: "query the number of committed blocks",
		Run: func(cmd *cobra.Command, args []string) {
			h, err := client.Height()
			if err != nil {
				writeToConsole(nil, err)
			}
			writeToConsole(h.Height, nil)
		},
	}

	blkByHeightCmd = &cobra.Command{
		Use:   "block-by-height <height>",
		Short: "query a block by its index",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			height, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				writeToConsole(nil, err)
			}
			writeToConsole(client.BlockByHeight(height))
		},
	}

	blkByHashCmd = &cobra.Command{
		Use:   "block-by-hash <hash>",
		Short: "query a block by its hash",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.BlockByHash(args[0]))
		},
	}

	pendingCmd = &cobra.Command{
		Use:   "pending",
		Short: "query the block in flight and the buffered votes",
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.Pending())
		},
	}

	voteCmd = &cobra.Command{
		Use:   "vote <voter_id> <candidate_id>",
		Short: "submit a vote to the replica",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.SubmitVote(args[0], args[1]))
		},
	}
)
