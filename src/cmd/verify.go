package cmd

import (
	"fmt"

	"github.com/rentledger/syncer/src/rental"
	"github.com/rentledger/syncer/src/utils/logger"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify <agreement-id>",
	Short: "Checks whether the agreement is known to the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		log := logger.NewSublogger("verify-cmd")

		services, err := rental.NewServices(applicationCtx, conf, "rental-verify")
		if err != nil {
			return
		}

		consistent := services.Reconciler.VerifyConsistency(applicationCtx, args[0])
		log.WithField("agreement_id", args[0]).
			WithField("consistent", consistent).
			Info("Agreement verified")

		if !consistent {
			return fmt.Errorf("agreement %s is not consistent with the ledger", args[0])
		}
		return
	},
	PostRunE: func(cmd *cobra.Command, args []string) (err error) {
		log := logger.NewSublogger("root-cmd")
		log.Debug("Finished verify command")
		applicationCtxCancel()
		return
	},
}
