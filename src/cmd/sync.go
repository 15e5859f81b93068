package cmd

import (
	"github.com/rentledger/syncer/src/rental"
	"github.com/rentledger/syncer/src/utils/logger"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync [agreement-id]",
	Short: "Refreshes ledger status of one agreement, or of every linked agreement when no id is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		log := logger.NewSublogger("sync-cmd")

		services, err := rental.NewServices(applicationCtx, conf, "rental-sync")
		if err != nil {
			return
		}

		if len(args) == 0 {
			return services.Scheduler.Sweep(applicationCtx)
		}

		agreement, err := services.Reconciler.SyncAgreementWithBlockchain(applicationCtx, args[0])
		if err != nil {
			return
		}

		status := ""
		if agreement.OnChainStatus != nil {
			status = *agreement.OnChainStatus
		}
		log.WithField("agreement_id", agreement.Id).
			WithField("on_chain_status", status).
			Info("Agreement synced")
		return
	},
	PostRunE: func(cmd *cobra.Command, args []string) (err error) {
		log := logger.NewSublogger("root-cmd")
		log.Debug("Finished sync command")
		applicationCtxCancel()
		return
	},
}
