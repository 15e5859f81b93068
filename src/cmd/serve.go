package cmd

import (
	"github.com/rentledger/syncer/src/rental"
	"github.com/rentledger/syncer/src/utils/logger"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the rental services with event processing and periodic reconciliation",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		controller, err := rental.NewController(conf)
		if err != nil {
			return
		}

		err = controller.Start()
		if err != nil {
			return
		}

		select {
		case <-controller.CtxRunning.Done():
		case <-applicationCtx.Done():
		}

		controller.StopWait()

		return
	},
	PostRunE: func(cmd *cobra.Command, args []string) (err error) {
		log := logger.NewSublogger("root-cmd")
		log.Debug("Finished serve command")
		applicationCtxCancel()
		return
	},
}
