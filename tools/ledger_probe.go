package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/finality"
	"github.com/rentledger/syncer/src/utils/ledger"
)

// Prints what the ledger gateway knows about agreements and obligation tokens
func main() {
	cfgFile := flag.String("config", "", "configuration file path")
	ledgerId := flag.String("agreement", "", "ledger agreement id to fetch")
	flag.Parse()

	conf, err := config.Load(*cfgFile)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	client := ledger.NewRpcClient(&conf.Ledger)
	poller := finality.NewPoller(&conf.Finality)

	agreements := ledger.NewAgreementContract(client.Contract(conf.Ledger.AgreementContractId), poller, conf.Ledger.Decimals, nil)
	obligations := ledger.NewObligationContract(client.Contract(conf.Ledger.ObligationContractId), poller, nil)

	agreementCount, err := agreements.GetAgreementCount(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("agreements:", agreementCount)

	obligationCount, err := obligations.GetObligationCount(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("obligations:", obligationCount)

	if *ledgerId == "" {
		return
	}

	view, err := agreements.GetAgreement(ctx, *ledgerId)
	if err != nil {
		log.Fatal(err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	err = encoder.Encode(view)
	if err != nil {
		log.Fatal(err)
	}
}
