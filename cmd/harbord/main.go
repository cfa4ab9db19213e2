package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborclob/harbor/params"
	"github.com/harborclob/harbor/pkg/api"
	"github.com/harborclob/harbor/pkg/core/asset"
	"github.com/harborclob/harbor/pkg/core/engine"
	"github.com/harborclob/harbor/pkg/core/market"
	"github.com/harborclob/harbor/pkg/storage"
	"github.com/harborclob/harbor/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if !common.IsHexAddress(cfg.Exchange.AdminAddress) {
		log.Fatalf("invalid ADMIN_ADDRESS %q", cfg.Exchange.AdminAddress)
	}
	admission := market.Admission{Admin: common.HexToAddress(cfg.Exchange.AdminAddress)}

	var store *storage.Store
	if cfg.Storage.DBPath != "" {
		store, err = storage.NewStore(cfg.Storage.DBPath)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		defer store.Close()
	}

	// Token custody collaborator. The in-memory ledger serves devnets;
	// a production deployment plugs a persistent custody backend in here.
	tokens := asset.NewMemLedger()

	selfTrade := engine.SelfTradeAllow
	if cfg.Exchange.SelfTradeSkip {
		selfTrade = engine.SelfTradeSkip
	}
	exchange, err := engine.New(engine.Config{
		BookCapacity: cfg.Exchange.BookCapacity,
		SelfTrade:    selfTrade,
	}, admission, tokens, store, logger)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	server := api.NewServer(exchange, logger)
	go func() {
		if err := server.Start(cfg.API.ListenAddr); err != nil {
			log.Fatalf("api: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting_down")
}
