package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ajmal017/pyquant/internal/common"
	"github.com/ajmal017/pyquant/internal/exchange"
	"github.com/ajmal017/pyquant/internal/ingest"
	"github.com/ajmal017/pyquant/internal/netio"
	"github.com/ajmal017/pyquant/internal/replay"
	"github.com/ajmal017/pyquant/internal/tickdiff"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	tickFile := flag.String("ticks", "", "path to a CSV depth-snapshot dump (compulsory)")
	symbol := flag.String("symbol", "", "instrument symbol recorded in the tick file (compulsory)")
	maxDepth := flag.Int("depth", 10, "max book depth reported in snapshots and read from the tick file")
	address := flag.String("address", "0.0.0.0", "address the strategy-client server listens on")
	port := flag.Int("port", 9001, "port the strategy-client server listens on")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if *tickFile == "" || *symbol == "" {
		log.Fatal().Msg("-ticks and -symbol are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	f, err := os.Open(*tickFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", *tickFile).Msg("opening tick file")
	}
	ticks, err := ingest.ReadTicks(f, *maxDepth)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("ingesting ticks")
	}
	log.Info().Int("ticks", len(ticks)).Str("symbol", *symbol).Msg("ticks loaded")

	batches := tickdiff.Generate(ticks, func(done, total int) {
		log.Debug().Int("done", done).Int("total", total).Msg("tick diff generated")
	})

	ex := exchange.New(common.SystemClock{})
	ex.RegisterSymbol(*symbol, *maxDepth)

	driver := replay.New(ex, *symbol)
	if err := driver.Run(batches, func(done, total int) {
		if done%1000 == 0 || done == total {
			log.Info().Int("done", done).Int("total", total).Msg("replay progress")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("replaying historical order flow")
	}
	log.Info().Msg("historical replay complete, accepting live order flow")

	srv := netio.New(*address, *port, ex)
	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Error().Err(err).Msg("netio server stopped")
			stop()
		}
	}()

	<-ctx.Done()
}
