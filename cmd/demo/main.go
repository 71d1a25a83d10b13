// File: cmd/demo/main.go
//
// demo submits the built-in Ancient Greek samples to the configured Space as
// one batch and logs each outcome. Failures are logged and the batch
// continues.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"grecy-client/internal/config"
	"grecy-client/internal/domain/model"
	"grecy-client/internal/infra/adapters/space"
	"grecy-client/internal/infra/logging"
	"grecy-client/internal/infra/worker"
	"grecy-client/internal/usecase"
)

type sample struct {
	name string
	text string
}

var samples = []sample{
	{"tokens", "καὶ πρὶν μὲν ἐν κακοῖσι κειμένην ὅμως ἐλπίς μʼ ἀεὶ προσῆγε σωθέντος τέκνου ἀλκήν τινʼ εὑρεῖν κἀπικούρησιν δόμον"},
	{"sentences", "Ἡροδότου Ἁλικαρνησσέος ἱστορίης ἀπόδεξις ἥδε. ὡς μήτε τὰ γενόμενα ἐξ ἀνθρώπων τῷ χρόνῳ ἐξίτηλα γένηται, μήτε ἔργα μεγάλα τε καὶ θωμαστά, ἀκλεᾶ γένηται."},
	{"entities", "τοῦ δὲ Ἡροδότου ἐν Θουρίοις."},
}

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	modelKey := flag.String("model", "grc_proiel_trf", "model key sent to the Space")
	lang := flag.String("lang", "", "UI language code; empty uses space.default_language")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := space.NewClient(space.Options{
		BaseURL:        cfg.Space.BaseURL,
		Endpoint:       cfg.Space.Endpoint,
		Token:          cfg.Space.Token,
		EnqueueTimeout: cfg.Space.EnqueueTimeout,
		StreamTimeout:  cfg.Space.StreamTimeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("space client")
	}
	defer client.Close()

	analysisUC := usecase.NewAnalysisUseCase(
		space.NewLimitedRunner(client, cfg.Space.ConcurrentLimit),
		nil, nil,
		usecase.AnalysisOptions{DefaultLanguage: cfg.Space.DefaultLanguage, Dev: true},
		logger,
	)

	workers := worker.NewPool(cfg.Jobs.Workers, logger)
	workers.Start(ctx)
	defer workers.Stop()

	inputs := make([]usecase.AnalysisInput, len(samples))
	for i, s := range samples {
		inputs[i] = usecase.AnalysisInput{Language: *lang, Model: *modelKey, Text: s.text}
	}
	results := worker.NewBatchProcessor(analysisUC, workers, logger).Run(ctx, inputs)

	failed := 0
	for _, r := range results {
		name := samples[r.Index].name
		if r.Job == nil {
			failed++
			logger.Error().Str("sample", name).Str("error", r.Error).Msg("sample not run")
			continue
		}
		if r.Job.Status != model.AnalysisJobStatusCompleted {
			failed++
			continue
		}
		ev := logger.Info().Str("sample", name).Str("job_id", r.Job.ID).Int("outputs", len(r.Job.Outputs))
		if tbl, err := model.DecodeTable(r.Job.Outputs); err == nil {
			ev = ev.Strs("headers", tbl.Headers).Int("rows", len(tbl.Data))
		}
		ev.Msg("sample analysed")
	}
	if failed > 0 {
		logger.Warn().Int("failed", failed).Int("total", len(results)).Msg("demo finished with failures")
		return 1
	}
	return 0
}
