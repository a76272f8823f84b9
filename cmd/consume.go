package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"huntzen-care/consumer"
	"huntzen-care/monitoring"
	"huntzen-care/services"
	"huntzen-care/utils"
)

func newConsumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Run the care events consumer",
		Long:  "consume reads care events from Kafka and refreshes the practitioner search index and the read caches.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsume()
		},
	}
}

func newCareConsumer(in *infra, svc *services.Services) *consumer.CareConsumer {
	reader := utils.NewKafkaReader(in.cfg.KafkaBroker, in.cfg.KafkaTopic, in.cfg.KafkaGroupID)

	// Assigned only when present so the consumer sees nil interfaces.
	var indexer consumer.Indexer
	if svc.Indexer != nil {
		indexer = svc.Indexer
	}
	var cache consumer.Invalidator
	if in.redis != nil {
		cache = in.redis
	}
	return consumer.NewCareConsumer(reader, indexer, cache, in.log)
}

func runConsume() error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.KafkaBroker == "" {
		return errors.New("KAFKA_BROKER is required")
	}

	in, err := openInfra(cfg, log)
	if err != nil {
		return err
	}
	defer in.Close()

	monitoring.Init()
	c := newCareConsumer(in, in.buildServices())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down consumer", "signal", sig.String())

	c.Stop()
	return nil
}
