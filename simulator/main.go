package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BusBom/rpi-server/infra/mqtt"
	"github.com/BusBom/rpi-server/qa/scenarios"
)

func main() {
	cfg := parseFlags()
	if err := (&cfg).Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if !cfg.Verbose {
		log.SetOutput(io.Discard)
	}

	sc, err := scenarios.Load(cfg.Scenario)
	if err != nil {
		log.Fatalf("scenario: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Broker != "" {
		if err := runDisplay(ctx, cfg); err != nil {
			log.Fatalf("display: %v", err)
		}
	}

	mux := http.NewServeMux()
	NewStop(sc, cfg.Loop).Routes(mux)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	fmt.Printf("serving scenario %q on %s\n", sc.Name, cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http: %v", err)
	}
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Addr, "addr", ":8000", "HTTP listen address")
	flag.StringVar(&cfg.Scenario, "scenario", "", "scenario YAML file")
	flag.BoolVar(&cfg.Loop, "loop", false, "restart the scenario when it ends")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	flag.StringVar(&cfg.Broker, "broker", "", "MQTT broker URL; enables the simulated display")
	flag.StringVar(&cfg.InstructionTopic, "instruction-topic", "busbom/instructions", "instruction topic")
	flag.StringVar(&cfg.AckTopic, "ack-topic", "", "display ack topic")
	flag.StringVar(&cfg.Codec, "codec", "json", "instruction codec (json, msgpack)")
	flag.DurationVar(&cfg.AckLatency, "ack-latency", 0, "ack latency")
	flag.Float64Var(&cfg.DropRate, "drop-rate", 0, "ack drop rate")
	flag.Parse()
	return cfg
}

func runDisplay(ctx context.Context, cfg Config) error {
	codec, err := mqtt.NewCodec(cfg.Codec)
	if err != nil {
		return err
	}
	cli, err := newMQTTClient(cfg.Broker, "busbom-display")
	if err != nil {
		return err
	}
	d := &Display{
		Codec:    codec,
		AckTopic: cfg.AckTopic,
		Strategy: RandomAck{Delay: cfg.AckLatency, DropRate: cfg.DropRate},
		Out:      func(s string) { fmt.Println(s) },
	}
	go func() {
		<-ctx.Done()
		cli.Disconnect(250)
	}()
	return d.Subscribe(ctx, cli, cfg.InstructionTopic)
}
