// Command clipflowd is the daemon entrypoint. It loads configuration and
// delegates to the daemonrun wiring.
package main

import (
	"context"
	"flag"
	"log"

	"clipflow/internal/config"
	"clipflow/internal/daemonrun"
)

func main() {
	configFlag := flag.String("config", "", "configuration file path")
	levelFlag := flag.String("log-level", "", "log level override")
	flag.Parse()

	cfg, _, _, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *levelFlag}); err != nil {
		log.Fatalf("clipflowd: %v", err)
	}
}
