package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/canlat/internal/logging"
	"github.com/danmuck/canlat/internal/node"
)

func main() {
	path := flag.String("config", "cmd/initiatorctl/config.toml", "node config path")
	flag.Parse()

	logging.ConfigureRuntime()
	cfg, err := loadServiceConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initiatorctl: %v\n", err)
		os.Exit(1)
	}
	svc, err := node.NewService(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initiatorctl: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "initiatorctl: %v\n", err)
		os.Exit(1)
	}
}
