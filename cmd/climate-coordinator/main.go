// climate-coordinator runs the network coordinator for climate nodes and
// forwards their reports to MQTT and InfluxDB.
//
// Usage:
//
//	climate-coordinator [options]
//
// Options:
//
//	-config       YAML configuration file
//	-log-level    error, warn, info, debug or trace (default: info)
//	-listen       UDP radio address (default: ":17754")
//	-permit-join  permit-join window at startup (default: 5m)
//
// Example:
//
//	climate-coordinator -config /etc/climate/coordinator.yaml -permit-join 10m
package main

import (
	"context"
	"log"

	"github.com/backkem/climate-node/examples/common"
	"github.com/backkem/climate-node/examples/gateway"
)

func main() {
	opts := common.ParseFlags()

	cfg, err := opts.Load()
	if err != nil {
		common.PrintUsage()
		log.Fatalf("Failed to load configuration: %v", err)
	}

	err = common.RunUntilSignal(func(ctx context.Context) error {
		gw, err := gateway.New(ctx, cfg, common.LoggerFactory(cfg), gateway.Options{})
		if err != nil {
			return err
		}
		return gw.Run(ctx)
	})
	if err != nil {
		log.Fatalf("Coordinator error: %v", err)
	}
}
