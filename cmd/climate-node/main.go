// climate-node is a battery temperature and humidity sensor node.
//
// It samples an SHTC3 over I2C (or a simulated one), joins the coordinator
// over the UDP radio link and reports measurements while joined.
//
// Usage:
//
//	climate-node [options]
//
// Options:
//
//	-config       YAML configuration file
//	-log-level    error, warn, info, debug or trace (default: info)
//	-storage      SQLite database path (default: in-memory)
//	-listen       local UDP radio address (default: ":0")
//	-coordinator  coordinator UDP address (default: "127.0.0.1:17754")
//	-sim-sensor   use the simulated SHTC3
//
// Example:
//
//	climate-node -sim-sensor -coordinator 192.168.1.10:17754 -storage node.db
package main

import (
	"log"

	"github.com/backkem/climate-node/examples/common"
	"github.com/backkem/climate-node/examples/sensor"
)

func main() {
	opts := common.ParseFlags()

	cfg, err := opts.Load()
	if err != nil {
		common.PrintUsage()
		log.Fatalf("Failed to load configuration: %v", err)
	}

	device, err := sensor.NewDevice(cfg, common.LoggerFactory(cfg), nil)
	if err != nil {
		log.Fatalf("Failed to create sensor device: %v", err)
	}
	defer device.Close()

	if err := common.RunUntilSignal(device.Run); err != nil {
		log.Printf("Device error: %v", err)
	}
}
