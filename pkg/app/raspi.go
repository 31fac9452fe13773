package app

import (
	"dht11/pkg/app/config"
	"dht11/pkg/raspberry"
	"dht11/pkg/sim"

	"github.com/womat/debug"
)

// openGPIO opens the configured gpio driver.
// The emulator driver replays the configured values, only for testing without sensor.
func openGPIO(c *config.Config) (raspberry.GPIO, error) {
	if c.Driver == raspberry.DriverEmulator {
		debug.InfoLog.Printf("emulate sensor: humidity %v%%, temperature %v°C", c.Emulator.Humidity, c.Emulator.Temperature)
		return raspberry.OpenEmulator(sim.Frame(c.Emulator.Humidity, 0, c.Emulator.Temperature, 0)), nil
	}

	return raspberry.Open(c.Driver, c.Chip)
}
