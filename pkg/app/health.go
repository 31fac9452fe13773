package app

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// staleReadings is the number of read intervals without a valid reading after which the sensor is reported unhealthy.
const staleReadings = 3

// sensorState is the state of the sensor line.
type sensorState struct {
	Healthy     bool
	Driver      string
	Gpio        int
	LastReading *time.Time `json:",omitempty"`
	Age         string     `json:",omitempty"` // time since the last valid reading
	Reads       int64      // transactions started
	ReadErrors  int64      // failed transactions
}

// sensorHealth reports whether the sensor delivered a valid reading within the last staleReadings intervals.
func (app *App) sensorHealth(now time.Time) sensorState {
	h := sensorState{
		Driver:     app.config.Driver,
		Gpio:       app.config.Gpio,
		Reads:      app.metrics.readCount.Load(),
		ReadErrors: app.metrics.errorCount.Load(),
	}

	if r, ok := app.Last(); ok {
		age := now.Sub(r.TimeStamp)
		h.LastReading = &r.TimeStamp
		h.Age = age.Round(time.Second).String()
		h.Healthy = age <= staleReadings*app.config.Interval
	}
	return h
}

// HandleHealth returns data about the health of myself and the sensor.
// output example:
//
//	{"Sensor":{"Healthy":true,"Driver":"gpiod","Gpio":4,"LastReading":"2026-09-01T10:00:00+02:00","Age":"4s",
//	 "Reads":120,"ReadErrors":3},"NumGoroutines":11,"NumCPU":4,"HeapAllocatedMB":3,"Version":"1.6.09+20260901",...}
//
// The status is 503 if the sensor is unhealthy.
func (app *App) HandleHealth() fiber.Handler {
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}

	host, _ := os.Hostname()

	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request health")

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		now := time.Now()
		sensor := app.sensorHealth(now)

		healthData := struct {
			Sensor          sensorState
			NumGoroutines   int
			NumCPU          int
			HeapAllocatedMB uint64
			SysMemoryMB     uint64
			Version         string
			ProgLang        string
			HostName        string
			Time            string
		}{
			Sensor:          sensor,
			NumGoroutines:   runtime.NumGoroutine(),
			NumCPU:          runtime.NumCPU(),
			HeapAllocatedMB: bToMb(m.Alloc),
			SysMemoryMB:     bToMb(m.Sys),
			ProgLang:        runtime.Version(),
			Version:         VERSION,
			HostName:        host,
			Time:            now.Format(time.RFC3339),
		}

		if !sensor.Healthy {
			ctx.Status(http.StatusServiceUnavailable)
		} else {
			ctx.Status(http.StatusOK)
		}
		return ctx.JSON(healthData)
	}
}
