package app

import (
	"errors"
	"math"
	"runtime"
	rdebug "runtime/debug"
	"time"

	"dht11/pkg/dht11"
	"dht11/pkg/mqtt"

	"github.com/womat/debug"
)

var errShutdown = errors.New("application shutdown")

// Reading is a validated measurement with the time it was taken.
type Reading struct {
	TimeStamp       time.Time
	Humidity        float64 // relative humidity (%)
	Temperature     float64 // temperature (°C)
	HumidityInt     uint8
	HumidityFrac    uint8
	TemperatureInt  uint8
	TemperatureFrac uint8
	Attempts        int // transactions needed for this reading
}

func newReading(m dht11.Measurement, attempts int) Reading {
	return Reading{
		TimeStamp:       time.Now(),
		Humidity:        m.Humidity(),
		Temperature:     m.Temperature(),
		HumidityInt:     m.HumidityInt(),
		HumidityFrac:    m.HumidityFrac(),
		TemperatureInt:  m.TemperatureInt(),
		TemperatureFrac: m.TemperatureFrac(),
		Attempts:        attempts,
	}
}

// readSensor reads the sensor every interval until shutdown.
func (app *App) readSensor() {
	ticker := time.NewTicker(app.config.Interval)
	defer ticker.Stop()

	for {
		if r, err := app.ReadOnce(); err != nil {
			if err == errShutdown {
				return
			}
			debug.ErrorLog.Printf("read sensor: %v", err)
		} else {
			app.validateMeasurements(r)
		}

		select {
		case <-app.shutdown:
			return
		case <-ticker.C:
		}
	}
}

// ReadOnce reads the sensor with up to config.Retries transactions and stores the reading.
// Between two transactions the line is idled and the sensor gets config.RetryDelay to settle.
func (app *App) ReadOnce() (Reading, error) {
	var err error

	for i := 1; i <= app.config.Retries; i++ {
		if i > 1 {
			select {
			case <-app.shutdown:
				return Reading{}, errShutdown
			case <-time.After(app.config.RetryDelay):
			}
		}

		var m dht11.Measurement
		m, err = app.transaction()
		app.metrics.observe(err)

		if e := app.sensor.Idle(); e != nil {
			debug.ErrorLog.Printf("can't idle sensor line: %v", e)
		}

		if err == nil {
			r := newReading(m, i)
			debug.DebugLog.Printf("reading: %v (attempt %v)", m, i)

			app.last.Lock()
			app.last.data = r
			app.last.Unlock()
			app.metrics.set(r)
			return r, nil
		}

		debug.DebugLog.Printf("attempt %v/%v: %v", i, app.config.Retries, err)
	}

	return Reading{}, err
}

// transaction runs one read with the garbage collector stopped and the goroutine locked to its thread.
func (app *App) transaction() (dht11.Measurement, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	gcPercent := rdebug.SetGCPercent(-1)
	defer rdebug.SetGCPercent(gcPercent)

	return app.sensor.Read()
}

// Last returns the last valid reading, ok is false if there is none yet.
func (app *App) Last() (r Reading, ok bool) {
	app.last.RLock()
	defer app.last.RUnlock()
	return app.last.data, !app.last.data.TimeStamp.IsZero()
}

// validateMeasurements sends the reading to mqtt if the mqtt interval elapsed
// or humidity or temperature changed by at least the configured delta.
func (app *App) validateMeasurements(r Reading) bool {
	p := app.published

	deltaT := r.TimeStamp.Sub(p.TimeStamp)
	deltaH := math.Abs(r.Humidity - p.Humidity)
	deltaK := math.Abs(r.Temperature - p.Temperature)

	if !p.TimeStamp.IsZero() && deltaT < app.config.MQTT.Interval &&
		deltaH < app.config.MQTT.DeltaHumidity && deltaK < app.config.MQTT.DeltaTemperature {
		return false
	}

	app.sendMQTT(app.config.MQTT.Topic, r)
	app.published = r
	return true
}

// sendMQTT send message struct to the mqtt broker.
func (app *App) sendMQTT(topic string, message interface{}) {
	app.senders.Add(1)
	go func(t string, r interface{}) {
		defer app.senders.Done()
		debug.TraceLog.Printf("prepare mqtt message %v %v", t, r)

		msg, err := mqtt.NewMessage(t, r)
		if err != nil {
			debug.ErrorLog.Printf("sendMQTT: %v", err)
			return
		}

		select {
		case app.mqtt.C <- msg:
		case <-app.shutdown:
		}
	}(topic, message)
}
