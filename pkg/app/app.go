package app

import (
	"net/url"
	"sync"

	"dht11/pkg/app/config"
	"dht11/pkg/dht11"
	"dht11/pkg/mqtt"
	"dht11/pkg/raspberry"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	// and makes it easier to get params out of e.g.
	// url: https://0.0.0.0:7844/?minTls=1.2&bodyLimit=50MB
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// gpio is the handler to the gpio controller
	gpio raspberry.GPIO

	// sensor is the decoder owning the sensor line
	sensor *dht11.Decoder

	// metrics are the prometheus collectors of the sensor
	metrics *metrics

	// last is the last valid reading of the sensor
	last struct {
		sync.RWMutex
		data Reading
	}

	// published is the last reading sent to the mqtt broker
	published Reading

	// shutdown signals application shutdown
	shutdown  chan struct{}
	closeOnce sync.Once
	// senders tracks the reader and pending mqtt messages, mqtt.C is closed after them
	senders sync.WaitGroup
}

// New checks the Web server URL and initialize the main app structure
func New(config *config.Config) (*App, error) {
	u, err := url.Parse(config.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", config.Webserver.URL, err.Error())
		return &App{}, err
	}

	return &App{
		config:    config,
		urlParsed: u,

		web:     fiber.New(fiber.Config{DisableStartupMessage: true}),
		mqtt:    mqtt.New(),
		metrics: newMetrics(),

		shutdown: make(chan struct{}),
	}, nil
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	go app.mqtt.Service()
	go app.runWebServer()
	app.senders.Add(1)
	go func() {
		defer app.senders.Done()
		app.readSensor()
	}()

	return nil
}

// init initializes the application.
func (app *App) init() (err error) {
	if err = app.initSensor(); err != nil {
		return err
	}

	if err = app.mqtt.Connect(app.config.MQTT.Connection, app.config.MQTT.ClientID); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	// initDefaultRoutes should be always called last because it may access things like app.sensor
	// which must be initialized before
	app.initDefaultRoutes()

	return nil
}

// initSensor opens the gpio controller and hands the sensor line to the decoder.
func (app *App) initSensor() (err error) {
	if app.gpio, err = openGPIO(app.config); err != nil {
		debug.ErrorLog.Printf("can't open gpio: %v", err)
		return err
	}

	pin, err := app.gpio.NewPin(app.config.Gpio)
	if err != nil {
		debug.ErrorLog.Printf("can't open pin: %v", err)
		return err
	}

	if app.sensor, err = dht11.New(pin, dht11.WithStartHold(app.config.StartHold)); err != nil {
		debug.ErrorLog.Printf("can't open sensor: %v", err)
		return err
	}

	debug.InfoLog.Printf("sensor on gpio %v (%s driver)", app.config.Gpio, app.config.Driver)
	return nil
}

// Measure opens the sensor and reads it once, web server and mqtt stay down.
func (app *App) Measure() (Reading, error) {
	if err := app.initSensor(); err != nil {
		return Reading{}, err
	}
	return app.ReadOnce()
}

// Shutdown returns the read only shutdown channel.
// Shutdown is used to be able to react on application shutdown. (see cmd/dht11.go)
func (app *App) Shutdown() <-chan struct{} {
	return app.shutdown
}

// Close stops the reader and releases the web server, the mqtt broker and the gpio controller.
func (app *App) Close() error {
	app.closeOnce.Do(func() {
		if app.shutdown != nil {
			close(app.shutdown)
		}
		if app.web != nil {
			_ = app.web.Shutdown()
		}
		app.senders.Wait()
		if app.mqtt != nil {
			_ = app.mqtt.Close()
		}
		if app.gpio != nil {
			_ = app.gpio.Close()
		}
	})
	return nil
}
