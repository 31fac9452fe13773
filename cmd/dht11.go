package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"dht11/pkg/app"
	"dht11/pkg/app/config"

	"github.com/urfave/cli/v2"
	"github.com/womat/debug"
)

const defaultConfigFile = "/opt/womat/config/" + app.MODULE + ".yaml"

func main() {
	exitCode := 1
	defer func() {
		os.Exit(exitCode)
	}()

	// cfg holds the application configuration
	cfg := config.NewConfig()

	cliApp := &cli.App{
		Name:    app.MODULE,
		Usage:   "read humidity and temperature of a DHT11 sensor over a single gpio line",
		Version: app.VERSION,
		Description: "Read measurements of the DHT11 sensor and publish them to mqtt, prometheus and the web api" +
			"\n the sensor answers a start signal with 40 bits encoded as pulse widths on the data line.",
		UsageText: "dht11 [--config <file>] [--log standard|debug|trace] [read]" +
			"\n\nEXAMPLE:" +
			"\n\tstart the service and use the configuration file dht11.yaml" +
			"\n\t\tdht11 --config /opt/womat/dht11.yaml" +
			"\n\tread the sensor once" +
			"\n\t\tdht11 --config /opt/womat/dht11.yaml read",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &cfg.Flag.ConfigFile, Value: defaultConfigFile, Usage: "load configuration from `FILE`"},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Destination: &cfg.Flag.Debug, Usage: "`LEVEL` defines the log level (standard|debug|trace)"},
		},
		Commands: []*cli.Command{
			{
				Name:   "read",
				Usage:  "read the sensor once and print the measurement as json",
				Action: func(ctx *cli.Context) error { return read(cfg) },
			},
		},
		Action: func(ctx *cli.Context) error { return serve(cfg) },
	}

	// we expect to have more command line flags in the future - sort them
	sort.Sort(cli.FlagsByName(cliApp.Flags))
	sort.Sort(cli.CommandsByName(cliApp.Commands))

	if err := cliApp.Run(os.Args); err != nil {
		debug.FatalLog.Print(err)
		return
	}

	exitCode = 0
}

// setup loads the configuration and starts logging.
func setup(cfg *config.Config) (closeLog func(), err error) {
	if err = cfg.LoadConfig(); err != nil {
		return nil, err
	}

	debug.SetDebug(cfg.Debug.File, cfg.Debug.Flag)
	return func() {
		debug.InfoLog.Printf("closing debug file %s", cfg.Debug.FileString)
		_ = cfg.Debug.File.Close()
	}, nil
}

// serve runs the service until an exit signal is received.
func serve(cfg *config.Config) error {
	closeLog, err := setup(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		debug.InfoLog.Printf("closing app %s", app.Version())
		_ = a.Close()
	}()

	debug.InfoLog.Printf("starting app %s", app.Version())
	if err = a.Run(); err != nil {
		return err
	}

	// capture exit signals to ensure resources are released on exit.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	// wait for am os.Interrupt signal (CTRL C)
	select {
	case sig := <-quit:
		debug.InfoLog.Printf("Got %s signal. Aborting...", sig)
	case <-a.Shutdown():
	}
	return nil
}

// read prints a single measurement to stdout.
func read(cfg *config.Config) error {
	closeLog, err := setup(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	r, err := a.Measure()
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
