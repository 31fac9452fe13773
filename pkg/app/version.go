package app

import (
	rdebug "runtime/debug"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// VERSION is MAJOR.Y.MM+YYYYMM01
//
//	Y  ... years since 2020 (6 = 2026)
//	MM ... month of the release
//
// The part after the + is the first of the release month.
const (
	VERSION = "1.6.09+20260901"
	MODULE  = "dht11"
)

// HandleVersion is the get application version web handler.
// Besides the version it names the gpio driver the sensor is read with.
func (app *App) HandleVersion() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request version")

		return ctx.JSON(fiber.Map{
			"version":     VERSION,
			"description": MODULE,
			"about":       Version(),
			"driver":      app.config.Driver,
			"goModule":    goModule(),
		})
	}
}

// Version is the get application version as string.
func Version() string {
	return strings.TrimSpace(MODULE + " V" + strings.Split(VERSION, "+")[0])
}

// goModule returns the main module path and version the binary was built from.
func goModule() string {
	info, ok := rdebug.ReadBuildInfo()
	if !ok {
		return MODULE
	}
	return info.Main.Path + "@" + info.Main.Version
}
