package main

import (
	"os"

	"resume-formatter/internal/bootstrap"
	"resume-formatter/internal/shared/config"
	"resume-formatter/internal/shared/server"
	"resume-formatter/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)

	app, err := bootstrap.Build(cfg)
	if err != nil {
		telemetry.Error("bootstrap.failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	if app.DB != nil {
		defer app.DB.Close()
	}

	addr := server.Addr(cfg.Port)
	telemetry.Info("server.start", map[string]any{
		"addr":              addr,
		"env":               cfg.Env,
		"template_store":    cfg.TemplateStoreType,
		"parser_configured": cfg.ParserEndpoint != "",
	})

	if err := app.Router.Run(addr); err != nil {
		telemetry.Error("server.stopped", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
