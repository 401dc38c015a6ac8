package bootstrap

import (
	"context"
	"database/sql"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"resume-formatter/internal/extract"
	"resume-formatter/internal/orchestrator"
	"resume-formatter/internal/parser"
	"resume-formatter/internal/render"
	"resume-formatter/internal/runs"
	"resume-formatter/internal/services/health"
	"resume-formatter/internal/shared/config"
	"resume-formatter/internal/shared/server"
	"resume-formatter/internal/shared/storage/db"
	"resume-formatter/internal/shared/storage/object"
	localstore "resume-formatter/internal/shared/storage/object/local"
	s3store "resume-formatter/internal/shared/storage/object/s3"
	"resume-formatter/internal/shared/telemetry"
	"resume-formatter/internal/templates"
)

// s3TemplatePrefix keeps templates apart from uploads when both share a bucket.
const s3TemplatePrefix = "templates"

// App holds shared dependencies and the wired router.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Objects         object.KeyStore
	Uploads         object.ObjectStore
	Templates       *templates.Store
	RunsRepo        runs.Repo
	Parser          *parser.Client
	Renderer        *render.Renderer
	ProcessService  *orchestrator.Service
	RunsService     *runs.Service
	TemplateHandler *templates.Handler
	ProcessHandler  *orchestrator.Handler
	RunHandler      *runs.Handler
}

// Build prepares shared dependencies and routes.
func Build(cfg config.Config) (*App, error) {
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, templatePrefix, uploads, err := buildStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	renderer, err := render.New()
	if err != nil {
		return nil, errors.Wrap(err, "build renderer")
	}

	validator, err := buildValidator(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		DB:        sqlDB,
		Objects:   objects,
		Uploads:   uploads,
		Templates: templates.NewStore(objects, templatePrefix),
		Parser:    parser.NewClient(cfg.ParserTimeout()),
		Renderer:  renderer,
	}
	if sqlDB != nil {
		app.RunsRepo = &runs.PGRepo{DB: sqlDB}
	} else {
		app.RunsRepo = runs.NewMemoryRepo()
	}

	app.ProcessService = &orchestrator.Service{
		Templates: app.Templates,
		Runs:      app.RunsRepo,
		Uploads:   uploads,
		Deps: orchestrator.Deps{
			Parser:    app.Parser,
			Renderer:  renderer,
			Previewer: render.NewPreviewer(cfg.SanitizePreview()),
			Validator: validator,
			Inspect:   extract.InspectPDF,
		},
		Endpoint: cfg.ParserEndpoint,
		APIKey:   cfg.ParserAPIKey,
	}
	app.RunsService = &runs.Service{Repo: app.RunsRepo, Store: uploads}

	app.TemplateHandler = templates.NewHandler(app.Templates)
	app.ProcessHandler = orchestrator.NewHandler(app.ProcessService)
	app.RunHandler = runs.NewHandler(app.RunsService)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Health:          health.NewService(sqlDB, cfg.TemplateStoreType),
		TemplateHandler: app.TemplateHandler,
		ProcessHandler:  app.ProcessHandler,
		RunHandler:      app.RunHandler,
	})

	logTemplates(ctx, app.Templates)
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		telemetry.Info("bootstrap.db", map[string]any{"mode": "memory"})
		return nil, nil
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db_fallback", map[string]any{"error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db_fallback", map[string]any{"error": err.Error()})
			return nil, nil
		}
		return nil, errors.Wrap(err, "run migrations")
	}
	return sqlDB, nil
}

// buildStores returns the template store backend, the key prefix templates
// live under, and the store retained uploads are written to. S3 serves both
// from one bucket.
func buildStores(ctx context.Context, cfg config.Config) (object.KeyStore, string, object.ObjectStore, error) {
	switch cfg.TemplateStoreType {
	case "s3":
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, "", nil, errors.Wrap(err, "build s3 store")
		}
		return store, s3TemplatePrefix, store, nil
	default:
		return localstore.New(cfg.TemplateDir), "", localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildValidator(cfg config.Config) (*parser.SchemaValidator, error) {
	if strings.TrimSpace(cfg.ParsedSchemaPath) == "" {
		return nil, nil
	}
	v, err := parser.LoadSchemaValidator(cfg.ParsedSchemaPath)
	if err != nil {
		return nil, errors.Wrap(err, "load parsed data schema")
	}
	return v, nil
}

func logTemplates(ctx context.Context, store *templates.Store) {
	loaded, err := store.LoadAll(ctx)
	if err != nil {
		telemetry.Warn("bootstrap.templates", map[string]any{"error": err.Error()})
		return
	}
	telemetry.Info("bootstrap.templates", map[string]any{"count": len(loaded)})
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
