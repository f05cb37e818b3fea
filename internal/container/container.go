package container

import (
	"log/slog"

	"pdfshrink/internal/application"
	"pdfshrink/internal/compression"
	"pdfshrink/internal/config"
	"pdfshrink/internal/database"
	compressionDomain "pdfshrink/internal/domain/compression"
	"pdfshrink/internal/domain/history"
	"pdfshrink/internal/services"

	"gorm.io/gorm"
)

var (
	_ compressionDomain.Optimizer      = (*services.PDFService)(nil)
	_ compressionDomain.DocumentOpener = (*services.PDFService)(nil)
	_ compressionDomain.Recompressor   = (*compression.Recompressor)(nil)
	_ history.Repository               = (*services.HistoryService)(nil)
)

// Container holds all dependencies for the application
type Container struct {
	config *config.Config
	db     *gorm.DB
	logger *slog.Logger

	// Services
	pdfService         *services.PDFService
	recompressor       *compression.Recompressor
	historyRepo        history.Repository
	compressionHandler *application.CompressionHandler
}

// New creates a new dependency injection container. The history database is
// opened only when cfg.HistoryDB is set.
func New(cfg *config.Config, reporter application.Reporter) (*Container, error) {
	c := &Container{
		config: cfg,
		logger: cfg.Logger,
	}

	if cfg.HistoryDB != "" {
		db, err := database.Initialize(cfg.HistoryDB)
		if err != nil {
			return nil, err
		}
		c.db = db
	}

	c.initServices(reporter)
	return c, nil
}

// initServices initializes all services with their dependencies
func (c *Container) initServices(reporter application.Reporter) {
	// Create infrastructure services
	c.pdfService = services.NewPDFService(c.config)
	c.recompressor = compression.NewRecompressor(c.pdfService, compression.NewJPEGCodec(), c.logger)
	if c.db != nil {
		c.historyRepo = services.NewHistoryService(c.db)
	}

	// Create domain services
	c.compressionHandler = application.NewCompressionHandler(
		c.logger,
		c.pdfService,
		c.recompressor,
		compression.DefaultQualityLevels(),
		c.historyRepo,
		reporter,
	)
}

// GetCompressionHandler returns the batch handler
func (c *Container) GetCompressionHandler() *application.CompressionHandler {
	return c.compressionHandler
}

// GetHistoryRepository returns the history store, or nil when disabled
func (c *Container) GetHistoryRepository() history.Repository {
	return c.historyRepo
}

// GetConfig returns the application configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// Close releases the history database if one was opened
func (c *Container) Close() error {
	if c.db == nil {
		return nil
	}
	return database.Close(c.db)
}
