// -----------------------------------------------------------------------
// Application wiring - storage, services, scheduler and HTTP handlers
// -----------------------------------------------------------------------

package app

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/handlers"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/jobs"
	"github.com/ternarybob/colligo/internal/services/events"
	"github.com/ternarybob/colligo/internal/services/secrets"
	"github.com/ternarybob/colligo/internal/services/settings"
	"github.com/ternarybob/colligo/internal/services/snapshot"
	"github.com/ternarybob/colligo/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Services
	SettingsService *settings.Service
	SecretsService  *secrets.Service
	SnapshotService *snapshot.Service
	EventService    interfaces.EventService

	// Job execution
	ClientFactory *jobs.Factory
	Scheduler     *jobs.Scheduler

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	QueryHandler    *handlers.QueryHandler
	SettingsHandler *handlers.SettingsHandler
	SecretsHandler  *handlers.SecretsHandler
	ValidateHandler *handlers.ValidateHandler
	WSHandler       *handlers.WebSocketHandler
}

// New creates the application and wires every component together.
// Order matters: storage first, then services, then the scheduler,
// then the handlers that sit on top.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = storageManager

	a.SettingsService = settings.NewService(storageManager.SettingsStorage(), logger)
	a.SecretsService = secrets.NewService(storageManager.SecretStorage(), logger)
	a.SnapshotService = snapshot.NewService(storageManager.SnapshotStorage(), logger)
	a.EventService = events.NewService(logger)

	a.ClientFactory = jobs.NewFactory(config, a.SecretsService, logger)
	a.Scheduler = jobs.NewScheduler(a.ClientFactory, a.SettingsService, a.SnapshotService, a.EventService, nil, logger)

	a.APIHandler = handlers.NewAPIHandler()
	a.QueryHandler = handlers.NewQueryHandler(a.Scheduler, a.SnapshotService, logger)
	a.SettingsHandler = handlers.NewSettingsHandler(a.SettingsService, logger)
	a.SecretsHandler = handlers.NewSecretsHandler(a.SecretsService, logger)
	a.ValidateHandler = handlers.NewValidateHandler(config, a.SettingsService, a.SecretsService, logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, logger)

	logger.Info().
		Str("environment", config.Environment).
		Str("storage_path", config.Storage.Badger.Path).
		Msg("Application initialized")

	return a, nil
}

// Close releases application resources.
func (a *App) Close() error {
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
	}
	a.Logger.Info().Msg("Application closed")
	return nil
}
