package fx

import (
	"royale-tracker/internal/api"
	"royale-tracker/internal/config"
	"royale-tracker/internal/database"
	"royale-tracker/internal/logger"
	"royale-tracker/internal/repository"
	"royale-tracker/internal/scheduler"
	"royale-tracker/internal/server"
	"royale-tracker/internal/service"

	"go.uber.org/fx"
)

func ProvideRoyaleClient(c *api.Client) service.RoyaleClient {
	return c
}

func ProvideCycleRunner(s *service.IngestService) scheduler.CycleRunner {
	return s
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewBattleRepository),
	// api client
	fx.Provide(api.NewClient),
	fx.Provide(ProvideRoyaleClient),
	// svc
	fx.Provide(service.NewIngestService),
	fx.Provide(service.NewLeaderboardService),
	fx.Provide(ProvideCycleRunner),
	// scheduler + server
	fx.Provide(scheduler.New),
	fx.Provide(server.New),
)
