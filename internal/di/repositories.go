package di

import (
	"github.com/aristath/frontier/internal/modules/runs"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories backed by the container's databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	container.RunRepo = runs.NewRepository(container.RunsDB.Conn(), log)
	return nil
}
