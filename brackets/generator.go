package brackets

import (
	"context"

	"github.com/playgrid/arena/models"
)

type GenerateParams struct {
	Tournament *models.Tournament
	// Teams is the confirmed roster in registration order.
	Teams []*models.Team
}

type Generator interface {
	Generate(ctx context.Context, params GenerateParams) ([]*models.Match, error)

	Name() string
}
