package brackets

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/playgrid/arena/models"
)

var (
	ErrNoTeams         = errors.New("cannot generate bracket with zero teams")
	ErrNotEnoughTeams  = errors.New("not enough teams to generate a single elimination bracket (minimum 2)")
	ErrNilTeamInRoster = errors.New("roster contains a nil team entry")
)

type SingleEliminationGenerator struct {
}

func NewSingleEliminationGenerator() Generator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) Name() string {
	return "SingleElimination"
}

// Generate builds the full single-elimination tree for n teams:
// ceil(log2(n)) rounds, round r holding 2^(R-r) matches. Only round 1
// is seeded, pairing teams in roster order (team[2i] vs team[2i+1]).
// Later rounds are created with empty slots: winners are recorded per
// match and never advanced automatically, and byes for non-power-of-two
// rosters are left unresolved, so a slot may stay empty.
func (g *SingleEliminationGenerator) Generate(ctx context.Context, params GenerateParams) ([]*models.Match, error) {
	teams := params.Teams
	n := len(teams)

	if n == 0 {
		return nil, ErrNoTeams
	}
	if n < 2 {
		return nil, ErrNotEnoughTeams
	}
	for _, team := range teams {
		if team == nil {
			return nil, ErrNilTeamInRoster
		}
	}

	rounds := int(math.Ceil(math.Log2(float64(n))))
	matches := make([]*models.Match, 0, (1<<uint(rounds))-1)

	for r := 1; r <= rounds; r++ {
		matchesInRound := 1 << uint(rounds-r)
		for k := 1; k <= matchesInRound; k++ {
			m := &models.Match{
				UID:          fmt.Sprintf("R%dM%d", r, k),
				TournamentID: params.Tournament.ID,
				Round:        r,
				OrderInRound: k,
				Status:       models.MatchStatusPending,
			}

			if r == 1 {
				i1 := 2 * (k - 1)
				i2 := i1 + 1
				if i1 < n {
					id := teams[i1].ID
					m.Team1ID = &id
				}
				if i2 < n {
					id := teams[i2].ID
					m.Team2ID = &id
				}
			}

			matches = append(matches, m)
		}
	}

	return matches, nil
}
