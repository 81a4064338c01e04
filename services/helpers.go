package services

import (
	"fmt"
	"time"

	"github.com/playgrid/arena/storage"
)

// Pagination describes one page of a collection response.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

func newPagination(page, limit, totalItems int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (totalItems + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, TotalItems: totalItems, TotalPages: totalPages}
}

// normalizePage clamps page/limit to sane values.
func normalizePage(page, limit, defaultLimit, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// TournamentRoom is the broadcast room id for a tournament.
func TournamentRoom(tournamentID int) string {
	return fmt.Sprintf("tournament_%d", tournamentID)
}

func validateSchedule(regOpens, regCloses, starts time.Time, ends *time.Time) error {
	if regOpens.IsZero() || regCloses.IsZero() || starts.IsZero() {
		return fmt.Errorf("%w: registration window and start are required", ErrTournamentInvalidSchedule)
	}
	if regOpens.After(regCloses) {
		return fmt.Errorf("%w: registration opens (%s) after it closes (%s)",
			ErrTournamentInvalidSchedule, regOpens.Format(time.RFC3339), regCloses.Format(time.RFC3339))
	}
	if regCloses.After(starts) {
		return fmt.Errorf("%w: registration closes (%s) after the start (%s)",
			ErrTournamentInvalidSchedule, regCloses.Format(time.RFC3339), starts.Format(time.RFC3339))
	}
	if ends != nil && starts.After(*ends) {
		return fmt.Errorf("%w: start (%s) after the end (%s)",
			ErrTournamentInvalidSchedule, starts.Format(time.RFC3339), ends.Format(time.RFC3339))
	}
	return nil
}

// resolveMediaURL turns a stored object key into a public URL. Safe to
// call with a nil uploader (media uploads disabled) or nil key.
func resolveMediaURL(uploader storage.FileUploader, key *string) *string {
	if uploader == nil || key == nil {
		return nil
	}
	url := uploader.GetPublicURL(*key)
	if url == "" {
		return nil
	}
	return &url
}
