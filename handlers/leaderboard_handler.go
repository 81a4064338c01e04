package handlers

import (
	"net/http"
	"strconv"

	"github.com/playgrid/arena/repositories"
	"github.com/playgrid/arena/services"
)

type LeaderboardHandler struct {
	rankingService *services.RankingService
}

func NewLeaderboardHandler(rankingService *services.RankingService) *LeaderboardHandler {
	return &LeaderboardHandler{rankingService: rankingService}
}

// scopeFromQuery reads the optional game/region scope selectors.
func scopeFromQuery(r *http.Request) repositories.LeaderboardScope {
	scope := repositories.LeaderboardScope{Game: r.URL.Query().Get("game")}
	if region := r.URL.Query().Get("region"); region != "" {
		scope.Region = &region
	}
	return scope
}

func (h *LeaderboardHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := readPageParams(r)

	result, err := h.rankingService.Leaderboard(r.Context(), scopeFromQuery(r), page, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *LeaderboardHandler) Top3(w http.ResponseWriter, r *http.Request) {
	podium, err := h.rankingService.Top3(r.Context(), scopeFromQuery(r))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"podium": podium}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *LeaderboardHandler) UserRank(w http.ResponseWriter, r *http.Request) {
	userID, err := readIDParam(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.rankingService.UserRank(r.Context(), scopeFromQuery(r), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Recalculate triggers the batch re-rank on demand, outside its
// schedule. Admin only.
func (h *LeaderboardHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	if err := h.rankingService.RecalculateRanks(r.Context()); err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "rank recalculation complete"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *LeaderboardHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.rankingService.SearchUsers(r.Context(), query, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"results": results}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
