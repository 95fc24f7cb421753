package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/vocabmatch/internal/store"
)

// ClassHandler serves class-wide aggregates.
type ClassHandler struct {
	Store *store.Store
}

func (h *ClassHandler) Register(g *echo.Group) {
	g.GET("/stats", h.stats)
	g.GET("/recommendations", h.recommendations)
}

func (h *ClassHandler) stats(c echo.Context) error {
	// One limit caps both the missing-words and misuse leaderboards.
	limit := 5
	if raw := c.QueryParam("word_limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 50 {
			return echo.NewHTTPError(http.StatusBadRequest, "word_limit must be 1-50")
		}
		limit = n
	}
	stats, err := h.Store.ClassStats(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := ClassStatsResponse{
		Students:       stats.Students,
		AverageMastery: stats.AverageMastery,
		ReadingLevels:  make([]ReadingLevelBucket, 0, len(stats.ReadingLevels)),
		TopMissing:     make([]MissingWordRow, 0, len(stats.TopMissing)),
		MostMisused:    make([]MisusedWordRow, 0, len(stats.MostMisused)),
	}
	for _, lc := range stats.ReadingLevels {
		resp.ReadingLevels = append(resp.ReadingLevels, ReadingLevelBucket{
			Level:    lc.Level,
			Students: lc.Students,
		})
	}
	for _, m := range stats.TopMissing {
		resp.TopMissing = append(resp.TopMissing, MissingWordRow{
			Lemma:           m.Lemma,
			Grade:           m.Grade,
			StudentsMissing: m.StudentsMissing,
		})
	}
	for _, w := range stats.MostMisused {
		resp.MostMisused = append(resp.MostMisused, MisusedWordRow{
			Lemma:        w.Lemma,
			Grade:        w.Grade,
			UsageCount:   w.UsageCount,
			MisuseCount:  w.MisuseCount,
			StudentCount: w.StudentCount,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ClassHandler) recommendations(c echo.Context) error {
	picks, err := h.Store.LatestClassRecommendations(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]ClassRecommendationRow, 0, len(picks))
	for _, p := range picks {
		out = append(out, ClassRecommendationRow{
			BookID:              p.BookID,
			Title:               p.Title,
			StudentsRecommended: p.StudentsRecommended,
			AverageScore:        p.AverageScore,
		})
	}
	return c.JSON(http.StatusOK, out)
}
