package server

import (
	"database/sql"
	"errors"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/vocabmatch/internal/store"
)

// StudentsHandler serves roster and per-student profile views.
type StudentsHandler struct {
	Store *store.Store
}

func (h *StudentsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/:name", h.detail)
}

func (h *StudentsHandler) list(c echo.Context) error {
	students, err := h.Store.ListStudents(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]StudentSummary, 0, len(students))
	for _, s := range students {
		out = append(out, StudentSummary{
			Name:               s.Name,
			ActualReadingLevel: s.ActualReadingLevel,
			AssignedGrade:      s.AssignedGrade,
			Mastery:            s.Mastery,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *StudentsHandler) detail(c echo.Context) error {
	ctx := c.Request().Context()
	rec, err := h.Store.GetStudentByName(ctx, c.Param("name"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "student not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	words, err := h.Store.GetProfileWords(ctx, rec.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	details := make([]WordDetail, 0, len(words))
	for lemma, w := range words {
		details = append(details, WordDetail{
			Lemma:             lemma,
			Grade:             w.Word.Grade,
			UsageCount:        w.UsageCount,
			CorrectUsageCount: w.CorrectUsageCount,
			Known:             w.Known(),
			MisuseExamples:    w.MisuseExamples,
		})
	}
	sort.Slice(details, func(i, j int) bool { return details[i].Lemma < details[j].Lemma })

	recs, err := h.Store.LatestStudentRecommendations(ctx, rec.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	recDetails := make([]RecommendationDetail, 0, len(recs))
	for _, r := range recs {
		recDetails = append(recDetails, RecommendationDetail{
			BookID:        r.BookID,
			Title:         r.Title,
			Rank:          r.Rank,
			Score:         r.Score,
			KnownFraction: r.KnownFraction,
			NewWordCount:  r.NewWordCount,
		})
	}

	return c.JSON(http.StatusOK, StudentDetailResponse{
		StudentSummary: StudentSummary{
			Name:               rec.Name,
			ActualReadingLevel: rec.ActualReadingLevel,
			AssignedGrade:      rec.AssignedGrade,
			Mastery:            rec.Mastery,
		},
		Words:           details,
		Recommendations: recDetails,
	})
}
