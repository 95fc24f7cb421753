package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
)

func TestClassStatsEndpoint(t *testing.T) {
	e := echo.New()
	st, mock := newMockHandlerStore(t)
	h := &ClassHandler{Store: st}

	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE\(AVG\(mastery\), 0\) FROM students`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "avg"}).AddRow(25, 0.42))
	mock.ExpectQuery(`SELECT FLOOR\(actual_reading_level\)::int`).
		WillReturnRows(sqlmock.NewRows([]string{"level", "count"}).
			AddRow(5, 11).AddRow(6, 14))
	mock.ExpectQuery(`SELECT vw.lemma, vw.grade,`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"lemma", "grade", "missing"}).
			AddRow("meticulous", 7, 22))
	mock.ExpectQuery(`SUM\(cardinality\(sv.misuse_examples\)\)`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"lemma", "grade", "usage", "misuse", "students"}).
			AddRow("through", 5, 40, 18, 9))

	req := httptest.NewRequest(http.MethodGet, "/api/class/stats", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := h.stats(ctx); err != nil {
		t.Fatalf("stats: %v", err)
	}
	var out ClassStatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Students != 25 || len(out.MostMisused) != 1 || out.MostMisused[0].Lemma != "through" {
		t.Fatalf("unexpected body: %+v", out)
	}
	if len(out.ReadingLevels) != 2 || out.ReadingLevels[0].Level != 5 || out.ReadingLevels[0].Students != 11 {
		t.Fatalf("reading levels = %+v", out.ReadingLevels)
	}
	if len(out.TopMissing) != 1 || out.TopMissing[0].Lemma != "meticulous" || out.TopMissing[0].StudentsMissing != 22 {
		t.Fatalf("top missing = %+v", out.TopMissing)
	}
}

func TestClassStatsRejectsBadLimit(t *testing.T) {
	e := echo.New()
	st, _ := newMockHandlerStore(t)
	h := &ClassHandler{Store: st}

	req := httptest.NewRequest(http.MethodGet, "/api/class/stats?word_limit=500", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	err := h.stats(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestClassRecommendationsEndpoint(t *testing.T) {
	e := echo.New()
	st, mock := newMockHandlerStore(t)
	h := &ClassHandler{Store: st}

	mock.ExpectQuery(`FROM class_recommendations cr`).
		WillReturnRows(sqlmock.NewRows([]string{"book_id", "title", "students_recommended", "average_score"}).
			AddRow("b1", "Trials", 3, 0.75).
			AddRow("b3", "Paths", 2, 0.8))

	req := httptest.NewRequest(http.MethodGet, "/api/class/recommendations", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := h.recommendations(ctx); err != nil {
		t.Fatalf("recommendations: %v", err)
	}
	var out []ClassRecommendationRow
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0].BookID != "b1" || out[0].StudentsRecommended != 3 {
		t.Fatalf("unexpected body: %+v", out)
	}
}
