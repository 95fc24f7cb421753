package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/vocabmatch/internal/recommend"
)

func TestBookSearch(t *testing.T) {
	e := echo.New()
	h, err := NewBooksHandler([]recommend.Book{
		{ID: "b1", Title: "The Secret Garden", Author: "Frances Hodgson Burnett", ReadingLevel: 5.9},
		{ID: "b2", Title: "Treasure Island", Author: "Robert Louis Stevenson", ReadingLevel: 6.8},
	})
	if err != nil {
		t.Fatalf("NewBooksHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/books/search?q=garden", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := h.search(ctx); err != nil {
		t.Fatalf("search: %v", err)
	}
	var hits []BookSearchHit
	if err := json.Unmarshal(rec.Body.Bytes(), &hits); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hits) != 1 || hits[0].BookID != "b1" {
		t.Fatalf("hits = %+v", hits)
	}
	if hits[0].Title != "The Secret Garden" || hits[0].ReadingLevel != 5.9 {
		t.Fatalf("stored fields missing: %+v", hits[0])
	}
}

func TestBookList(t *testing.T) {
	e := echo.New()
	h, err := NewBooksHandler([]recommend.Book{
		{ID: "b2", Title: "Treasure Island", ReadingLevel: 6.8, Vocabulary: map[string]int{"endure": 1}},
		{ID: "b1", Title: "The Secret Garden", ReadingLevel: 5.9, Vocabulary: map[string]int{"endure": 2, "prevail": 1}},
		{ID: "b3", Title: "Hard Times", ReadingLevel: 7.5},
	})
	if err != nil {
		t.Fatalf("NewBooksHandler: %v", err)
	}

	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{"b1", "b2", "b3"}},
		{"min", "?reading_level_min=6.0", []string{"b2", "b3"}},
		{"max", "?reading_level_max=7.0", []string{"b1", "b2"}},
		{"band", "?reading_level_min=6.0&reading_level_max=7.0", []string{"b2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/books"+tc.query, nil)
			rec := httptest.NewRecorder()
			ctx := e.NewContext(req, rec)

			if err := h.list(ctx); err != nil {
				t.Fatalf("list: %v", err)
			}
			var rows []BookRow
			if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
				t.Fatalf("decode: %v", err)
			}
			got := make([]string, 0, len(rows))
			for _, r := range rows {
				got = append(got, r.BookID)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("book ids = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBookListRejectsBadLevel(t *testing.T) {
	e := echo.New()
	h, err := NewBooksHandler(nil)
	if err != nil {
		t.Fatalf("NewBooksHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/books?reading_level_min=high", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	errList := h.list(ctx)
	he, ok := errList.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", errList)
	}
}

func TestBookSearchRequiresQuery(t *testing.T) {
	e := echo.New()
	h, err := NewBooksHandler(nil)
	if err != nil {
		t.Fatalf("NewBooksHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/books/search", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	errSearch := h.search(ctx)
	he, ok := errSearch.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", errSearch)
	}
}
