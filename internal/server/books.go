package server

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/blevesearch/bleve"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/vocabmatch/internal/recommend"
)

type bookDoc struct {
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	ReadingLevel float64 `json:"reading_level"`
}

// BooksHandler serves the catalog listing and full-text search. The
// index is in-memory and rebuilt whenever the catalog changes.
type BooksHandler struct {
	books []recommend.Book
	index bleve.Index
}

// NewBooksHandler builds the search index over the catalog.
func NewBooksHandler(books []recommend.Book) (*BooksHandler, error) {
	mapping := bleve.NewIndexMapping()
	index, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("create book index: %w", err)
	}
	batch := index.NewBatch()
	for _, b := range books {
		if err := batch.Index(b.ID, bookDoc{
			Title:        b.Title,
			Author:       b.Author,
			ReadingLevel: b.ReadingLevel,
		}); err != nil {
			return nil, fmt.Errorf("index book %q: %w", b.ID, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("build book index: %w", err)
	}
	ordered := make([]recommend.Book, len(books))
	copy(ordered, books)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	return &BooksHandler{books: ordered, index: index}, nil
}

func (h *BooksHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/search", h.search)
}

func (h *BooksHandler) list(c echo.Context) error {
	min, err := levelParam(c, "reading_level_min")
	if err != nil {
		return err
	}
	max, err := levelParam(c, "reading_level_max")
	if err != nil {
		return err
	}
	out := make([]BookRow, 0, len(h.books))
	for _, b := range h.books {
		if min != nil && b.ReadingLevel < *min {
			continue
		}
		if max != nil && b.ReadingLevel > *max {
			continue
		}
		out = append(out, BookRow{
			BookID:          b.ID,
			Title:           b.Title,
			Author:          b.Author,
			ReadingLevel:    b.ReadingLevel,
			VocabularyWords: len(b.Vocabulary),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func levelParam(c echo.Context, name string) (*float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, name+" must be a number")
	}
	return &v, nil
}

func (h *BooksHandler) search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing query parameter q")
	}
	query := bleve.NewMatchQuery(q)
	req := bleve.NewSearchRequestOptions(query, 10, 0, false)
	req.Fields = []string{"title", "author", "reading_level"}
	res, err := h.index.Search(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	hits := make([]BookSearchHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out := BookSearchHit{BookID: hit.ID, SearchScore: hit.Score}
		if v, ok := hit.Fields["title"].(string); ok {
			out.Title = v
		}
		if v, ok := hit.Fields["author"].(string); ok {
			out.Author = v
		}
		if v, ok := hit.Fields["reading_level"].(float64); ok {
			out.ReadingLevel = v
		}
		hits = append(hits, out)
	}
	return c.JSON(http.StatusOK, hits)
}
