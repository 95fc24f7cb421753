package recommend

import (
	"sort"
)

// ClassRecommendation is one book's class-wide standing: how many
// students it appeared for and its average match score among them.
type ClassRecommendation struct {
	BookID              string  `json:"book_id"`
	Title               string  `json:"title"`
	StudentsRecommended int     `json:"students_recommended"`
	AverageScore        float64 `json:"average_score"`
}

// Aggregate folds per-student recommendation lists into a class-wide
// ranking: recommendation count descending, then average score
// descending, then book ID ascending. At most topN books are returned.
func Aggregate(perStudent map[string][]Match, topN int) []ClassRecommendation {
	type bucket struct {
		title    string
		students int
		total    float64
	}
	buckets := make(map[string]*bucket)
	for _, matches := range perStudent {
		for _, m := range matches {
			b, ok := buckets[m.Book.ID]
			if !ok {
				b = &bucket{title: m.Book.Title}
				buckets[m.Book.ID] = b
			}
			b.students++
			b.total += m.Score
		}
	}

	out := make([]ClassRecommendation, 0, len(buckets))
	for id, b := range buckets {
		out = append(out, ClassRecommendation{
			BookID:              id,
			Title:               b.title,
			StudentsRecommended: b.students,
			AverageScore:        b.total / float64(b.students),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentsRecommended != out[j].StudentsRecommended {
			return out[i].StudentsRecommended > out[j].StudentsRecommended
		}
		if out[i].AverageScore != out[j].AverageScore {
			return out[i].AverageScore > out[j].AverageScore
		}
		return out[i].BookID < out[j].BookID
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
