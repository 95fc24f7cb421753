package extract

import (
	"testing"

	"github.com/mohammad-safakhou/vocabmatch/internal/corpus"
	"github.com/mohammad-safakhou/vocabmatch/internal/vocab"
)

func testMaster(t *testing.T) *vocab.MasterList {
	t.Helper()
	lem := vocab.StaticLemmatizer{
		"endured":  "endure",
		"prevails": "prevail",
	}
	m, err := vocab.NewMasterList([]vocab.Word{
		{Lemma: "endure", Grade: 7},
		{Lemma: "prevail", Grade: 8},
		{Lemma: "thorough", Grade: 7},
	}, lem)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestExtractKeepsOriginalSentence(t *testing.T) {
	units := []corpus.TextUnit{
		{Student: "Sarah Smith", Text: "She endured the storm. It was long.", Seq: 0, Source: corpus.SourceTranscript},
	}
	occ := Extract(units, testMaster(t))["Sarah Smith"]
	if len(occ) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occ))
	}
	if occ[0].Sentence != "She endured the storm." {
		t.Fatalf("sentence = %q, want original inflected form", occ[0].Sentence)
	}
	if occ[0].Word.Lemma != "endure" {
		t.Fatalf("word = %q", occ[0].Word.Lemma)
	}
}

func TestExtractSourceOrderAcrossUnits(t *testing.T) {
	units := []corpus.TextUnit{
		{Student: "Amy Wu", Text: "Justice prevails.", Seq: 5, Source: corpus.SourceEssay},
		{Student: "Amy Wu", Text: "She endured a lot! A thorough review helps.", Seq: 1, Source: corpus.SourceTranscript},
	}
	occ := Extract(units, testMaster(t))["Amy Wu"]
	if len(occ) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(occ))
	}
	wantLemmas := []string{"endure", "thorough", "prevail"}
	for i, o := range occ {
		if o.Word.Lemma != wantLemmas[i] {
			t.Fatalf("occurrence %d = %q, want %q", i, o.Word.Lemma, wantLemmas[i])
		}
		if o.Position != i {
			t.Fatalf("occurrence %d has position %d", i, o.Position)
		}
	}
}

func TestExtractUnresolvedTokenNotAnError(t *testing.T) {
	units := []corpus.TextUnit{
		{Student: "Bob Lee", Text: "Gibberish flooble wug.", Seq: 0},
	}
	if got := Extract(units, testMaster(t)); len(got["Bob Lee"]) != 0 {
		t.Fatalf("expected no occurrences, got %v", got)
	}
}

func TestTokenizeHandlesContractions(t *testing.T) {
	toks := Tokenize("I can't believe she endured, honestly!")
	want := []string{"I", "can't", "believe", "she", "endured", "honestly"}
	if len(toks) != len(want) {
		t.Fatalf("tokens = %v", toks)
	}
	for i := range want {
		if toks[i] != want[i] {
			t.Fatalf("token %d = %q, want %q", i, toks[i], want[i])
		}
	}
}
