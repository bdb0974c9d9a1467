package search

import (
	"testing"
)

func docs(pairs ...string) []Document {
	out := make([]Document, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Document{ID: pairs[i], Text: pairs[i+1]})
	}
	return out
}

func TestTopK_RanksByJaccard(t *testing.T) {
	idx := NewIndex(docs(
		"m1", "the homework deadline moved to friday",
		"m2", "deadline is friday",
		"m3", "see you at the gym",
	))

	got := idx.TopK("deadline friday", 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// m2 has the smaller union, so it scores higher.
	if got[0].MessageID != "m2" {
		t.Errorf("top result = %s, want m2", got[0].MessageID)
	}
	if got[1].MessageID != "m1" {
		t.Errorf("second result = %s, want m1", got[1].MessageID)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("scores not descending: %f then %f", got[0].Score, got[1].Score)
	}
}

func TestTopK_NoOverlapReturnsNil(t *testing.T) {
	idx := NewIndex(docs("m1", "completely unrelated message"))
	if got := idx.TopK("quantum entanglement", 3); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestTopK_EmptyQueryAndEmptyIndex(t *testing.T) {
	idx := NewIndex(docs("m1", "hello world"))
	if got := idx.TopK("   ", 3); got != nil {
		t.Fatalf("blank query: got %v, want nil", got)
	}
	empty := NewIndex(nil)
	if got := empty.TopK("hello", 3); got != nil {
		t.Fatalf("empty index: got %v, want nil", got)
	}
}

func TestTopK_DefaultKAndCapping(t *testing.T) {
	idx := NewIndex(docs(
		"m1", "go go go",
		"m2", "go team",
		"m3", "go home now",
		"m4", "go away please",
		"m5", "let it go",
	))
	// k <= 0 falls back to 3.
	if got := idx.TopK("go", 0); len(got) != 3 {
		t.Fatalf("default k: len = %d, want 3", len(got))
	}
	// k larger than matches is capped.
	if got := idx.TopK("go", 50); len(got) != 5 {
		t.Fatalf("capped k: len = %d, want 5", len(got))
	}
}

func TestTopK_DeterministicTieBreak(t *testing.T) {
	// Same score and length; ties break lexicographically by snippet.
	idx := NewIndex(docs(
		"m2", "bb match",
		"m1", "aa match",
	))
	got := idx.TopK("match", 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Snippet != "aa match" || got[1].Snippet != "bb match" {
		t.Fatalf("tie order = [%s, %s], want lexicographic", got[0].Snippet, got[1].Snippet)
	}
}

func TestNewIndex_FiltersAndOptions(t *testing.T) {
	idx := NewIndex(docs(
		"m1", "   ",
		"m2", "ok",
		"m3", "a perfectly reasonable sentence",
	), WithMinMessageRunes(5))

	if got := idx.TopK("ok", 3); got != nil {
		t.Fatalf("short message survived the rune filter: %v", got)
	}
	if got := idx.TopK("reasonable sentence", 3); len(got) != 1 || got[0].MessageID != "m3" {
		t.Fatalf("got %v, want just m3", got)
	}
}

func TestNewIndex_Stopwords(t *testing.T) {
	idx := NewIndex(docs(
		"m1", "the cat sat on the mat",
	), WithStopwords([]string{"the", "on"}))

	// Query made only of stopwords cannot match.
	if got := idx.TopK("the on", 3); got != nil {
		t.Fatalf("stopword-only query matched: %v", got)
	}
	if got := idx.TopK("cat mat", 3); len(got) != 1 {
		t.Fatalf("got %v, want one match", got)
	}
}

func TestNewIndex_MaxDocs(t *testing.T) {
	idx := NewIndex(docs(
		"m1", "alpha message",
		"m2", "beta message",
		"m3", "gamma message",
	), WithMaxDocs(2))

	if got := idx.TopK("gamma", 3); got != nil {
		t.Fatalf("doc beyond cap was indexed: %v", got)
	}
	if got := idx.TopK("alpha", 3); len(got) != 1 {
		t.Fatalf("got %v, want one match", got)
	}
}

func TestTokenize_UnicodeAware(t *testing.T) {
	idx := NewIndex(docs("m1", "Überraschung für die Schüler"))
	got := idx.TopK("überraschung", 1)
	if len(got) != 1 || got[0].MessageID != "m1" {
		t.Fatalf("got %v, want unicode match", got)
	}
}
