package llm

import "testing"

func TestParseSimilarity(t *testing.T) {
	got, err := parseSimilarity(`{"similarity": 0.85, "reasoning": "same vendor"}`)
	if err != nil {
		t.Fatalf("plain JSON: %v", err)
	}
	if got.Similarity != 0.85 || got.Reasoning != "same vendor" {
		t.Fatalf("parsed %+v", got)
	}
}

func TestParseSimilarityStripsCodeFence(t *testing.T) {
	fenced := "```json\n{\"similarity\": 0.4, \"reasoning\": \"different dates\"}\n```"
	got, err := parseSimilarity(fenced)
	if err != nil {
		t.Fatalf("fenced JSON: %v", err)
	}
	if got.Similarity != 0.4 {
		t.Fatalf("parsed %+v", got)
	}

	bare := "```\n{\"similarity\": 1}\n```"
	if _, err := parseSimilarity(bare); err != nil {
		t.Fatalf("bare fence: %v", err)
	}
}

func TestParseSimilarityClampsRange(t *testing.T) {
	got, err := parseSimilarity(`{"similarity": 1.7}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Similarity != 1 {
		t.Fatalf("similarity above one not clamped: %v", got.Similarity)
	}

	got, err = parseSimilarity(`{"similarity": -0.3}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Similarity != 0 {
		t.Fatalf("negative similarity not clamped: %v", got.Similarity)
	}
}

func TestParseSimilarityMalformed(t *testing.T) {
	if _, err := parseSimilarity("the transactions look alike"); err == nil {
		t.Fatalf("prose response did not fail")
	}
	if _, err := parseSimilarity(""); err == nil {
		t.Fatalf("empty response did not fail")
	}
}
