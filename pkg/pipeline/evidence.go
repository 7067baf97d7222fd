package pipeline

import (
	"strings"

	"github.com/google/uuid"

	"github.com/contaixt/contaixt/pkg/types"
)

// findEvidenceChunks locates the chunks attesting an extracted entity or
// relation. The evidence span is matched as a case-insensitive substring;
// when the model's span matches nothing (paraphrased evidence is common),
// the fallback terms are tried instead. Order follows chunk order, each
// chunk at most once.
func findEvidenceChunks(chunks []types.Chunk, evidence string, fallbackTerms []string) []uuid.UUID {
	if len(chunks) == 0 {
		return nil
	}

	var matches []uuid.UUID
	if needle := strings.ToLower(strings.TrimSpace(evidence)); needle != "" {
		for _, ch := range chunks {
			if strings.Contains(strings.ToLower(ch.Text), needle) {
				matches = append(matches, ch.ID)
			}
		}
	}

	if len(matches) == 0 && len(fallbackTerms) > 0 {
		var terms []string
		for _, t := range fallbackTerms {
			if t != "" {
				terms = append(terms, strings.ToLower(t))
			}
		}
		for _, ch := range chunks {
			hay := strings.ToLower(ch.Text)
			for _, term := range terms {
				if strings.Contains(hay, term) {
					matches = append(matches, ch.ID)
					break
				}
			}
		}
	}

	return dedupIDs(matches)
}

func dedupIDs(ids []uuid.UUID) []uuid.UUID {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
