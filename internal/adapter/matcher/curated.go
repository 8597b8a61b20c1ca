package matcher

import (
	"sort"

	"academybot/internal/adapter/analyzer"
	"academybot/internal/domain"
)

// Confidence values per match method.
const (
	confExact     = 0.95
	confPartial   = 0.85
	confKeyword   = 0.75
	fuzzyMinRatio = 0.80
)

// Matcher answers questions from a small curated table. The table is built
// once and read-only afterwards, so Match is safe for concurrent use.
type Matcher struct {
	entries []entry
}

type entry struct {
	key      string // canonicalized question
	question string
	tokens   []string
	keywords map[string]struct{}
	rec      domain.QARecord
}

// New builds a matcher over the given records. Records with an empty
// canonical question are skipped.
func New(records []domain.QARecord) *Matcher {
	entries := make([]entry, 0, len(records))
	for _, rec := range records {
		key := analyzer.Canonicalize(rec.Question)
		if key == "" {
			continue
		}
		kws := make(map[string]struct{}, len(rec.Keywords))
		for _, kw := range rec.Keywords {
			kws[kw] = struct{}{}
		}
		entries = append(entries, entry{
			key:      key,
			question: rec.Question,
			tokens:   analyzer.Tokenize(key),
			keywords: kws,
			rec:      rec,
		})
	}
	// Stable candidate order: shorter stored question first, then ID.
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].question) != len(entries[j].question) {
			return len(entries[i].question) < len(entries[j].question)
		}
		return entries[i].rec.ID < entries[j].rec.ID
	})
	return &Matcher{entries: entries}
}

// Len returns the number of curated entries.
func (m *Matcher) Len() int {
	return len(m.entries)
}

// Match looks the question up in the curated table. Methods are tried in
// order (exact, partial, keyword, fuzzy) and the first hit wins. Malformed
// input never errors; it simply does not match.
func (m *Matcher) Match(q string) (domain.CuratedMatch, bool) {
	key := analyzer.Canonicalize(q)
	if key == "" || len(m.entries) == 0 {
		return domain.CuratedMatch{}, false
	}

	// Exact.
	for _, e := range m.entries {
		if e.key == key {
			return domain.CuratedMatch{
				RecordID:   e.rec.ID,
				Answer:     e.rec.Answer,
				Confidence: confExact,
				Method:     domain.MatchExact,
			}, true
		}
	}

	tokens := analyzer.Tokenize(key)

	// Containment as an ordered token subsequence, with token length ratio
	// >= 0.5. Token-level containment keeps an interposed article ("what is
	// the lms" vs "what is lms") from defeating a partial match.
	for _, e := range m.entries {
		shorterSeq, longerSeq := tokens, e.tokens
		if len(shorterSeq) > len(longerSeq) {
			shorterSeq, longerSeq = longerSeq, shorterSeq
		}
		if len(longerSeq) == 0 ||
			float64(len(shorterSeq))/float64(len(longerSeq)) < 0.5 ||
			!isTokenSubsequence(shorterSeq, longerSeq) {
			continue
		}
		return domain.CuratedMatch{
			RecordID:   e.rec.ID,
			Answer:     e.rec.Answer,
			Confidence: confPartial,
			Method:     domain.MatchPartial,
		}, true
	}

	// Keyword: at least two question tokens of length >= 3 in the keyword set.
	for _, e := range m.entries {
		if len(e.keywords) == 0 {
			continue
		}
		var hits int
		seen := make(map[string]struct{})
		for _, tok := range tokens {
			if len(tok) < 3 {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			if _, ok := e.keywords[tok]; ok {
				hits++
			}
		}
		if hits >= 2 {
			return domain.CuratedMatch{
				RecordID:   e.rec.ID,
				Answer:     e.rec.Answer,
				Confidence: confKeyword,
				Method:     domain.MatchKeyword,
			}, true
		}
	}

	// Fuzzy: best LCS ratio against stored questions.
	var (
		best      *entry
		bestRatio float64
	)
	for i := range m.entries {
		ratio := lcsRatio(key, m.entries[i].key)
		if ratio > bestRatio {
			bestRatio = ratio
			best = &m.entries[i]
		}
	}
	if best != nil && bestRatio >= fuzzyMinRatio {
		return domain.CuratedMatch{
			RecordID:   best.rec.ID,
			Answer:     best.rec.Answer,
			Confidence: 0.60 + 0.30*bestRatio,
			Method:     domain.MatchFuzzy,
		}, true
	}

	return domain.CuratedMatch{}, false
}

// isTokenSubsequence reports whether sub occurs in seq in order, allowing
// gaps.
func isTokenSubsequence(sub, seq []string) bool {
	i := 0
	for _, tok := range seq {
		if i < len(sub) && sub[i] == tok {
			i++
		}
	}
	return i == len(sub)
}

// lcsRatio returns the longest-common-subsequence length of a and b divided
// by the longer length.
func lcsRatio(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}
	return float64(prev[len(rb)]) / float64(longer)
}
