package resolve

import (
	"sort"
	"strings"
)

// Default resolver settings.
const (
	DefaultThreshold   = 0.3
	DefaultMinTokenLen = 3
	DefaultSuggestions = 5
)

// Strategy names the step that produced a match.
type Strategy string

const (
	StrategyCode      Strategy = "code"
	StrategyExact     Strategy = "exact"
	StrategySubstring Strategy = "substring"
	StrategyToken     Strategy = "token"
)

// Candidate is one catalog entry the resolver can return.
type Candidate struct {
	ID    string
	Name  string
	Codes []string
	// Normalized is the search form of Name; Prepare fills it when empty.
	Normalized string
}

// Match is a resolved candidate.
type Match struct {
	Candidate  Candidate
	Similarity float64
	Overlap    int
	Strategy   Strategy
}

// Suggestion is a nearby catalog entry offered when resolution fails.
type Suggestion struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// Resolver matches free text to catalog candidates. It is safe for
// concurrent use.
type Resolver struct {
	normalizer  Normalizer
	threshold   float64
	minTokenLen int
	matchCodes  bool
	suggestions int
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithThreshold sets the minimum token similarity for the fallback step.
func WithThreshold(t float64) Option {
	return func(r *Resolver) {
		if t > 0 && t <= 1 {
			r.threshold = t
		}
	}
}

// WithMinTokenLen keeps only tokens longer than n in the fallback step.
func WithMinTokenLen(n int) Option {
	return func(r *Resolver) {
		if n >= 0 {
			r.minTokenLen = n
		}
	}
}

// WithQualifiers replaces the qualifier phrases stripped in search mode.
func WithQualifiers(q []string) Option {
	return func(r *Resolver) {
		if q != nil {
			r.normalizer = NewNormalizer(q)
		}
	}
}

// WithCodeMatch enables the case-insensitive code step used for institutions.
func WithCodeMatch() Option {
	return func(r *Resolver) {
		r.matchCodes = true
	}
}

// WithSuggestionLimit sets how many suggestions Suggest returns.
func WithSuggestionLimit(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.suggestions = n
		}
	}
}

// New creates a resolver with the given options.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		normalizer:  defaultNormalizer,
		threshold:   DefaultThreshold,
		minTokenLen: DefaultMinTokenLen,
		suggestions: DefaultSuggestions,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Normalize returns the search form of s.
func (r *Resolver) Normalize(s string) string {
	return r.normalizer.Search(s)
}

// Display returns the display form of s.
func (r *Resolver) Display(s string) string {
	return r.normalizer.Display(s)
}

// Prepare fills Normalized on every candidate that lacks it.
func (r *Resolver) Prepare(cands []Candidate) []Candidate {
	out := make([]Candidate, len(cands))
	for i, c := range cands {
		if c.Normalized == "" {
			c.Normalized = r.normalizer.Search(c.Name)
		}
		out[i] = c
	}
	return out
}

// Resolve returns the best candidate for query, trying code, exact,
// substring and token-overlap matching in that order.
func (r *Resolver) Resolve(query string, cands []Candidate) (Match, bool) {
	if strings.TrimSpace(query) == "" || len(cands) == 0 {
		return Match{}, false
	}

	if r.matchCodes {
		if m, ok := r.byCode(query, cands); ok {
			return m, true
		}
	}

	q := r.normalizer.Search(query)
	if q == "" {
		return Match{}, false
	}

	var (
		best  Match
		found bool
	)
	for _, c := range cands {
		if r.normalized(c) == q {
			m := Match{Candidate: c, Similarity: 1, Strategy: StrategyExact}
			if !found || c.Name < best.Candidate.Name {
				best, found = m, true
			}
		}
	}
	if found {
		return best, true
	}

	qTokens := tokens(q, r.minTokenLen)
	for _, c := range cands {
		n := r.normalized(c)
		if n == "" {
			continue
		}
		if !strings.Contains(n, q) && !strings.Contains(q, n) {
			continue
		}
		_, overlap := Jaccard(qTokens, tokens(n, r.minTokenLen))
		m := Match{Candidate: c, Similarity: lengthRatio(q, n), Overlap: overlap, Strategy: StrategySubstring}
		if !found || better(m, best) {
			best, found = m, true
		}
	}
	if found {
		return best, true
	}

	for _, c := range cands {
		sim, overlap := Jaccard(qTokens, tokens(r.normalized(c), r.minTokenLen))
		if sim == 0 {
			continue
		}
		m := Match{Candidate: c, Similarity: sim, Overlap: overlap, Strategy: StrategyToken}
		if !found || better(m, best) {
			best, found = m, true
		}
	}
	if found && best.Similarity >= r.threshold {
		return best, true
	}
	return Match{}, false
}

// Suggest returns up to the configured number of candidates ranked by
// partial similarity, most similar first.
func (r *Resolver) Suggest(query string, cands []Candidate) []Suggestion {
	q := r.normalizer.Search(query)
	if q == "" {
		return []Suggestion{}
	}
	out := make([]Suggestion, 0, len(cands))
	for _, c := range cands {
		sim := PartialSimilarity(q, r.normalized(c))
		if sim <= 0 {
			continue
		}
		out = append(out, Suggestion{ID: c.ID, Name: c.Name, Similarity: sim})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > r.suggestions {
		out = out[:r.suggestions]
	}
	return out
}

func (r *Resolver) byCode(query string, cands []Candidate) (Match, bool) {
	code := strings.TrimSpace(query)
	var (
		best  Match
		found bool
	)
	for _, c := range cands {
		for _, cc := range c.Codes {
			if cc != "" && strings.EqualFold(cc, code) {
				if !found || c.Name < best.Candidate.Name {
					best, found = Match{Candidate: c, Similarity: 1, Strategy: StrategyCode}, true
				}
				break
			}
		}
	}
	return best, found
}

func (r *Resolver) normalized(c Candidate) string {
	if c.Normalized != "" {
		return c.Normalized
	}
	return r.normalizer.Search(c.Name)
}

// better orders matches by similarity, then overlap count, then name.
func better(a, b Match) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if a.Overlap != b.Overlap {
		return a.Overlap > b.Overlap
	}
	return a.Candidate.Name < b.Candidate.Name
}
