package index

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// Keyword table defaults.
const (
	DefaultMaxKeywordsPerNode  = 10
	DefaultMaxKeywordsPerQuery = 10
	DefaultKeywordTopK         = 10
)

// KeywordTableIndex maps keywords to the nodes that contain them.
type KeywordTableIndex struct {
	nodes    []Node
	position map[string]int
	table    map[string][]string
}

// NewKeywordTableIndex extracts up to maxKeywords keywords per node and builds
// the keyword table.
func NewKeywordTableIndex(nodes []Node, maxKeywords int) *KeywordTableIndex {
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywordsPerNode
	}
	k := &KeywordTableIndex{
		nodes:    append([]Node(nil), nodes...),
		position: make(map[string]int, len(nodes)),
		table:    make(map[string][]string),
	}
	for i, n := range k.nodes {
		k.position[n.ID] = i
		for _, kw := range ExtractKeywords(n.Text, maxKeywords) {
			k.table[kw] = append(k.table[kw], n.ID)
		}
	}
	return k
}

// Len returns the number of indexed nodes.
func (k *KeywordTableIndex) Len() int { return len(k.nodes) }

// Keywords returns the node IDs indexed under keyword.
func (k *KeywordTableIndex) Keywords(keyword string) []string {
	return k.table[strings.ToLower(keyword)]
}

// Retriever returns a retriever that ranks nodes by the number of query
// keywords they were indexed under. Ties keep insertion order.
func (k *KeywordTableIndex) Retriever(topK int) Retriever {
	if topK <= 0 {
		topK = DefaultKeywordTopK
	}
	return RetrieverFunc(func(ctx context.Context, query string) ([]NodeWithScore, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		counts := make(map[string]int)
		for _, kw := range ExtractKeywords(query, DefaultMaxKeywordsPerQuery) {
			for _, id := range k.table[kw] {
				counts[id]++
			}
		}

		ids := make([]string, 0, len(counts))
		for id := range counts {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			if counts[ids[i]] != counts[ids[j]] {
				return counts[ids[i]] > counts[ids[j]]
			}
			return k.position[ids[i]] < k.position[ids[j]]
		})
		if len(ids) > topK {
			ids = ids[:topK]
		}

		out := make([]NodeWithScore, len(ids))
		for i, id := range ids {
			out[i] = NodeWithScore{Node: k.nodes[k.position[id]], Score: float32(counts[id])}
		}
		return out, nil
	})
}

// Tokenize lower-cases text and returns its word tokens in order, stop
// words removed.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	tokens := fields[:0]
	for _, tok := range fields {
		if _, stop := stopWords[tok]; !stop {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// ExtractKeywords returns the limit most frequent tokens of text. Equal
// counts keep first occurrence order.
func ExtractKeywords(text string, limit int) []string {
	counts := make(map[string]int)
	var order []string
	for _, tok := range Tokenize(text) {
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	return order
}

var stopWords = func() map[string]struct{} {
	words := strings.Fields(`
		i me my myself we our ours ourselves you your yours yourself yourselves
		he him his himself she her hers herself it its itself they them their
		theirs themselves what which who whom this that these those am is are
		was were be been being have has had having do does did doing a an the
		and but if or because as until while of at by for with about against
		between into through during before after above below to from up down
		in out on off over under again further then once here there when where
		why how all any both each few more most other some such no nor not only
		own same so than too very s t can will just don should now d ll m o re
		ve y ain aren couldn didn doesn hadn hasn haven isn ma mightn mustn
		needn shan shouldn wasn weren won wouldn`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
