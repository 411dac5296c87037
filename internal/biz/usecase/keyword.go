package usecase

import (
	"strings"
)

// KeywordReply is one FAQ entry: Reply is sent when any keyword appears in the text
type KeywordReply struct {
	Reply    string   `yaml:"reply"`
	Keywords []string `yaml:"keywords"`
}

// KeywordUsecase answers frequently asked questions from an ordered table
type KeywordUsecase struct {
	table []KeywordReply
}

// NewKeywordUsecase creates a new keyword usecase. Keywords are lower-cased once here.
func NewKeywordUsecase(table []KeywordReply) *KeywordUsecase {
	normalized := make([]KeywordReply, 0, len(table))
	for _, entry := range table {
		keywords := make([]string, 0, len(entry.Keywords))
		for _, kw := range entry.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		normalized = append(normalized, KeywordReply{Reply: entry.Reply, Keywords: keywords})
	}
	return &KeywordUsecase{table: normalized}
}

// Match returns the reply of the first entry with a keyword contained in text
func (uc *KeywordUsecase) Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, entry := range uc.table {
		for _, kw := range entry.Keywords {
			if strings.Contains(lower, kw) {
				return entry.Reply, true
			}
		}
	}
	return "", false
}
