package domain

// Source — сигнал, породивший кандидата
type Source string

const (
	SourceView      Source = Source(EventView)
	SourceAddToCart Source = Source(EventAddToCart)
	SourcePurchase  Source = Source(EventPurchase)
	SourceProfile   Source = "profile"
)

// ScoredID — результат поиска по индексу
type ScoredID struct {
	ProductID string
	Score     float64
}

// Candidate — товар-кандидат от одного генератора
type Candidate struct {
	ProductID   string
	Score       float64
	SourceEvent Source
}

func NewCandidate(productID string, score float64, source Source) Candidate {
	return Candidate{
		ProductID:   productID,
		Score:       score,
		SourceEvent: source,
	}
}

// Recommendation — итоговая рекомендация с объяснением
type Recommendation struct {
	Candidate
	ProductName string
	Explanation string
	Evidence    []string
}
