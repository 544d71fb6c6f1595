package usecase

import (
	"cmp"
	"slices"

	"github.com/DRSN-tech/recommender/internal/domain"
)

// Merger сворачивает списки кандидатов в порядке view, cart, purchase, profile
// и оставляет для каждого товара кандидата с наибольшей оценкой.
type Merger struct {
	finalK int
}

func NewMerger(finalK int) *Merger {
	return &Merger{finalK: finalK}
}

type merged struct {
	candidate domain.Candidate
	firstSeen int
}

// Merge детерминирован: при равных оценках побеждает первый записавший, кроме
// кандидата от покупок, который забирает точную ничью. Итог отсортирован по
// убыванию оценки, ничьи по порядку первого появления товара.
func (m *Merger) Merge(lists ...[]domain.Candidate) []domain.Candidate {
	byID := make(map[string]*merged)
	seq := 0

	for _, list := range lists {
		for _, c := range list {
			cur, ok := byID[c.ProductID]
			if !ok {
				byID[c.ProductID] = &merged{candidate: c, firstSeen: seq}
				seq++
				continue
			}

			if c.Score > cur.candidate.Score ||
				(c.Score == cur.candidate.Score &&
					c.SourceEvent == domain.SourcePurchase &&
					cur.candidate.SourceEvent != domain.SourcePurchase) {
				cur.candidate = c
			}
		}
	}

	all := make([]*merged, 0, len(byID))
	for _, v := range byID {
		all = append(all, v)
	}

	slices.SortFunc(all, func(a, b *merged) int {
		if c := cmp.Compare(b.candidate.Score, a.candidate.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.firstSeen, b.firstSeen)
	})

	n := min(m.finalK, len(all))
	out := make([]domain.Candidate, n)
	for i := 0; i < n; i++ {
		out[i] = all[i].candidate
	}
	return out
}

// SeenIDs возвращает множество товаров из переданных списков.
func SeenIDs(lists ...[]domain.Candidate) map[string]struct{} {
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, c := range list {
			seen[c.ProductID] = struct{}{}
		}
	}
	return seen
}
