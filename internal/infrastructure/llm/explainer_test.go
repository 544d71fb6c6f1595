package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type staticNames map[string]string

func (s staticNames) ProductName(_ context.Context, id string) (string, error) {
	if name, ok := s[id]; ok {
		return name, nil
	}
	return "", e.ErrLookupMiss
}

func events(pairs ...string) []domain.InteractionEvent {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.InteractionEvent, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.InteractionEvent{
			UserID:    "u1",
			EventType: domain.EventType(pairs[i]),
			ProductID: pairs[i+1],
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

func TestParseExplanation(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		text     string
		evidence []string
	}{
		{
			name:     "plain json",
			in:       `{"explanation":"Fits your cart.","evidence":["cable"]}`,
			text:     "Fits your cart.",
			evidence: []string{"cable"},
		},
		{
			name:     "fenced json",
			in:       "```json\n{\"explanation\":\"Fenced.\",\"evidence\":[\"a\",\"b\"]}\n```",
			text:     "Fenced.",
			evidence: []string{"a", "b"},
		},
		{
			name:     "free text",
			in:       "  You will like it.  ",
			text:     "You will like it.",
			evidence: []string{},
		},
		{
			name:     "json without evidence",
			in:       `{"explanation":"Only text."}`,
			text:     "Only text.",
			evidence: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseExplanation(tt.in)
			assert.Equal(t, tt.text, got.Text)
			assert.Equal(t, tt.evidence, got.Evidence)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	req := &usecase.ExplainRequest{
		UserID:       "u1",
		Interactions: events("view", "P1", "view", "P2", "add_to_cart", "P3", "view", "P4", "purchase", "P5", "view", "P6"),
		Product: &domain.ProductInfo{
			ID:              "P00009",
			Name:            "USB-C Cable",
			Category:        "Electronics",
			ActualPrice:     decimal.RequireFromString("499"),
			DiscountedPrice: decimal.RequireFromString("299.5"),
		},
	}

	prompt := BuildPrompt(req)

	assert.Contains(t, prompt, "Recent actions: view product P6, purchase product P5, view product P4, add_to_cart product P3, view product P2")
	assert.NotContains(t, prompt, "product P1")
	assert.Contains(t, prompt, "Title: USB-C Cable")
	assert.Contains(t, prompt, "Category: Electronics")
	assert.Contains(t, prompt, "Brand: Unknown")
	assert.Contains(t, prompt, "Price: 299.50")
	assert.Contains(t, prompt, `{"explanation": "...", "evidence": ["...", "..."]}`)
}

func TestBuildPrompt_NoHistoryNoProduct(t *testing.T) {
	prompt := BuildPrompt(&usecase.ExplainRequest{UserID: "u1"})

	assert.Contains(t, prompt, "No recent user behavior found.")
	assert.Contains(t, prompt, "Title: Unknown Product")
	assert.Contains(t, prompt, "Price: N/A")
}

func TestGeminiExplainer(t *testing.T) {
	var gotPrompt string
	gen := generatorFunc(func(_ context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "```json\n{\"explanation\":\"Because of P00001.\",\"evidence\":[\"P00001\"]}\n```", nil
	})

	exp, err := NewGeminiExplainer(gen).Explain(context.Background(), &usecase.ExplainRequest{
		UserID:       "u1",
		Interactions: events("view", "P00001"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Because of P00001.", exp.Text)
	assert.Equal(t, []string{"P00001"}, exp.Evidence)
	assert.Contains(t, gotPrompt, "view product P00001")
}

func TestGeminiExplainer_Errors(t *testing.T) {
	failing := generatorFunc(func(context.Context, string) (string, error) {
		return "", e.ErrCollaboratorTimeout
	})
	_, err := NewGeminiExplainer(failing).Explain(context.Background(), &usecase.ExplainRequest{})
	assert.ErrorIs(t, err, e.ErrCollaboratorTimeout)

	empty := generatorFunc(func(context.Context, string) (string, error) {
		return "   ", nil
	})
	_, err = NewGeminiExplainer(empty).Explain(context.Background(), &usecase.ExplainRequest{})
	assert.ErrorIs(t, err, e.ErrCollaboratorError)
}

func TestOfflineExplainer(t *testing.T) {
	exp, err := NewOfflineExplainer().Explain(context.Background(), &usecase.ExplainRequest{
		Interactions: events("view", "P1", "add_to_cart", "P2"),
	})
	require.NoError(t, err)
	assert.Equal(t, "This product is recommended because you recently add_to_cart similar items.", exp.Text)
	assert.Equal(t, []string{"add_to_cart"}, exp.Evidence)

	exp, err = NewOfflineExplainer().Explain(context.Background(), &usecase.ExplainRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"view"}, exp.Evidence)
}

type stubExplainer struct {
	exp *usecase.Explanation
	err error
}

func (s stubExplainer) Explain(context.Context, *usecase.ExplainRequest) (*usecase.Explanation, error) {
	return s.exp, s.err
}

func TestNameRewriter(t *testing.T) {
	next := stubExplainer{exp: &usecase.Explanation{
		Text:     "You viewed P00001 and P00002, also P12.",
		Evidence: []string{"viewed P00001", "P99999"},
	}}
	names := staticNames{"P00001": "USB Cable", "P00002": "Charger"}

	exp, err := NewNameRewriter(next, names).Explain(context.Background(), &usecase.ExplainRequest{})
	require.NoError(t, err)
	assert.Equal(t, "You viewed USB Cable and Charger, also P12.", exp.Text)
	assert.Equal(t, []string{"viewed USB Cable", "P99999"}, exp.Evidence)

	assert.Equal(t, "You viewed P00001 and P00002, also P12.", next.exp.Text)
}

func TestNameRewriter_PropagatesError(t *testing.T) {
	next := stubExplainer{err: errors.New("boom")}
	_, err := NewNameRewriter(next, staticNames{}).Explain(context.Background(), &usecase.ExplainRequest{})
	assert.EqualError(t, err, "boom")
}
