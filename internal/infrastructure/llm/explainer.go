// Package llm генерирует текстовые объяснения рекомендаций.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/e"
)

const recentActionsInPrompt = 5

var (
	productIDPattern = regexp.MustCompile(`P\d{5,}`)
	fenceOpen        = regexp.MustCompile("^```[a-zA-Z]*")
	fenceClose       = regexp.MustCompile("```$")
)

// Generator возвращает текст модели на prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NameResolver отдаёт отображаемое имя товара.
type NameResolver interface {
	ProductName(ctx context.Context, productID string) (string, error)
}

// GeminiExplainer строит prompt по истории пользователя и разбирает ответ модели.
type GeminiExplainer struct {
	gen Generator
}

func NewGeminiExplainer(gen Generator) *GeminiExplainer {
	return &GeminiExplainer{gen: gen}
}

func (g *GeminiExplainer) Explain(ctx context.Context, req *usecase.ExplainRequest) (*usecase.Explanation, error) {
	const op = "GeminiExplainer.Explain"

	text, err := g.gen.Generate(ctx, BuildPrompt(req))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	exp := ParseExplanation(text)
	if exp.Text == "" {
		return nil, e.Wrap(op, fmt.Errorf("%w: empty explanation", e.ErrCollaboratorError))
	}

	return exp, nil
}

// OfflineExplainer используется без ключа API: объяснение по последнему действию пользователя.
type OfflineExplainer struct{}

func NewOfflineExplainer() *OfflineExplainer {
	return &OfflineExplainer{}
}

func (OfflineExplainer) Explain(_ context.Context, req *usecase.ExplainRequest) (*usecase.Explanation, error) {
	action := string(domain.EventView)
	if n := len(req.Interactions); n > 0 {
		action = string(req.Interactions[n-1].EventType)
	}

	return &usecase.Explanation{
		Text:     fmt.Sprintf("This product is recommended because you recently %s similar items.", action),
		Evidence: []string{action},
	}, nil
}

// NameRewriter заменяет идентификаторы товаров в тексте объяснения их именами.
type NameRewriter struct {
	next  usecase.Explainer
	names NameResolver
}

func NewNameRewriter(next usecase.Explainer, names NameResolver) *NameRewriter {
	return &NameRewriter{
		next:  next,
		names: names,
	}
}

func (n *NameRewriter) Explain(ctx context.Context, req *usecase.ExplainRequest) (*usecase.Explanation, error) {
	exp, err := n.next.Explain(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &usecase.Explanation{
		Text:     n.rewrite(ctx, exp.Text),
		Evidence: make([]string, 0, len(exp.Evidence)),
	}
	for _, ev := range exp.Evidence {
		out.Evidence = append(out.Evidence, n.rewrite(ctx, ev))
	}

	return out, nil
}

// rewrite подставляет имя товара; при промахе остаётся исходный идентификатор.
func (n *NameRewriter) rewrite(ctx context.Context, s string) string {
	return productIDPattern.ReplaceAllStringFunc(s, func(id string) string {
		name, err := n.names.ProductName(ctx, id)
		if err != nil || name == "" {
			return id
		}
		return name
	})
}

// BuildPrompt собирает запрос к модели: пять последних действий и карточка товара.
func BuildPrompt(req *usecase.ExplainRequest) string {
	title, category, brand, price := domain.UnknownProductName, "N/A", "N/A", "N/A"
	if p := req.Product; p != nil {
		title = orDefault(p.Name, "Unknown")
		category = orDefault(p.Category, "Unknown")
		brand = orDefault(p.Brand, "Unknown")
		if pr := p.Price(); pr.IsPositive() {
			price = pr.StringFixed(2)
		}
	}

	var sb strings.Builder
	sb.WriteString("Generate a 2–3 sentence JSON explanation for why this product is recommended.\n\n")
	sb.WriteString("User behavior:\n")
	sb.WriteString(userSummary(req.Interactions))
	sb.WriteString("\n\nProduct:\n")
	fmt.Fprintf(&sb, "Title: %s\nCategory: %s\nBrand: %s\nPrice: %s\n\n", title, category, brand, price)
	sb.WriteString("Return JSON only:\n")
	sb.WriteString(`{"explanation": "...", "evidence": ["...", "..."]}`)

	return sb.String()
}

// userSummary перечисляет последние действия, начиная с самого свежего.
func userSummary(events []domain.InteractionEvent) string {
	if len(events) == 0 {
		return "No recent user behavior found."
	}

	actions := make([]string, 0, recentActionsInPrompt)
	for i := len(events) - 1; i >= 0 && len(actions) < recentActionsInPrompt; i-- {
		actions = append(actions, fmt.Sprintf("%s product %s", events[i].EventType, events[i].ProductID))
	}

	return "Recent actions: " + strings.Join(actions, ", ")
}

// ParseExplanation разбирает ответ модели. Обёртка ```json снимается;
// текст, не являющийся JSON, целиком становится объяснением.
func ParseExplanation(text string) *usecase.Explanation {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = fenceOpen.ReplaceAllString(text, "")
		text = fenceClose.ReplaceAllString(text, "")
		text = strings.TrimSpace(text)
	}

	var exp usecase.Explanation
	if err := json.Unmarshal([]byte(text), &exp); err != nil {
		return &usecase.Explanation{Text: text, Evidence: []string{}}
	}

	if exp.Evidence == nil {
		exp.Evidence = []string{}
	}
	return &exp
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
