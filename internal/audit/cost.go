package audit

import (
	"math"
	"strings"
)

// ModelPrice: цена в центах USD за миллион токенов.
type ModelPrice struct {
	InputCentsPerMillion  float64
	OutputCentsPerMillion float64
}

var modelPrices = map[string]ModelPrice{
	"gpt-4o":            {InputCentsPerMillion: 250, OutputCentsPerMillion: 1000},
	"gpt-4o-mini":       {InputCentsPerMillion: 15, OutputCentsPerMillion: 60},
	"gpt-4.1":           {InputCentsPerMillion: 200, OutputCentsPerMillion: 800},
	"gpt-4.1-mini":      {InputCentsPerMillion: 40, OutputCentsPerMillion: 160},
	"gpt-4-turbo":       {InputCentsPerMillion: 1000, OutputCentsPerMillion: 3000},
	"gpt-3.5-turbo":     {InputCentsPerMillion: 50, OutputCentsPerMillion: 150},
	"o3-mini":           {InputCentsPerMillion: 110, OutputCentsPerMillion: 440},
	"claude-opus-4":     {InputCentsPerMillion: 1500, OutputCentsPerMillion: 7500},
	"claude-sonnet-4":   {InputCentsPerMillion: 300, OutputCentsPerMillion: 1500},
	"claude-3-5-sonnet": {InputCentsPerMillion: 300, OutputCentsPerMillion: 1500},
	"claude-3-5-haiku":  {InputCentsPerMillion: 80, OutputCentsPerMillion: 400},
	"claude-3-haiku":    {InputCentsPerMillion: 25, OutputCentsPerMillion: 125},
}

// DefaultModelPrice применяется к моделям, которых нет в таблице (тариф уровня sonnet).
var DefaultModelPrice = ModelPrice{InputCentsPerMillion: 300, OutputCentsPerMillion: 1500}

// PriceFor ищет точное совпадение, затем самый длинный префикс
// ("gpt-4o-mini-2024-07-18" -> "gpt-4o-mini"), иначе DefaultModelPrice.
func PriceFor(model string) ModelPrice {
	model = strings.ToLower(strings.TrimSpace(model))
	if p, ok := modelPrices[model]; ok {
		return p
	}

	best := ""
	for name := range modelPrices {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return modelPrices[best]
	}
	return DefaultModelPrice
}

// EstimateCostCents: round(in/1e6 * inPrice + out/1e6 * outPrice).
// Отрицательные счетчики токенов считаются нулем.
func EstimateCostCents(model string, inputTokens, outputTokens int) int64 {
	p := PriceFor(model)
	in := float64(max(inputTokens, 0))
	out := float64(max(outputTokens, 0))

	cost := in/1e6*p.InputCentsPerMillion + out/1e6*p.OutputCentsPerMillion
	return int64(math.Round(cost))
}
