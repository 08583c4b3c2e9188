package openai

// pricePerMillionTokens holds {prompt, completion} USD rates per model, for
// estimating cost_usd since the chat/completions API reports token usage,
// not a dollar figure. Unlisted models cost 0 — a conservative placeholder
// rather than a guessed rate.
var pricePerMillionTokens = map[string][2]float64{
	"gpt-4o":      {2.50, 10.00},
	"gpt-4o-mini": {0.15, 0.60},
	"gpt-4-turbo": {10.00, 30.00},
	"o1":          {15.00, 60.00},
	"o1-mini":     {1.10, 4.40},
}

func estimateCostUSD(model string, promptTokens, completionTokens int) float64 {
	rates, ok := pricePerMillionTokens[model]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1_000_000*rates[0] + float64(completionTokens)/1_000_000*rates[1]
}
