package cloud

import "strings"

// price is USD per million tokens.
type price struct {
	Input  float64
	Output float64
}

var priceTable = map[string]price{
	"gemini-2.5-pro":        {Input: 1.25, Output: 10.00},
	"gemini-2.5-flash":      {Input: 0.30, Output: 2.50},
	"gemini-2.5-flash-lite": {Input: 0.10, Output: 0.40},
	"gemini-2.0-flash":      {Input: 0.10, Output: 0.40},
	"gemini-2.0-flash-lite": {Input: 0.075, Output: 0.30},
	"gemini-1.5-pro":        {Input: 1.25, Output: 5.00},
	"gemini-1.5-flash":      {Input: 0.075, Output: 0.30},
	"gemini-1.5-flash-8b":   {Input: 0.0375, Output: 0.15},
}

var defaultPrice = priceTable["gemini-2.0-flash"]

// EstimateCost prices a call by model. Versioned names such as
// "gemini-1.5-flash-002" use the longest matching table entry.
func EstimateCost(model string, promptTokens, completionTokens int) float64 {
	p := lookupPrice(model)
	return float64(promptTokens)/1e6*p.Input + float64(completionTokens)/1e6*p.Output
}

func lookupPrice(model string) price {
	m := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(model), "models/"))
	if p, ok := priceTable[m]; ok {
		return p
	}
	best := ""
	for name := range priceTable {
		if strings.HasPrefix(m, name) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return priceTable[best]
	}
	return defaultPrice
}
