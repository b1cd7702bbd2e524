package suggest

import "encoding/json"

// Fallback is the deterministic suggestion list used whenever the external
// collaborator is unavailable or returns something unusable. The first entry
// is a zero-change control; the rest are generic styled alternatives.
func Fallback(elementType string) []Suggestion {
	if elementType == "" {
		elementType = "element"
	}
	return []Suggestion{
		{
			VariantName: "Control",
			Description: "Current " + elementType + " unchanged",
			Changes:     json.RawMessage(`{}`),
		},
		{
			VariantName: "High Contrast",
			Description: "Bolder " + elementType + " with a high-contrast accent color",
			Changes:     json.RawMessage(`{"style":{"fontWeight":"bold","color":"#ffffff","backgroundColor":"#d9480f"}}`),
		},
		{
			VariantName: "Action Oriented",
			Description: "Larger " + elementType + " with action-focused emphasis",
			Changes:     json.RawMessage(`{"style":{"fontSize":"1.25em","textTransform":"uppercase","letterSpacing":"0.05em"}}`),
		},
	}
}
