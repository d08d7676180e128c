package core

import (
	"strconv"
	"strings"

	"phi.ai/agent-console/internal/events"
	"phi.ai/agent-console/internal/phiapi"
)

const (
	WelcomeMessage       = "Welcome to the Phi Agent Playground. How can I assist you?"
	PredictionFailedText = "⚠️ Prediction failed. Please try again."
	FallbackCommentary   = "Commentary is unavailable right now."
)

// FormatSummary renders a prediction with the fixed result template.
func FormatSummary(eventID events.EventID, p *phiapi.Prediction) string {
	var b strings.Builder
	b.WriteString("📊 **Prediction Result**\n")
	b.WriteString("**Event:** " + string(eventID) + "\n\n")
	b.WriteString("**Probability Up:** " + formatNumber(p.ProbabilityUp) + "\n")
	b.WriteString("**Confidence:** " + formatNumber(p.Confidence) + "\n")
	b.WriteString("**Risk Tier:** " + p.RiskTier + "\n\n")
	b.WriteString("💬 **Reasons:**")
	for _, reason := range p.ExplanationBullets {
		b.WriteString("\n• " + reason)
	}
	return b.String()
}

// CombineReply joins the summary and commentary into one assistant message.
func CombineReply(summary, commentary string) string {
	return summary + "\n\n🧠 **Agent Commentary:**\n" + commentary
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
