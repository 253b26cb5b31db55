package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// EventOpportunity is the event type used for detected-opportunity alerts.
const EventOpportunity = "opportunity"

// AlertOpportunity formats a detected opportunity and fans it out to every
// configured sender. Delivery failures are logged by the dispatcher and never
// propagated back to the scan path.
func (n *Notifier) AlertOpportunity(ctx context.Context, opp domain.ArbitrageOpportunity) {
	title := fmt.Sprintf("%s %s %.2f%%", opp.Symbol, directionLabel(opp.Recommendation), opp.DeviationPct*100)
	if err := n.Notify(ctx, EventOpportunity, title, formatOpportunity(opp)); err != nil {
		n.logger.WarnContext(ctx, "opportunity alert delivery incomplete",
			"id", opp.ID, "error", err)
	}
}

func directionLabel(r domain.Recommendation) string {
	if r == domain.RecommendationFavorLocal {
		return "local underpriced"
	}
	return "local overpriced"
}

// formatOpportunity renders the alert body as plain text so it survives every
// channel's markdown dialect unchanged.
func formatOpportunity(opp domain.ArbitrageOpportunity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Local price: %.2f ARS (%s)\n", opp.LocalPrice, opp.LocalSource)
	fmt.Fprintf(&b, "Theoretical: %.2f ARS\n", opp.UnderlyingPriceLocal)
	fmt.Fprintf(&b, "Underlying: %.2f USD (%s), FX %.2f (%s), ratio %g:1\n",
		opp.UnderlyingPrice, opp.UnderlyingSource, opp.FXRate, opp.FXSource, opp.ConversionRatio)
	fmt.Fprintf(&b, "Deviation: %+.2f%%  Recommendation: %s\n", opp.DeviationPct*100, opp.Recommendation)
	fmt.Fprintf(&b, "Confidence: %s", opp.Confidence)
	if opp.LocalIsTheoretical {
		b.WriteString(" (no direct local quote)")
	}
	return b.String()
}
