package orchestrator

import (
	"fmt"
	"strings"

	"github.com/yungbote/creatives-backend/internal/domain/campaign"
)

const (
	logoClause = ", incorporating the brand logo naturally and prominently in the composition"
	ctaClause  = ". Include the call-to-action text '%s' prominently displayed in bold, modern typography " +
		"at the bottom of the image with high contrast against the background for readability"
)

// EnhancePrompt folds brand colors, the logo instruction and the CTA into the
// product prompt.
func EnhancePrompt(b *campaign.Brief, p campaign.Product, withLogo bool) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(p.Prompt))
	if hex := strings.TrimSpace(b.Brand.PrimaryHex); hex != "" {
		sb.WriteString(", featuring brand color ")
		sb.WriteString(hex)
		if sec := strings.TrimSpace(b.Brand.SecondaryHex); sec != "" {
			sb.WriteString(" and accent color ")
			sb.WriteString(sec)
		}
	}
	if withLogo {
		sb.WriteString(logoClause)
	}
	if _, cta := b.PrimaryCTA(); cta != "" {
		fmt.Fprintf(&sb, ctaClause, cta)
	}
	return sb.String()
}
