package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Rrens/finance-chat/internal/domain"
)

// FinanceKeywords are matched as substrings of the lower-cased message
var FinanceKeywords = []string{
	"portfolio",
	"p&l",
	"profit",
	"loss",
	"risk",
	"exposure",
	"holdings",
	"stocks",
	"bonds",
	"sectors",
	"returns",
	"performance",
	"volatility",
	"sharpe",
	"drawdown",
	"allocation",
	"diversification",
	"investing",
	"investment",
	"trading",
	"market",
	"equity",
	"dividend",
}

// shortQueryWords is the word count below which one keyword is enough
const shortQueryWords = 10

var generalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(hi|hello|hey|greetings)`),
	regexp.MustCompile(`(?i)^(help|how do i|what is|tell me about)`),
	regexp.MustCompile(`(?i)^(thanks|thank you)`),
}

// classifyByHeuristics returns nil when the message is ambiguous
func classifyByHeuristics(content string) *domain.ClassificationResult {
	lower := strings.ToLower(content)
	words := strings.Fields(lower)

	var matches []string
	for _, kw := range FinanceKeywords {
		if strings.Contains(lower, kw) {
			matches = append(matches, kw)
		}
	}

	if len(matches) >= 2 {
		return &domain.ClassificationResult{
			AgentType:  domain.AgentFinance,
			Confidence: 0.95,
			Reasoning:  "Heuristic match: Multiple finance keywords: " + strings.Join(matches, ", "),
		}
	}

	if len(matches) == 1 && len(words) < shortQueryWords {
		return &domain.ClassificationResult{
			AgentType:  domain.AgentFinance,
			Confidence: 0.85,
			Reasoning:  fmt.Sprintf("Heuristic match: Single finance keyword in short query: %s", matches[0]),
		}
	}

	for _, p := range generalPatterns {
		if p.MatchString(content) {
			return &domain.ClassificationResult{
				AgentType:  domain.AgentGeneral,
				Confidence: 0.9,
				Reasoning:  "Heuristic match: General greeting or help request",
			}
		}
	}

	return nil
}
