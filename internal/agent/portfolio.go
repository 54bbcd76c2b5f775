package agent

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Rrens/finance-chat/internal/kite"
)

// RenderHoldings formats holdings as a markdown table followed by totals
func RenderHoldings(brokerUserID string, holdings []kite.Holding) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Zerodha Portfolio Data (%s)\n\n", brokerUserID)
	fmt.Fprintf(&b, "### Holdings (%d stocks)\n\n", len(holdings))
	b.WriteString("| Symbol | Exchange | Qty | Avg Price | LTP | Day Change | P&L |\n")
	b.WriteString("|--------|----------|-----|-----------|-----|------------|-----|\n")

	totalValue := decimal.Zero
	totalPnL := decimal.Zero
	for _, h := range holdings {
		totalValue = totalValue.Add(h.LastPrice.Mul(decimal.NewFromInt(h.Quantity)))
		totalPnL = totalPnL.Add(h.PnL)

		fmt.Fprintf(&b, "| %s | %s | %d | ₹%s | ₹%s | %s (%s%%) | %s |\n",
			h.TradingSymbol,
			h.Exchange,
			h.Quantity,
			h.AveragePrice.StringFixed(2),
			h.LastPrice.StringFixed(2),
			signed(h.DayChange),
			h.DayChangePercentage.StringFixed(2),
			signedRupees(h.PnL),
		)
	}

	fmt.Fprintf(&b, "\n**Total Portfolio Value:** ₹%s\n", formatINR(totalValue))
	sign := "+"
	if totalPnL.IsNegative() {
		sign = "-"
	}
	fmt.Fprintf(&b, "**Total P&L:** %s₹%s\n", sign, formatINR(totalPnL.Abs()))

	return b.String()
}

func signed(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}

func signedRupees(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-₹" + d.Abs().StringFixed(2)
	}
	return "+₹" + d.StringFixed(2)
}

// formatINR groups digits the Indian way: 12,34,567.89
func formatINR(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var grouped string
	if len(intPart) <= 3 {
		grouped = intPart
	} else {
		head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		grouped = strings.Join(parts, ",") + "," + tail
	}

	if d.IsNegative() {
		grouped = "-" + grouped
	}
	return grouped + "." + frac
}
