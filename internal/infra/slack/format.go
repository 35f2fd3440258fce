package slack

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Message is the webhook payload: a plain-text fallback plus an optional
// rich block layout.
type Message struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks,omitempty"`
}

// Block is one Block Kit element.
type Block struct {
	Type string `json:"type"`
	Text *Text  `json:"text,omitempty"`
}

// Text is a Block Kit text object.
type Text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// BuildMessage lays out one notification batch. Rank improvement (numeric
// decrease) renders as 📈, worsening as 📉, uniformly.
func BuildMessage(profileLabel string, items []Item) Message {
	var fallback strings.Builder
	blocks := []Block{
		{Type: "header", Text: &Text{Type: "plain_text", Text: fmt.Sprintf("📦 %s: %d件の変化", profileLabel, len(items))}},
	}

	for i, item := range items {
		if i > 0 {
			fallback.WriteString("\n")
		}
		line := itemLine(item)
		fallback.WriteString(line)
		blocks = append(blocks,
			Block{Type: "divider"},
			Block{Type: "section", Text: &Text{Type: "mrkdwn", Text: itemSection(item)}},
		)
	}

	return Message{Text: fallback.String(), Blocks: blocks}
}

func itemLine(item Item) string {
	s := item.Snapshot
	return fmt.Sprintf("%s (%s): %s", s.Title, s.ASIN, strings.Join(item.Reasons, ", "))
}

func itemSection(item Item) string {
	s := item.Snapshot
	var b strings.Builder

	fmt.Fprintf(&b, "*<https://www.amazon.co.jp/dp/%s|%s>*\n", s.ASIN, escapeMrkdwn(s.Title))

	if price, ok := s.Price.Get(); ok {
		fmt.Fprintf(&b, "価格: ¥%s", formatYen(price))
		if pct, ok := priceChangePct(item.PrevPrice, price); ok {
			fmt.Fprintf(&b, " (%s%%)", pct)
		}
		b.WriteString("  ")
	}
	if rank, ok := s.Rank.Get(); ok {
		fmt.Fprintf(&b, "%s ランク: %s  ", rankEmoji(item.Reasons), formatYen(rank))
	}
	if sellers, ok := s.Sellers.Get(); ok {
		fmt.Fprintf(&b, "出品者: %d  ", sellers)
	}
	if sold30, ok := s.Sold30.Get(); ok {
		fmt.Fprintf(&b, "直近売上: %d", sold30)
	}
	fmt.Fprintf(&b, "\n_%s_", strings.Join(item.Reasons, ", "))

	return b.String()
}

// priceChangePct renders the signed percent change of the price against
// the previous observation, one decimal place.
func priceChangePct(prev, curr int64) (string, bool) {
	if prev <= 0 {
		return "", false
	}
	delta := decimal.NewFromInt(curr - prev)
	pct := delta.Mul(decimal.NewFromInt(100)).DivRound(decimal.NewFromInt(prev), 1)
	if pct.IsPositive() {
		return "+" + pct.String(), true
	}
	return pct.String(), true
}

// rankEmoji picks the direction marker from the rank reason's sign.
// A numeric decrease is an improvement.
func rankEmoji(reasons []string) string {
	for _, r := range reasons {
		if strings.HasPrefix(r, "rank -") {
			return "📈"
		}
		if strings.HasPrefix(r, "rank +") {
			return "📉"
		}
	}
	return "📊"
}

// formatYen groups digits by thousands.
func formatYen(v int64) string {
	s := fmt.Sprintf("%d", v)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteRune(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func escapeMrkdwn(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
