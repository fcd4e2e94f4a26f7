package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/nertexqq/giftwatch/internal/enrich"
	"github.com/nertexqq/giftwatch/internal/normalize"
)

// relativeDate renders t relative to now using the Russian labels from
// formatters.py:format_gift_message, falling back to an absolute
// DD.MM.YYYY date beyond 7 days.
func relativeDate(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "только что"
	case d < 2*time.Minute:
		return "1 минуту назад"
	case d < time.Hour:
		return fmt.Sprintf("%d минут назад", int(d.Minutes()))
	case d < 2*time.Hour:
		return "1 час назад"
	case d < 24*time.Hour:
		return fmt.Sprintf("%d часов назад", int(d.Hours()))
	case d < 48*time.Hour:
		return "1 день назад"
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%d дней назад", int(d.Hours()/24))
	default:
		return t.Format("02.01.2006")
	}
}

func displayName(mp string) string {
	switch mp {
	case "portals":
		return "Portals"
	case "tonnel":
		return "Tonnel"
	case "mrkt":
		return "MRKT"
	case "getgems":
		return "GetGems"
	default:
		return mp
	}
}

// FormatMessage builds the HTML message body for one Listing plus its
// enrichment data, per spec §6's fixed template. Missing optional fields
// remove their entire line rather than rendering an empty value.
func FormatMessage(e enrich.Enriched, now time.Time) string {
	l := e.Listing
	mpName := displayName(string(l.Marketplace))

	var b strings.Builder
	b.WriteString("✔️ ЛИСТИНГ\n")

	title := fmt.Sprintf("%s #%s", l.CollectionName, l.GiftNumber)
	if l.NFTLink != "" {
		title = fmt.Sprintf("<a href='%s'>%s</a>", l.NFTLink, title)
	}
	line := fmt.Sprintf("%s на ", title)
	if l.MarketplaceLink != "" {
		line += fmt.Sprintf("<a href='%s'>%s</a>", l.MarketplaceLink, mpName)
	} else {
		line += mpName
	}
	line += fmt.Sprintf(" за %s TON", l.PriceTON.StringFixed(2))
	b.WriteString(line + "\n")

	if l.ModelName != "" && l.ModelName != normalize.NotApplicable {
		b.WriteString(fmt.Sprintf("Модель: %s\n", l.ModelName))
	}
	if e.HasGiftFloor {
		b.WriteString(fmt.Sprintf("Флор гифта: %s TON\n", e.GiftFloor.StringFixed(2)))
	}
	if e.HasModelFloor {
		b.WriteString(fmt.Sprintf("Флор модели: %s TON\n", e.ModelFloor.StringFixed(2)))
	}

	if len(e.SalesHistory) > 0 {
		b.WriteString("<blockquote>\n")
		for _, s := range e.SalesHistory {
			entry := fmt.Sprintf("#%s", s.GiftNumber)
			if s.NFTURL != "" {
				entry = fmt.Sprintf("<a href='%s'>%s</a>", s.NFTURL, entry)
			}
			b.WriteString(fmt.Sprintf("%s за %s TON на %s — %s\n",
				entry, s.Price.StringFixed(2), displayName(string(s.Marketplace)), relativeDate(s.SoldAt, now)))
		}
		b.WriteString("</blockquote>\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// InlineKeyboardLabel returns the single inline-keyboard button's label,
// per spec §6.
func InlineKeyboardLabel(mp string) string {
	return fmt.Sprintf("🔗 Открыть на %s", displayName(mp))
}
