package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/inboxwrap/inboxwrap-backend/internal/models"
)

// DigestItem is one summary line in the digest email. Field names follow the
// Postmark template's placeholder casing.
type DigestItem struct {
	Title          string `json:"Title"`
	Content        string `json:"Content"`
	ActionRequired string `json:"ActionRequired,omitempty"`
	Category       string `json:"Category"`
	Link           string `json:"Link,omitempty"`
	Important      bool   `json:"Important"`
}

// DigestTemplateModel is the template payload for one digest email. Category
// groups that hold no items are nil so the template can omit their section.
type DigestTemplateModel struct {
	Subject    string `json:"Subject"`
	Date       string `json:"Date"`
	IntroText  string `json:"IntroText"`
	EmailCount int    `json:"EmailCount"`

	FinanceAndBills          []DigestItem `json:"FinanceAndBills,omitempty"`
	EventsAndReminders       []DigestItem `json:"EventsAndReminders,omitempty"`
	SecurityAndAccount       []DigestItem `json:"SecurityAndAccount,omitempty"`
	PersonalAndSocial        []DigestItem `json:"PersonalAndSocial,omitempty"`
	EntertainmentAndGaming   []DigestItem `json:"EntertainmentAndGaming,omitempty"`
	PromotionsAndNewsletters []DigestItem `json:"PromotionsAndNewsletters,omitempty"`
}

const digestIntroText = "Another day, another avalanche of emails. We read them so you don't have to. Here's the good stuff."

// BuildDigestModel assembles the digest payload for one connected account.
// Summaries are ordered by descending priority score, grouped into the fixed
// category set, and the promotions group is truncated to promotionsCap with
// a synthetic "+N more" placeholder appended.
func BuildDigestModel(summaries []models.Summary, promotionsCap int, now time.Time) DigestTemplateModel {
	ordered := make([]models.Summary, len(summaries))
	copy(ordered, summaries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Content.PriorityScore > ordered[j].Content.PriorityScore
	})

	groups := make(map[string][]DigestItem)
	for _, s := range ordered {
		item := DigestItem{
			Title:          s.Content.Title,
			Content:        s.Content.Content,
			ActionRequired: s.Content.ActionRequired,
			Category:       s.Content.Category,
			Link:           s.Metadata.Link,
			Important:      s.Content.Important,
		}
		groups[s.Content.Category] = append(groups[s.Content.Category], item)
	}

	return DigestTemplateModel{
		Subject:                  "Your InboxWrap Summary - " + now.Format("January 2"),
		Date:                     now.Format("January 2, 2006"),
		IntroText:                digestIntroText,
		EmailCount:               len(ordered),
		FinanceAndBills:          groups[models.CategoryFinanceAndBills],
		EventsAndReminders:       groups[models.CategoryEventsAndReminders],
		SecurityAndAccount:       groups[models.CategorySecurityAndAccount],
		PersonalAndSocial:        groups[models.CategoryPersonalAndSocial],
		EntertainmentAndGaming:   groups[models.CategoryEntertainmentAndGaming],
		PromotionsAndNewsletters: capWithTruncation(groups[models.CategoryPromotionsAndNewsletters], promotionsCap, "promotional"),
	}
}

// capWithTruncation keeps the first cap items (the list is already in
// priority order) and appends one placeholder entry naming how many were
// cut. A cap of zero or below disables truncation.
func capWithTruncation(items []DigestItem, limit int, emailType string) []DigestItem {
	if limit <= 0 || len(items) <= limit {
		return items
	}

	truncated := len(items) - limit
	visible := make([]DigestItem, limit, limit+1)
	copy(visible, items[:limit])

	return append(visible, DigestItem{
		Title:    fmt.Sprintf("+ %d more %s emails we didn't bother showing you.", truncated, emailType),
		Content:  "",
		Category: models.CategoryPromotionsAndNewsletters,
	})
}
