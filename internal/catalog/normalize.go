package catalog

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// formattedSuffix is the annotation Dataverse attaches to option-set, lookup
// and date columns carrying their display label.
const formattedSuffix = "@OData.Community.Display.V1.FormattedValue"

// Card is the frontend-safe shape of one upstream row. Optional fields are
// omitted rather than rendered empty.
type Card struct {
	ID          string `json:"id,omitempty"`
	SourceTable string `json:"table"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle,omitempty"`
	Body        string `json:"body,omitempty"`
	Details     string `json:"details,omitempty"`
	Tag         string `json:"tag,omitempty"`
	CreatedOn   string `json:"createdOn,omitempty"`
}

// Normalize maps row to a Card using only the fields t and d name. It reports
// false when no title can be derived and d has no placeholder title.
func Normalize(row map[string]any, t TableDescriptor, d Defaults) (Card, bool) {
	title := first(row, append([]string{t.TitleField}, d.TitleFallbacks...)...)
	if title == "" {
		if d.PlaceholderTitle == "" {
			return Card{}, false
		}
		title = d.PlaceholderTitle
	}

	c := Card{
		ID:          first(row, append([]string{t.IDField()}, d.IDFallbacks...)...),
		SourceTable: t.LogicalName,
		Title:       title,
		Subtitle:    first(row, t.SubtitleField),
		Body:        first(row, append([]string{t.BodyField}, d.BodyFallbacks...)...),
		Details:     first(row, t.DetailsField),
		Tag:         first(row, t.TagField),
		CreatedOn:   text(row[d.createdField()]),
	}
	if c.Tag == "" {
		c.Tag = clean(t.Tag)
	}
	return c, true
}

// NormalizeAll normalizes rows in order, skipping those without a title.
func NormalizeAll[R ~map[string]any](rows []R, t TableDescriptor, d Defaults) []Card {
	cards := make([]Card, 0, len(rows))
	for _, row := range rows {
		if c, ok := Normalize(row, t, d); ok {
			cards = append(cards, c)
		}
	}
	return cards
}

// SortNewestFirst orders cards by CreatedOn descending. CreatedOn values are
// ISO-8601 timestamps, so string order is time order.
func SortNewestFirst(cards []Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].CreatedOn > cards[j].CreatedOn
	})
}

// first returns the first non-empty value among fields, preferring a
// column's formatted label over its raw value.
func first(row map[string]any, fields ...string) string {
	for _, f := range fields {
		if f == "" {
			continue
		}
		if s := text(row[f+formattedSuffix]); s != "" {
			return s
		}
		if s := text(row[f]); s != "" {
			return s
		}
	}
	return ""
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return clean(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
