package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var alpha = TableDescriptor{Key: "alpha", LogicalName: "jdas_alpha", TitleField: "t", BodyField: "b"}

func TestNormalizeTrimsConfiguredFields(t *testing.T) {
	card, ok := Normalize(map[string]any{
		"t":         " Hello ",
		"b":         "World",
		"createdon": "2025-03-01T00:00:00Z",
	}, alpha, Defaults{})

	require.True(t, ok)
	require.Equal(t, Card{
		SourceTable: "jdas_alpha",
		Title:       "Hello",
		Body:        "World",
		CreatedOn:   "2025-03-01T00:00:00Z",
	}, card)
}

func TestNormalizeDropsRowsWithoutTitle(t *testing.T) {
	_, ok := Normalize(map[string]any{
		"t":         "   ",
		"b":         "\t\n",
		"jdas_name": " ",
		"createdon": "  ",
	}, alpha, Defaults{TitleFallbacks: []string{"jdas_name"}})
	require.False(t, ok)

	_, ok = Normalize(map[string]any{"t": nil}, alpha, Defaults{})
	require.False(t, ok)
}

func TestNormalizePlaceholderTitle(t *testing.T) {
	card, ok := Normalize(map[string]any{"b": "body only"}, alpha, Defaults{PlaceholderTitle: "Untitled Update"})
	require.True(t, ok)
	require.Equal(t, "Untitled Update", card.Title)
	require.Equal(t, "body only", card.Body)
}

func TestNormalizeFallbacks(t *testing.T) {
	d := Defaults{
		TitleFallbacks: []string{"jdas_name"},
		BodyFallbacks:  []string{"jdas_description"},
		IDFallbacks:    []string{"id"},
	}

	card, ok := Normalize(map[string]any{
		"jdas_name":        "Named row",
		"jdas_description": "described",
		"id":               "generic-id",
	}, alpha, d)
	require.True(t, ok)
	require.Equal(t, "Named row", card.Title)
	require.Equal(t, "described", card.Body)
	require.Equal(t, "generic-id", card.ID)

	card, ok = Normalize(map[string]any{
		"t":            "Primary",
		"jdas_alphaid": "conventional-id",
		"id":           "generic-id",
	}, alpha, d)
	require.True(t, ok)
	require.Equal(t, "Primary", card.Title)
	require.Equal(t, "conventional-id", card.ID)
}

func TestNormalizeReadsOnlyConfiguredFields(t *testing.T) {
	a, ok := Normalize(map[string]any{"t": "Same", "b": "body", "unmapped": "one"}, alpha, Defaults{})
	require.True(t, ok)
	b, ok := Normalize(map[string]any{"t": "Same", "b": "body", "unmapped": "two"}, alpha, Defaults{})
	require.True(t, ok)
	require.Equal(t, a, b)
}

func TestNormalizeOptionalFieldsAndTags(t *testing.T) {
	table := TableDescriptor{
		LogicalName:   "jdas_beta",
		TitleField:    "title",
		SubtitleField: "sub",
		DetailsField:  "details",
		TagField:      "category",
		Tag:           "Static",
	}

	card, ok := Normalize(map[string]any{
		"title":                      "Quarterly",
		"sub":                        "  ",
		"details":                    42.5,
		"category":                   3.0,
		"category" + formattedSuffix: "Housing",
	}, table, Defaults{})
	require.True(t, ok)
	require.Empty(t, card.Subtitle)
	require.Equal(t, "42.5", card.Details)
	require.Equal(t, "Housing", card.Tag)

	card, ok = Normalize(map[string]any{"title": "Quarterly"}, table, Defaults{})
	require.True(t, ok)
	require.Equal(t, "Static", card.Tag)
}

func TestNormalizeComposesUnicode(t *testing.T) {
	card, ok := Normalize(map[string]any{"t": "Cafe\u0301"}, alpha, Defaults{})
	require.True(t, ok)
	require.Equal(t, "Caf\u00e9", card.Title)
}

func TestNormalizeAllSkipsUntitled(t *testing.T) {
	type record map[string]any
	cards := NormalizeAll([]record{{"t": "one"}, {"t": ""}, {"t": "three"}}, alpha, Defaults{})
	require.Len(t, cards, 2)
	require.Equal(t, "three", cards[1].Title)
}

func TestSortNewestFirst(t *testing.T) {
	cards := []Card{
		{Title: "jan", CreatedOn: "2025-01-01T00:00:00Z"},
		{Title: "none"},
		{Title: "jun", CreatedOn: "2025-06-01T00:00:00Z"},
	}
	SortNewestFirst(cards)
	require.Equal(t, "jun", cards[0].Title)
	require.Equal(t, "jan", cards[1].Title)
	require.Equal(t, "none", cards[2].Title)
}
