package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/example/jdasdash/internal/catalog"
	"github.com/example/jdasdash/internal/dataverse"
)

// TableStatus records how one member table fared during aggregation.
type TableStatus struct {
	Table       string `json:"table"`
	LogicalName string `json:"logicalName"`
	OK          bool   `json:"ok"`
	Rows        int    `json:"rows"`
	Count       int    `json:"count"`
	Error       string `json:"error,omitempty"`
}

type IndustryBlock struct {
	Key    string         `json:"key"`
	Label  string         `json:"label"`
	Accent string         `json:"accent,omitempty"`
	Items  []catalog.Card `json:"items"`
	Tables []TableStatus  `json:"tables"`
}

type Updates struct {
	Blocks map[string]IndustryBlock `json:"blocks"`
}

// FetchIndustryUpdates aggregates every configured industry concurrently.
func (s *Service) FetchIndustryUpdates(ctx context.Context, top int, orderBy string) (Updates, error) {
	blocks := make([]IndustryBlock, len(s.registry.Industries))

	g, ctx := errgroup.WithContext(ctx)
	for i, ind := range s.registry.Industries {
		g.Go(func() error {
			b, err := s.Aggregate(ctx, ind, top, orderBy)
			if err != nil {
				return err
			}
			blocks[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Updates{}, err
	}

	out := Updates{Blocks: make(map[string]IndustryBlock, len(blocks))}
	for _, b := range blocks {
		out.Blocks[b.Key] = b
	}
	return out, nil
}

func (s *Service) FetchSingleIndustry(ctx context.Context, key string, top int, orderBy string) (IndustryBlock, error) {
	ind, ok := s.registry.Industry(key)
	if !ok {
		return IndustryBlock{}, fmt.Errorf("%w: %s", ErrUnknownIndustry, key)
	}
	return s.Aggregate(ctx, ind, top, orderBy)
}

// Aggregate fetches and normalizes every member table of ind concurrently and
// merges the cards newest first. A failing table is reported in its status and
// never fails the block; only a configuration error, which stops every fetch,
// is returned.
func (s *Service) Aggregate(ctx context.Context, ind catalog.IndustryDescriptor, top int, orderBy string) (IndustryBlock, error) {
	if err := s.upstream.Configured(); err != nil {
		return IndustryBlock{}, err
	}

	statuses := make([]TableStatus, len(ind.Tables))
	perTable := make([][]catalog.Card, len(ind.Tables))

	var g errgroup.Group
	for i, key := range ind.Tables {
		g.Go(func() error {
			statuses[i] = TableStatus{Table: key}
			t, err := s.table(key)
			if err != nil {
				statuses[i].Error = err.Error()
				return nil
			}
			statuses[i].LogicalName = t.LogicalName

			rows, cards, err := s.cards(ctx, t, top, orderBy)
			if err != nil {
				if errors.Is(err, dataverse.ErrConfiguration) {
					return err
				}
				slog.Warn("industry table failed", "industry", ind.Key, "table", key, "error", err)
				statuses[i].Error = err.Error()
				return nil
			}
			statuses[i].OK = true
			statuses[i].Rows = rows
			statuses[i].Count = len(cards)
			perTable[i] = cards
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return IndustryBlock{}, err
	}

	items := []catalog.Card{}
	for _, cards := range perTable {
		items = append(items, cards...)
	}
	catalog.SortNewestFirst(items)

	return IndustryBlock{
		Key:    ind.Key,
		Label:  ind.Label,
		Accent: ind.Accent,
		Items:  items,
		Tables: statuses,
	}, nil
}
