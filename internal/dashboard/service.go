package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/jdasdash/internal/cache"
	"github.com/example/jdasdash/internal/catalog"
	"github.com/example/jdasdash/internal/dataverse"
)

var (
	ErrUnknownTable    = errors.New("unknown table")
	ErrUnknownIndustry = errors.New("unknown industry")
)

// Upstream is the part of the Dataverse client the dashboard reads through.
type Upstream interface {
	Configured() error
	Resolve(ctx context.Context, logicalName string) (string, error)
	CachedCollection(logicalName string) (string, bool)
	FetchAll(ctx context.Context, collection string, q dataverse.Query) ([]dataverse.Record, error)
}

type Options struct {
	DefaultTop int
	CacheTTL   time.Duration
	// FetchTimeout bounds a shared table fetch, which outlives the request
	// that started it.
	FetchTimeout time.Duration
}

// Service answers the dashboard's read operations. Row fetches go through a
// shared response cache; tables of one industry are fetched concurrently.
type Service struct {
	upstream Upstream
	registry *catalog.Registry
	rows     *cache.Cache[[]dataverse.Record]
	opts     Options
}

func New(upstream Upstream, registry *catalog.Registry, opts Options) *Service {
	if opts.DefaultTop <= 0 {
		opts.DefaultTop = dataverse.DefaultTop
	}
	return &Service{
		upstream: upstream,
		registry: registry,
		rows:     cache.New[[]dataverse.Record](opts.FetchTimeout),
		opts:     opts,
	}
}

func (s *Service) Registry() *catalog.Registry { return s.registry }

// Ready reports the configuration error that blocks upstream access, if any.
func (s *Service) Ready() error { return s.upstream.Configured() }

type TableInfo struct {
	Key                string `json:"key"`
	LogicalName        string `json:"logicalName"`
	ResolvedCollection string `json:"resolvedCollection,omitempty"`
}

// ListTables reports every configured table with its collection when it is
// already known. It never calls upstream.
func (s *Service) ListTables() []TableInfo {
	out := make([]TableInfo, 0, len(s.registry.Tables))
	for _, t := range s.registry.Tables {
		info := TableInfo{Key: t.Key, LogicalName: t.LogicalName, ResolvedCollection: t.PhysicalCollection}
		if info.ResolvedCollection == "" {
			info.ResolvedCollection, _ = s.upstream.CachedCollection(t.LogicalName)
		}
		out = append(out, info)
	}
	return out
}

type RawTable struct {
	Table      string             `json:"table"`
	Collection string             `json:"collection"`
	Count      int                `json:"count"`
	Rows       []dataverse.Record `json:"rows"`
}

// FetchRawTable returns rows unshaped and unprojected. An empty filter falls
// back to the table's configured filter.
func (s *Service) FetchRawTable(ctx context.Context, key string, top int, orderBy, filter string) (RawTable, error) {
	t, err := s.table(key)
	if err != nil {
		return RawTable{}, err
	}
	if filter == "" {
		filter = t.Filter
	}
	q := dataverse.Query{Top: s.top(top), OrderBy: s.registry.OrderBy(t, orderBy), Filter: filter}
	coll, rows, err := s.fetch(ctx, t, q)
	if err != nil {
		return RawTable{}, err
	}
	return RawTable{Table: t.LogicalName, Collection: coll, Count: len(rows), Rows: rows}, nil
}

type NormalizedTable struct {
	Table      string         `json:"table"`
	CountRaw   int            `json:"countRaw"`
	CountCards int            `json:"countCards"`
	Items      []catalog.Card `json:"items"`
}

func (s *Service) FetchNormalizedTable(ctx context.Context, key string, top int, orderBy string) (NormalizedTable, error) {
	t, err := s.table(key)
	if err != nil {
		return NormalizedTable{}, err
	}
	raw, cards, err := s.cards(ctx, t, top, orderBy)
	if err != nil {
		return NormalizedTable{}, err
	}
	return NormalizedTable{Table: t.LogicalName, CountRaw: raw, CountCards: len(cards), Items: cards}, nil
}

type Description struct {
	LogicalName        string           `json:"logicalName"`
	ResolvedCollection string           `json:"resolvedCollection"`
	SampleRow          dataverse.Record `json:"sampleRow"`
}

// DescribeResource resolves any logical name, configured or not, and returns
// one uncached sample row.
func (s *Service) DescribeResource(ctx context.Context, logicalName string) (Description, error) {
	coll := ""
	if t, ok := s.registry.TableByLogicalName(logicalName); ok {
		coll = t.PhysicalCollection
	}
	if coll == "" {
		var err error
		if coll, err = s.upstream.Resolve(ctx, logicalName); err != nil {
			return Description{}, err
		}
	}
	rows, err := s.upstream.FetchAll(ctx, coll, dataverse.Query{Top: 1})
	if err != nil {
		return Description{}, err
	}
	d := Description{LogicalName: logicalName, ResolvedCollection: coll}
	if len(rows) > 0 {
		d.SampleRow = rows[0]
	}
	return d, nil
}

func (s *Service) table(key string) (catalog.TableDescriptor, error) {
	t, ok := s.registry.Table(key)
	if !ok {
		return catalog.TableDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownTable, key)
	}
	return t, nil
}

func (s *Service) top(top int) int {
	switch {
	case top <= 0:
		return s.opts.DefaultTop
	case top > dataverse.MaxTop:
		return dataverse.MaxTop
	default:
		return top
	}
}

func (s *Service) collection(ctx context.Context, t catalog.TableDescriptor) (string, error) {
	if t.PhysicalCollection != "" {
		return t.PhysicalCollection, nil
	}
	return s.upstream.Resolve(ctx, t.LogicalName)
}

// fetch reads q for t through the response cache.
func (s *Service) fetch(ctx context.Context, t catalog.TableDescriptor, q dataverse.Query) (string, []dataverse.Record, error) {
	coll, err := s.collection(ctx, t)
	if err != nil {
		return "", nil, err
	}
	key := cache.Key(t.Key+"/"+coll, q.Top, q.OrderBy, q.Filter, len(q.Select) > 0)
	rows, err := s.rows.GetOrFetch(ctx, key, s.opts.CacheTTL, func(ctx context.Context) ([]dataverse.Record, error) {
		return s.upstream.FetchAll(ctx, coll, q)
	})
	return coll, rows, err
}

// cards fetches rows of t, projected when the registry asks for it, and
// normalizes them.
func (s *Service) cards(ctx context.Context, t catalog.TableDescriptor, top int, orderBy string) (int, []catalog.Card, error) {
	q := dataverse.Query{
		Top:     s.top(top),
		OrderBy: s.registry.OrderBy(t, orderBy),
		Filter:  t.Filter,
	}
	if s.registry.Defaults.Project {
		q.Select = t.Columns(s.registry.Defaults)
	}
	_, rows, err := s.fetch(ctx, t, q)
	if err != nil {
		return 0, nil, err
	}
	return len(rows), catalog.NormalizeAll(rows, t, s.registry.Defaults), nil
}
