package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	require.Len(t, r.Tables, 8)
	require.Len(t, r.Industries, 5)

	market, ok := r.Industry("market")
	require.True(t, ok)
	require.Equal(t, "Market Insight", market.Label)
	require.Equal(t, []string{"marketinsight", "markettrendinsight", "marketanalysis"}, market.Tables)

	table, ok := r.Table("housingmarketinsight")
	require.True(t, ok)
	require.Equal(t, "jdas_housingmarketinsight", table.LogicalName)
	require.Equal(t, "jdas_insighttheme", table.TitleField)

	byName, ok := r.TableByLogicalName("jdas_housingmarketinsight")
	require.True(t, ok)
	require.Equal(t, table, byName)

	_, ok = r.Table("nope")
	require.False(t, ok)

	require.Equal(t, []string{"jdas_description"}, r.Defaults.BodyFallbacks)
	require.False(t, r.Defaults.Project)
}

func TestDefaultRegistryBodyFallback(t *testing.T) {
	r := Default()
	table, _ := r.Table("marketoutlook")

	card, ok := Normalize(map[string]any{
		"jdas_category":    "Rates",
		"jdas_description": "Described only",
	}, table, r.Defaults)
	require.True(t, ok)
	require.Equal(t, "Described only", card.Body)

	card, ok = Normalize(map[string]any{
		"jdas_category":    "Rates",
		"jdas_keydrivers":  "Drivers",
		"jdas_description": "Described",
	}, table, r.Defaults)
	require.True(t, ok)
	require.Equal(t, "Drivers", card.Body)
}

func TestColumnsProjection(t *testing.T) {
	r := Default()
	table, _ := r.Table("marketinsight")
	require.Equal(t, []string{
		"jdas_marketinsightid",
		"jdas_marketcategory",
		"jdas_name",
		"jdas_markettrends",
		"jdas_description",
		"createdon",
	}, table.Columns(r.Defaults))
}

func TestOrderByPrecedence(t *testing.T) {
	r := Default()
	plain, _ := r.Table("marketinsight")
	require.Equal(t, "createdon desc", r.OrderBy(plain, ""))
	require.Equal(t, "modifiedon desc", r.OrderBy(plain, "modifiedon desc"))

	plain.OrderBy = "jdas_theme asc"
	require.Equal(t, "jdas_theme asc", r.OrderBy(plain, ""))
}

func TestParseRejectsInvalidRegistries(t *testing.T) {
	cases := map[string]string{
		"no tables":       `industries: []`,
		"missing title":   "tables:\n  - {key: a, logical_name: x}\n",
		"duplicate table": "tables:\n  - {key: a, logical_name: x, title_field: t}\n  - {key: a, logical_name: y, title_field: t}\n",
		"unknown member":  "tables:\n  - {key: a, logical_name: x, title_field: t}\nindustries:\n  - {key: i, tables: [b]}\n",
		"empty industry":  "tables:\n  - {key: a, logical_name: x, title_field: t}\nindustries:\n  - {key: i, tables: []}\n",
		"malformed yaml":  "tables: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaults:
  placeholder_title: Update
tables:
  - key: alpha
    logical_name: jdas_alpha
    physical_collection: jdas_alphas
    title_field: t
industries:
  - key: only
    label: Only
    tables: [alpha]
`), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Update", r.Defaults.PlaceholderTitle)
	table, ok := r.Table("alpha")
	require.True(t, ok)
	require.Equal(t, "jdas_alphas", table.PhysicalCollection)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	def, err := Load("")
	require.NoError(t, err)
	require.Len(t, def.Tables, 8)
}
