package crosswalk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zcta-crosswalk/internal/refdata"
)

func TestDefault_Singleton(t *testing.T) {
	assert.Same(t, Default(), Default())
	assert.Equal(t, "embedded", Default().Source().Name())
}

func TestDefault_PackageFuncs(t *testing.T) {
	zcta, err := ZIPToZCTA("2134", 0)
	require.NoError(t, err)
	assert.Equal(t, "02134", zcta)

	zips, err := ZCTAToZIPs(zcta, 0)
	require.NoError(t, err)
	assert.Contains(t, zips, "02134")

	pt, err := Centroid(2134, 0)
	require.NoError(t, err)
	assert.True(t, pt.Valid())
	assert.NotEqual(t, refdata.Centroid{}, pt)
}

func TestDefault_UnmappedZIP(t *testing.T) {
	for _, v := range refdata.Vintages {
		_, err := ZIPToZCTA("99999", v)
		assert.ErrorIs(t, err, ErrNotFound, "vintage %s", v)

		_, err = Centroid("99999", v)
		assert.ErrorIs(t, err, ErrNotFound, "vintage %s", v)
	}
}

func TestDefault_MatchesExplicit2020(t *testing.T) {
	tables, err := Default().Tables(context.Background(), V2020)
	require.NoError(t, err)

	for zip := range tables.Crosswalk {
		implicit, err := ZIPToZCTA(zip, 0)
		require.NoError(t, err)
		explicit, err := ZIPToZCTA(zip, V2020)
		require.NoError(t, err)
		assert.Equal(t, explicit, implicit, zip)
	}
}

// Every forward result has a centroid, and forward and reverse agree.
func TestEmbedded_Properties(t *testing.T) {
	ctx := context.Background()
	c := Default()

	for _, v := range refdata.Vintages {
		tables, err := c.Tables(ctx, v)
		require.NoError(t, err)
		require.NotEmpty(t, tables.Crosswalk)

		for zip := range tables.Crosswalk {
			zcta, err := c.ZCTA(ctx, zip, v)
			require.NoError(t, err)
			assert.Contains(t, tables.Centroids, zcta, "%s %s", v, zip)

			zips, err := c.ZIPs(ctx, zcta, v)
			require.NoError(t, err)
			assert.Contains(t, zips, zip)
		}

		for zcta := range tables.Centroids {
			zips, err := c.ZIPs(ctx, zcta, v)
			require.NoError(t, err)
			for _, zip := range zips {
				got, err := c.ZCTA(ctx, zip, v)
				require.NoError(t, err)
				assert.Equal(t, zcta, got)
			}
		}
	}
}

func TestDefault_VintagesDiffer(t *testing.T) {
	z2010, err := ZIPToZCTA("02163", V2010)
	require.NoError(t, err)
	z2020, err := ZIPToZCTA("02163", V2020)
	require.NoError(t, err)
	assert.Equal(t, "02134", z2010)
	assert.Equal(t, "02138", z2020)

	implicit, err := ZIPToZCTA("02163", 0)
	require.NoError(t, err)
	assert.Equal(t, z2020, implicit)
}

func TestDefault_SeveralZIPsPerZCTA(t *testing.T) {
	zips, err := ZCTAToZIPs("10001", V2020)
	require.NoError(t, err)
	assert.Equal(t, []string{"10001", "10119", "10120"}, zips)

	zips, err = ZCTAToZIPs("10001", V2010)
	require.NoError(t, err)
	assert.Equal(t, []string{"10001", "10118", "10119", "10120"}, zips)

	// 10118 has a 2010 centroid but every 2010 ZIP maps elsewhere.
	zips, err = ZCTAToZIPs("10118", V2010)
	require.NoError(t, err)
	assert.NotNil(t, zips)
	assert.Empty(t, zips)
}
