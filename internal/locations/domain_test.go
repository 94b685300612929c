package locations

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Monas, central Jakarta.
var site = Location{Latitude: -6.1754, Longitude: 106.8272, RadiusM: 200}

func TestDistanceM(t *testing.T) {
	require.Zero(t, site.DistanceM(site.Latitude, site.Longitude))

	// Istiqlal mosque, roughly 700m northeast of Monas.
	d := site.DistanceM(-6.1702, 106.8310)
	require.InDelta(t, 715, d, 60)

	// One degree of latitude is about 111km.
	d = site.DistanceM(site.Latitude+1, site.Longitude)
	require.InDelta(t, 111000, d, 500)
}

func TestContains(t *testing.T) {
	require.True(t, site.Contains(site.Latitude, site.Longitude))
	require.True(t, site.Contains(site.Latitude+0.001, site.Longitude)) // ~111m
	require.False(t, site.Contains(site.Latitude+0.01, site.Longitude)) // ~1.1km
}

func TestContainsWithoutRadiusAcceptsEverything(t *testing.T) {
	open := Location{Latitude: 0, Longitude: 0, RadiusM: 0}
	require.True(t, open.Contains(80, -170))

	open.RadiusM = -5
	require.True(t, open.Contains(80, -170))
}
