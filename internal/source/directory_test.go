package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectorySourceParsesPayload(t *testing.T) {
	t.Parallel()

	payload := `{"centers":[
		{"name":"Eastside Community Health","type":"Community Health Center",
		 "address":"500 Oak Ave","city":"Evansville","state":"IN","zip":"47711",
		 "phone":"(812) 555-0200","website":"https://eastside.example.org",
		 "latitude":37.9716,"longitude":-87.5711,
		 "services":["Primary Care"],"languages":["English"],
		 "hours":{"monday":"8:00 AM - 4:00 PM"}},
		{"name":"Northside Clinic","address":"12 Birch Ln","city":"Gary","state":"IN","zip":"46402",
		 "latitude":"41.5934","longitude":"-87.3464"}
	]}`

	f := &fakeFetcher{body: []byte(payload)}
	src := NewDirectorySource(f, "https://centers.test")

	got, err := src.Facilities(context.Background(), "IN")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Eastside Community Health", got[0].Name)
	assert.InDelta(t, 37.9716, got[0].Latitude, 1e-6)
	assert.InDelta(t, -87.5711, got[0].Longitude, 1e-6)
	assert.Equal(t, []string{"Primary Care"}, got[0].Services)
	assert.Equal(t, "8:00 AM - 4:00 PM", got[0].OperatingHours["monday"])

	// String-typed coordinates still parse; blank fields take defaults.
	assert.InDelta(t, 41.5934, got[1].Latitude, 1e-6)
	assert.InDelta(t, -87.3464, got[1].Longitude, 1e-6)
	assert.Equal(t, "Health Center", got[1].Type)
	assert.Equal(t, directoryServices, got[1].Services)
	assert.Equal(t, directoryHours, got[1].OperatingHours)
}

func TestDirectorySourceMalformedJSON(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{body: []byte("<html>not json</html>")}
	src := NewDirectorySource(f, "https://centers.test")

	got, err := src.Facilities(context.Background(), "IN")
	require.Error(t, err)
	assert.Nil(t, got)
}

func TestDirectorySourceBuildsWidgetURL(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{body: []byte(`{"centers":[]}`)}
	src := NewDirectorySource(f, "https://centers.test")

	_, err := src.Facilities(context.Background(), "IL")
	require.NoError(t, err)

	require.Len(t, f.urls, 1)
	assert.Equal(t, "https://centers.test/widget/api/state=IL", f.urls[0])
}

func TestDirectorySourceUnparseableCoordinateIsZero(t *testing.T) {
	t.Parallel()

	payload := `{"centers":[{"name":"Fogged Clinic","address":"9 Mist Way","latitude":"n/a","longitude":""}]}`

	f := &fakeFetcher{body: []byte(payload)}
	src := NewDirectorySource(f, "")

	got, err := src.Facilities(context.Background(), "OH")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Zero(t, got[0].Latitude)
	assert.Zero(t, got[0].Longitude)
}
