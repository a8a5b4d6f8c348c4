package geocode

import "strings"

// stateCentroids maps supported state codes to a fixed fallback
// coordinate near the state capital.
var stateCentroids = map[string]Coordinates{
	"IN": {Latitude: 39.7684, Longitude: -86.1581}, // Indianapolis
	"IL": {Latitude: 39.7817, Longitude: -89.6501}, // Springfield
	"MI": {Latitude: 42.7325, Longitude: -84.5555}, // Lansing
	"OH": {Latitude: 39.9612, Longitude: -82.9988}, // Columbus
	"KY": {Latitude: 38.1867, Longitude: -84.8753}, // Frankfort
	"WI": {Latitude: 43.0731, Longitude: -89.4012}, // Madison
}

// StateCentroid returns the fallback coordinate for a state code.
func StateCentroid(state string) (Coordinates, bool) {
	c, ok := stateCentroids[strings.ToUpper(strings.TrimSpace(state))]
	return c, ok
}
