package analytics

// LatLng is a point on the map
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// cityCoordinates places each city of the dataset on the map. Cities
// missing here are left off map responses.
var cityCoordinates = map[string]LatLng{
	"Agra":          {27.1752554, 78.0098161},
	"Ahmedabad":     {23.0215374, 72.5800568},
	"Bangalore":     {12.9767936, 77.590082},
	"Bhopal":        {23.2584857, 77.401989},
	"Chennai":       {13.0836939, 80.270186},
	"Delhi":         {28.6517178, 77.2219388},
	"Faridabad":     {28.4031478, 77.3105561},
	"Ghaziabad":     {28.6711527, 77.4120356},
	"Hyderabad":     {17.360589, 78.4740613},
	"Indore":        {22.7203616, 75.8681996},
	"Jaipur":        {26.9154576, 75.8189817},
	"Kalyan":        {19.2396742, 73.1366482},
	"Kanpur":        {26.4609135, 80.3217588},
	"Kolkata":       {22.5726459, 88.3638953},
	"Lucknow":       {26.8381, 80.9346001},
	"Ludhiana":      {30.9090157, 75.851601},
	"Meerut":        {28.9963296, 77.7061915},
	"Mumbai":        {19.054999, 72.8692035},
	"Nagpur":        {21.1498134, 79.0820556},
	"Nashik":        {20.0112475, 73.7902364},
	"Patna":         {25.6093239, 85.1235252},
	"Pune":          {18.5213738, 73.8545071},
	"Rajkot":        {22.3053263, 70.8028377},
	"Srinagar":      {34.0747444, 74.8204443},
	"Surat":         {21.2094892, 72.8317058},
	"Thane":         {19.1943294, 72.9701779},
	"Varanasi":      {25.3356491, 83.0076292},
	"Vasai":         {19.3428238, 72.805441},
	"Visakhapatnam": {17.6935526, 83.2921297},
}

// Coordinates returns the map position of city
func Coordinates(city string) (LatLng, bool) {
	c, ok := cityCoordinates[city]
	return c, ok
}
