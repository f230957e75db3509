package analytics

import (
	"encoding/json"
	"time"
)

// Option is a value/label pair for form selects
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Options enumerates the filter choices offered to clients
type Options struct {
	Cities     []Option `json:"cities"`
	CrimeTypes []string `json:"crimeTypes"`
	AgeGroups  []Option `json:"ageGroups"`
	Genders    []Option `json:"genders"`
	Years      []int    `json:"years"`
}

// CityStat aggregates one city
type CityStat struct {
	City               string         `json:"city"`
	TotalCrimes        int            `json:"total_crimes"`
	GenderDistribution map[string]int `json:"gender_distribution"`
	DomainDistribution map[string]int `json:"domain_distribution"`
}

// CrimeTypeStat aggregates one crime description
type CrimeTypeStat struct {
	CrimeType          string         `json:"crimeType"`
	Count              int            `json:"count"`
	GenderDistribution map[string]int `json:"gender_distribution"`
	DomainDistribution map[string]int `json:"domain_distribution"`
}

// MonthlyTrend counts one calendar month
type MonthlyTrend struct {
	Year      int    `json:"Year,omitempty"`
	Month     int    `json:"Month"`
	MonthName string `json:"MonthName"`
	Count     int    `json:"count"`
}

// HourlyStat counts one hour of day
type HourlyStat struct {
	Hour               int            `json:"hour"`
	Count              int            `json:"count"`
	DomainDistribution map[string]int `json:"domain_distribution"`
}

// GenderStat counts one victim gender
type GenderStat struct {
	Gender             string         `json:"gender"`
	Count              int            `json:"count"`
	DomainDistribution map[string]int `json:"domain_distribution"`
}

// Summary is the dashboard overview
type Summary struct {
	CityStats      []CityStat      `json:"city_stats"`
	CrimeTypeStats []CrimeTypeStat `json:"crime_type_stats"`
	MonthlyTrends  []MonthlyTrend  `json:"monthly_trends"`
	HourlyStats    []HourlyStat    `json:"hourly_stats"`
	GenderStats    []GenderStat    `json:"gender_stats"`
}

// HeatmapCell counts a weekday/hour pair. DayOfWeek is 0 for Monday.
type HeatmapCell struct {
	DayOfWeek int `json:"DayOfWeek"`
	Hour      int `json:"Hour"`
	Count     int `json:"count"`
}

// RadarRow holds per-crime counts for one city
type RadarRow struct {
	City   string         `json:"City"`
	Crimes map[string]int `json:"crimes"`
}

// TreemapNode counts a domain/description pair
type TreemapNode struct {
	Domain      string `json:"Crime Domain"`
	Description string `json:"Crime Description"`
	Count       int    `json:"count"`
}

// YearCount counts one year
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// Trends holds yearly totals and the monthly breakdown of the latest year
type Trends struct {
	YearlyTrends  []YearCount    `json:"yearly_trends"`
	MonthlyTrends []MonthlyTrend `json:"monthly_trends"`
}

// Filter narrows Analyze. Zero values leave a dimension unfiltered.
type Filter struct {
	City      string `json:"city"`
	Gender    string `json:"gender"`
	AgeGroup  string `json:"age_group"`
	Month     int    `json:"month"`
	Year      int    `json:"year"`
	TimeOfDay string `json:"time_of_day"`
}

// TypeCount counts one crime description
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// HourCount counts one hour of day
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// VictimProfile describes the typical victim in a filtered set
type VictimProfile struct {
	MostCommonGender   string `json:"most_common_gender"`
	MostCommonAgeGroup string `json:"most_common_age_group"`
}

// AnalysisDetails backs the analysis summary sentence
type AnalysisDetails struct {
	Total           int           `json:"total"`
	RiskLevel       string        `json:"risk_level"`
	Trend           []YearCount   `json:"trend"`
	Heatmap         []HourCount   `json:"heatmap"`
	PeakHours       []HourCount   `json:"peak_hours"`
	TopCrimeTypes   []TypeCount   `json:"top_crime_types"`
	VictimProfile   VictimProfile `json:"victim_profile"`
	Recommendations []string      `json:"recommendations"`
}

// Analysis is the result of Analyze. Details is nil when nothing matched.
type Analysis struct {
	Summary string           `json:"summary"`
	Details *AnalysisDetails `json:"details"`
}

// MapIncident is one geolocated record
type MapIncident struct {
	Latitude         float64    `json:"Latitude"`
	Longitude        float64    `json:"Longitude"`
	CrimeDescription string     `json:"Crime Description"`
	City             string     `json:"City"`
	OccurredAt       *time.Time `json:"Date of Occurrence"`
}

// MarshalJSON flattens crime counts next to the city key, the shape chart
// libraries expect for radar series.
func (r RadarRow) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(r.Crimes)+1)
	for k, v := range r.Crimes {
		flat[k] = v
	}
	flat["City"] = r.City
	return json.Marshal(flat)
}
