package analytics

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"crimewatch/internal/domain/incident"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

const (
	topSummary    = 10
	topRadar      = 5
	topAnalyze    = 3
	peakHourCount = 2
)

const noMatchSummary = "No crimes found matching your filter. Try relaxing your filters."

var genderLabels = map[string]string{
	"M": "Male",
	"F": "Female",
	"X": "Other",
}

var ageGroupLabels = map[string]string{
	"0-18":  "0-18 (Child/Teen)",
	"19-30": "19-30 (Young Adult)",
	"31-45": "31-45 (Adult)",
	"46-60": "46-60 (Middle-aged)",
	"60+":   "60+ (Senior)",
}

// Service answers descriptive questions over the historical dataset.
// Records are read-only after construction.
type Service struct {
	records []incident.Record
	log     *logger.Logger
}

// NewService creates an analytics service over records
func NewService(records []incident.Record, log *logger.Logger) *Service {
	log = log.With("service", "analytics")
	log.Infow("Analytics dataset ready", "records", len(records))
	return &Service{records: records, log: log}
}

// Len returns the number of loaded records
func (s *Service) Len() int { return len(s.records) }

// Options lists filter choices present in the dataset
func (s *Service) Options() *Options {
	cities := counter[string]{}
	crimes := counter[string]{}
	genders := counter[string]{}
	years := counter[int]{}
	for _, r := range s.records {
		if r.City != "" {
			cities.add(r.City)
		}
		if r.CrimeDescription != "" {
			crimes.add(r.CrimeDescription)
		}
		if r.VictimGender != "" {
			genders.add(r.VictimGender)
		}
		if y := r.Year(); y != 0 {
			years.add(y)
		}
	}

	out := &Options{
		Cities:     make([]Option, 0, len(cities)),
		CrimeTypes: crimes.sortedKeys(),
		AgeGroups:  make([]Option, 0, len(incident.AgeGroups())),
		Genders:    make([]Option, 0, len(genders)),
		Years:      years.sortedKeys(),
	}
	slices.Reverse(out.Years)
	for _, c := range cities.sortedKeys() {
		out.Cities = append(out.Cities, Option{Value: c, Label: c})
	}
	for _, g := range incident.AgeGroups() {
		out.AgeGroups = append(out.AgeGroups, Option{Value: g, Label: labelOr(ageGroupLabels, g)})
	}
	for _, g := range genders.sortedKeys() {
		out.Genders = append(out.Genders, Option{Value: g, Label: labelOr(genderLabels, g)})
	}
	return out
}

// Summary builds the dashboard overview
func (s *Service) Summary() *Summary {
	type dist struct {
		total   int
		genders counter[string]
		domains counter[string]
	}
	newDist := func() *dist { return &dist{genders: counter[string]{}, domains: counter[string]{}} }

	byCity := map[string]*dist{}
	byCrime := map[string]*dist{}
	byHour := map[int]*dist{}
	byGender := map[string]*dist{}
	cities := counter[string]{}
	crimes := counter[string]{}
	monthly := map[[2]int]int{}

	for _, r := range s.records {
		if r.City != "" {
			d := byCity[r.City]
			if d == nil {
				d = newDist()
				byCity[r.City] = d
			}
			d.total++
			cities.add(r.City)
			addNonEmpty(d.genders, r.VictimGender)
			addNonEmpty(d.domains, r.CrimeDomain)
		}
		if r.CrimeDescription != "" {
			d := byCrime[r.CrimeDescription]
			if d == nil {
				d = newDist()
				byCrime[r.CrimeDescription] = d
			}
			d.total++
			crimes.add(r.CrimeDescription)
			addNonEmpty(d.genders, r.VictimGender)
			addNonEmpty(d.domains, r.CrimeDomain)
		}
		if r.HourOfDay != nil {
			d := byHour[*r.HourOfDay]
			if d == nil {
				d = newDist()
				byHour[*r.HourOfDay] = d
			}
			d.total++
			addNonEmpty(d.domains, r.CrimeDomain)
		}
		if r.VictimGender != "" {
			d := byGender[r.VictimGender]
			if d == nil {
				d = newDist()
				byGender[r.VictimGender] = d
			}
			d.total++
			addNonEmpty(d.domains, r.CrimeDomain)
		}
		if r.OccurredAt != nil {
			monthly[[2]int{r.OccurredAt.Year(), int(r.OccurredAt.Month())}]++
		}
	}

	out := &Summary{
		CityStats:      []CityStat{},
		CrimeTypeStats: []CrimeTypeStat{},
		MonthlyTrends:  []MonthlyTrend{},
		HourlyStats:    []HourlyStat{},
		GenderStats:    []GenderStat{},
	}
	for _, c := range cities.top(topSummary) {
		d := byCity[c]
		out.CityStats = append(out.CityStats, CityStat{
			City:               c,
			TotalCrimes:        d.total,
			GenderDistribution: d.genders.asMap(),
			DomainDistribution: d.domains.asMap(),
		})
	}
	for _, c := range crimes.top(topSummary) {
		d := byCrime[c]
		out.CrimeTypeStats = append(out.CrimeTypeStats, CrimeTypeStat{
			CrimeType:          c,
			Count:              d.total,
			GenderDistribution: d.genders.asMap(),
			DomainDistribution: d.domains.asMap(),
		})
	}

	keys := make([][2]int, 0, len(monthly))
	for k := range monthly {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b [2]int) int {
		if a[0] != b[0] {
			return a[0] - b[0]
		}
		return a[1] - b[1]
	})
	for _, k := range keys {
		out.MonthlyTrends = append(out.MonthlyTrends, MonthlyTrend{
			Year:      k[0],
			Month:     k[1],
			MonthName: time.Month(k[1]).String(),
			Count:     monthly[k],
		})
	}

	hours := make([]int, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	slices.Sort(hours)
	for _, h := range hours {
		out.HourlyStats = append(out.HourlyStats, HourlyStat{
			Hour:               h,
			Count:              byHour[h].total,
			DomainDistribution: byHour[h].domains.asMap(),
		})
	}

	genders := make([]string, 0, len(byGender))
	for g := range byGender {
		genders = append(genders, g)
	}
	slices.Sort(genders)
	for _, g := range genders {
		out.GenderStats = append(out.GenderStats, GenderStat{
			Gender:             g,
			Count:              byGender[g].total,
			DomainDistribution: byGender[g].domains.asMap(),
		})
	}
	return out
}

// Heatmap counts records per weekday and hour, ordered by day then hour
func (s *Service) Heatmap() []HeatmapCell {
	cells := map[[2]int]int{}
	for _, r := range s.records {
		if r.OccurredAt == nil || r.HourOfDay == nil {
			continue
		}
		cells[[2]int{mondayIndex(*r.OccurredAt), *r.HourOfDay}]++
	}
	out := make([]HeatmapCell, 0, len(cells))
	for k, n := range cells {
		out = append(out, HeatmapCell{DayOfWeek: k[0], Hour: k[1], Count: n})
	}
	slices.SortFunc(out, func(a, b HeatmapCell) int {
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek - b.DayOfWeek
		}
		return a.Hour - b.Hour
	})
	return out
}

// Radar crosses the five busiest cities with the five most common crimes
func (s *Service) Radar() []RadarRow {
	cities := counter[string]{}
	crimes := counter[string]{}
	pairs := map[[2]string]int{}
	for _, r := range s.records {
		addNonEmpty(cities, r.City)
		addNonEmpty(crimes, r.CrimeDescription)
		pairs[[2]string{r.City, r.CrimeDescription}]++
	}

	topCrimes := crimes.top(topRadar)
	out := make([]RadarRow, 0, topRadar)
	for _, c := range cities.top(topRadar) {
		row := RadarRow{City: c, Crimes: make(map[string]int, len(topCrimes))}
		for _, crime := range topCrimes {
			row.Crimes[crime] = pairs[[2]string{c, crime}]
		}
		out = append(out, row)
	}
	return out
}

// Treemap counts domain/description pairs, largest first
func (s *Service) Treemap() []TreemapNode {
	nodes := map[[2]string]int{}
	for _, r := range s.records {
		if r.CrimeDomain == "" || r.CrimeDescription == "" {
			continue
		}
		nodes[[2]string{r.CrimeDomain, r.CrimeDescription}]++
	}
	out := make([]TreemapNode, 0, len(nodes))
	for k, n := range nodes {
		out = append(out, TreemapNode{Domain: k[0], Description: k[1], Count: n})
	}
	slices.SortFunc(out, func(a, b TreemapNode) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		if a.Domain != b.Domain {
			return strings.Compare(a.Domain, b.Domain)
		}
		return strings.Compare(a.Description, b.Description)
	})
	return out
}

// Trends returns yearly totals and the monthly breakdown of the latest year
func (s *Service) Trends() *Trends {
	years := counter[int]{}
	for _, r := range s.records {
		if y := r.Year(); y != 0 {
			years.add(y)
		}
	}
	out := &Trends{YearlyTrends: yearCounts(years), MonthlyTrends: []MonthlyTrend{}}
	if len(out.YearlyTrends) == 0 {
		return out
	}

	last := out.YearlyTrends[len(out.YearlyTrends)-1].Year
	months := counter[int]{}
	for _, r := range s.records {
		if r.Year() == last {
			months.add(int(r.OccurredAt.Month()))
		}
	}
	for _, m := range months.sortedKeys() {
		out.MonthlyTrends = append(out.MonthlyTrends, MonthlyTrend{
			Month:     m,
			MonthName: time.Month(m).String(),
			Count:     months[m],
		})
	}
	return out
}

// Analyze summarizes the records matching f in prose plus supporting details
func (s *Service) Analyze(f Filter) *Analysis {
	f.City = strings.TrimSpace(f.City)
	f.Gender = strings.TrimSpace(f.Gender)
	f.AgeGroup = strings.TrimSpace(f.AgeGroup)
	f.TimeOfDay = strings.TrimSpace(f.TimeOfDay)

	var (
		total    int
		crimes   = counter[string]{}
		hours    = counter[int]{}
		months   = counter[int]{}
		years    = counter[int]{}
		genders  = counter[string]{}
		ages     = counter[int]{}
		evening  bool
		youngAdt bool
	)
	for _, r := range s.records {
		if !f.matches(r) {
			continue
		}
		total++
		addNonEmpty(crimes, r.CrimeDescription)
		addNonEmpty(genders, r.VictimGender)
		if r.HourOfDay != nil {
			hours.add(*r.HourOfDay)
			if *r.HourOfDay >= 18 && *r.HourOfDay <= 23 {
				evening = true
			}
		}
		if r.OccurredAt != nil {
			months.add(int(r.OccurredAt.Month()))
			years.add(r.OccurredAt.Year())
		}
		if r.VictimAge != nil {
			ages.add(*r.VictimAge)
			if *r.VictimAge >= 19 && *r.VictimAge <= 30 {
				youngAdt = true
			}
		}
	}

	if total == 0 {
		return &Analysis{Summary: noMatchSummary}
	}

	d := &AnalysisDetails{
		Total:           total,
		RiskLevel:       string(incident.RiskForCount(total)),
		Trend:           yearCounts(years),
		Heatmap:         []HourCount{},
		PeakHours:       []HourCount{},
		TopCrimeTypes:   []TypeCount{},
		VictimProfile:   VictimProfile{MostCommonGender: "N/A", MostCommonAgeGroup: "N/A"},
		Recommendations: []string{},
	}
	for _, c := range crimes.top(topAnalyze) {
		d.TopCrimeTypes = append(d.TopCrimeTypes, TypeCount{Type: c, Count: crimes[c]})
	}
	for _, h := range hours.top(peakHourCount) {
		d.PeakHours = append(d.PeakHours, HourCount{Hour: h, Count: hours[h]})
	}
	for _, h := range hours.sortedKeys() {
		d.Heatmap = append(d.Heatmap, HourCount{Hour: h, Count: hours[h]})
	}
	if g, ok := genders.mode(); ok {
		d.VictimProfile.MostCommonGender = g
	}
	if a, ok := ages.mode(); ok {
		if band, ok := analysisAgeGroup(a); ok {
			d.VictimProfile.MostCommonAgeGroup = band
		}
	}

	if evening {
		d.Recommendations = append(d.Recommendations, "Increase patrols in the evening.")
	}
	if youngAdt {
		d.Recommendations = append(d.Recommendations, "Awareness programs for young adults.")
	}
	if total > 10 {
		d.Recommendations = append(d.Recommendations, "Consider community outreach in high-crime areas.")
	}

	return &Analysis{Summary: summarySentence(d, months), Details: d}
}

// MapIncidents returns geolocated records for year, optionally narrowed to
// crime descriptions containing crimeType (case-insensitive)
func (s *Service) MapIncidents(year int, crimeType string) ([]MapIncident, error) {
	if len(s.records) == 0 {
		return nil, errors.Wrap(errors.ErrUnavailable, "crime dataset is not loaded")
	}
	needle := strings.ToLower(strings.TrimSpace(crimeType))

	out := []MapIncident{}
	for _, r := range s.records {
		if r.Year() != year {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(r.CrimeDescription), needle) {
			continue
		}
		pos, ok := Coordinates(r.City)
		if !ok {
			continue
		}
		out = append(out, MapIncident{
			Latitude:         pos.Lat,
			Longitude:        pos.Lng,
			CrimeDescription: r.CrimeDescription,
			City:             r.City,
			OccurredAt:       r.OccurredAt,
		})
	}
	return out, nil
}

func (f Filter) matches(r incident.Record) bool {
	if f.City != "" && r.City != f.City {
		return false
	}
	if f.Gender != "" && r.VictimGender != f.Gender {
		return false
	}
	if f.AgeGroup != "" {
		if r.VictimAge == nil {
			return false
		}
		if band, _ := analysisAgeGroup(*r.VictimAge); band != f.AgeGroup {
			return false
		}
	}
	if f.Month != 0 && (r.OccurredAt == nil || int(r.OccurredAt.Month()) != f.Month) {
		return false
	}
	if f.Year != 0 && r.Year() != f.Year {
		return false
	}
	if f.TimeOfDay != "" {
		if r.HourOfDay == nil {
			return false
		}
		if band, _ := incident.TimeOfDay(*r.HourOfDay); band != f.TimeOfDay {
			return false
		}
	}
	return true
}

func summarySentence(d *AnalysisDetails, months counter[int]) string {
	crimes := make([]string, len(d.TopCrimeTypes))
	for i, c := range d.TopCrimeTypes {
		crimes[i] = fmt.Sprintf("%s (%d)", c.Type, c.Count)
	}
	hours := make([]string, len(d.PeakHours))
	for i, h := range d.PeakHours {
		hours[i] = fmt.Sprint(h.Hour)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total crimes matching your filter: %d. ", d.Total)
	fmt.Fprintf(&b, "Top crime types: %s. ", strings.Join(crimes, ", "))
	fmt.Fprintf(&b, "Peak hours: %s. ", strings.Join(hours, ", "))
	fmt.Fprintf(&b, "Risk level: %s.", d.RiskLevel)
	if m, ok := months.mode(); ok {
		fmt.Fprintf(&b, " Most crimes occurred in month %d.", m)
		if d.VictimProfile.MostCommonGender == "F" {
			b.WriteString(" Females are more frequently victims in this filter.")
		}
	}
	return b.String()
}

func yearCounts(years counter[int]) []YearCount {
	out := make([]YearCount, 0, len(years))
	for _, y := range years.sortedKeys() {
		out = append(out, YearCount{Year: y, Count: years[y]})
	}
	return out
}

// mondayIndex numbers weekdays from Monday = 0
func mondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func addNonEmpty(c counter[string], k string) {
	if k != "" {
		c.add(k)
	}
}

// analysisAgeGroup bands ages with inclusive upper bounds, so 18 is "0-18"
// here while the training features put it in "19-30". Ages above 60 have no
// upper cap.
func analysisAgeGroup(age int) (string, bool) {
	switch {
	case age < 0:
		return "", false
	case age <= 18:
		return "0-18", true
	case age <= 30:
		return "19-30", true
	case age <= 45:
		return "31-45", true
	case age <= 60:
		return "46-60", true
	default:
		return "60+", true
	}
}

func labelOr(labels map[string]string, v string) string {
	if l, ok := labels[v]; ok {
		return l
	}
	return v
}
