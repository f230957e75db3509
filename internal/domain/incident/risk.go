package incident

// RiskLevel grades crime activity by incident count
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// RiskForCount maps an incident count to a level: more than 100 is High,
// more than 30 is Medium
func RiskForCount(n int) RiskLevel {
	switch {
	case n > 100:
		return RiskHigh
	case n > 30:
		return RiskMedium
	default:
		return RiskLow
	}
}
