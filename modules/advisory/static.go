package advisory

import "strings"

// StaticInfo is curated guidance for a disease.
type StaticInfo struct {
	Description      string   `json:"description"`
	Treatment        []string `json:"treatment"`
	Prevention       []string `json:"prevention"`
	OrganicSolutions []string `json:"organic_solutions"`
	Severity         string   `json:"severity"`
	SpreadRate       string   `json:"spread_rate"`
}

// staticTable is keyed by the class-name fragment it applies to.
var staticTable = []struct {
	key  string
	info StaticInfo
}{
	{
		key: "Apple___Apple_scab",
		info: StaticInfo{
			Description: "Fungal disease causing dark, scabby lesions on leaves and fruit.",
			Treatment: []string{
				"Remove and destroy infected leaves and fruit.",
				"Apply fungicides containing captan or myclobutanil.",
				"Prune trees to improve air circulation.",
			},
			Prevention: []string{
				"Plant resistant varieties.",
				"Avoid overhead watering.",
				"Remove fallen leaves in autumn.",
			},
			OrganicSolutions: []string{
				"Use neem oil spray.",
				"Apply copper-based fungicides.",
			},
			Severity:   "moderate",
			SpreadRate: "high in wet conditions",
		},
	},
}

// DefaultInfo is returned for diseases missing from the table.
var DefaultInfo = StaticInfo{
	Description: "Disease information not available in database.",
	Treatment: []string{
		"Consult a local agricultural expert.",
		"Isolate affected plants.",
		"Use balanced fertilizers and good soil management.",
	},
	Prevention: []string{
		"Ensure good air circulation.",
		"Water at the base of plants, not on leaves.",
	},
	OrganicSolutions: []string{
		"Apply neem oil or compost tea spray.",
	},
	Severity:   "unknown",
	SpreadRate: "unknown",
}

// Lookup returns the first table entry whose key occurs in disease,
// ignoring case, or DefaultInfo.
func Lookup(disease string) StaticInfo {
	name := strings.ToLower(disease)
	for _, entry := range staticTable {
		if strings.Contains(name, strings.ToLower(entry.key)) {
			return entry.info
		}
	}
	return DefaultInfo
}
