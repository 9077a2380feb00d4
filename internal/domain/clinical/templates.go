package clinical

import "strings"

type suggestionRule struct {
	keywords []string
	lines    []string
}

var suggestionRules = []suggestionRule{
	{[]string{"fever", "temperature"}, []string{
		"• Paracetamol 500mg - Take 1 tablet every 6 hours as needed",
	}},
	{[]string{"cough", "cold"}, []string{
		"• Cough syrup - 10ml three times daily",
		"• Throat lozenges - As needed for throat irritation",
	}},
	{[]string{"pain", "ache"}, []string{
		"• Ibuprofen 400mg - Take 1 tablet twice daily with food",
	}},
	{[]string{"infection", "bacterial"}, []string{
		"• Antibiotic (consult pharmacy) - As per standard dosage",
	}},
}

var fallbackSuggestion = []string{
	"• Medication to be prescribed based on specific diagnosis",
	"• Follow up consultation recommended",
}

const suggestionNote = "\nNote: Take medications as prescribed and complete full course."

// SuggestPrescription drafts a prescription from keywords in the diagnosis
// text. The doctor is expected to edit the result.
func SuggestPrescription(diagnosis string) string {
	text := strings.ToLower(diagnosis)
	var b strings.Builder
	for _, r := range suggestionRules {
		for _, k := range r.keywords {
			if strings.Contains(text, k) {
				for _, l := range r.lines {
					b.WriteString(l + "\n")
				}
				break
			}
		}
	}
	if b.Len() == 0 {
		for _, l := range fallbackSuggestion {
			b.WriteString(l + "\n")
		}
	}
	b.WriteString(suggestionNote)
	return b.String()
}

// TreatmentPlanTemplate is the starting text for a treatment plan.
func TreatmentPlanTemplate() string {
	return `TREATMENT PLAN:

1. IMMEDIATE CARE:
   • Rest and adequate sleep
   • Stay hydrated
   • Follow prescribed medication

2. FOLLOW-UP CARE:
   • Monitor symptoms daily
   • Return if symptoms worsen
   • Schedule follow-up in 1 week

3. LIFESTYLE RECOMMENDATIONS:
   • Maintain healthy diet
   • Avoid strenuous activities
   • Practice good hygiene

4. WARNING SIGNS:
   • Contact immediately if severe symptoms develop
   • Emergency care if condition deteriorates
`
}
