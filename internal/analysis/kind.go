// Package analysis defines the fixed set of analysis kinds. Each kind is a
// page of the dashboard: it owns a cache namespace, its report labels and the
// clean-up applied to model output.
package analysis

import (
	"sort"
	"strings"
)

const (
	FeaturePriority    = "feature-priority"
	FeedbackCollection = "feedback-collection"
	JourneyMapping     = "journey-mapping"
	MarketAssessment   = "market-assessment"
)

const (
	failedAnalysis   = "Failed to get analysis. Please try again."
	failedAssessment = "Failed to get assessment. Please try again."
)

// Kind describes one analysis page.
type Kind struct {
	// Name identifies the kind in URLs, CLI arguments and prompt templates.
	Name string
	// Namespace prefixes every cache key of this kind.
	Namespace string
	// Title is the report title printed on the first export page.
	Title string
	// FooterLabel follows "Confidential - " on every export page.
	FooterLabel string
	// FileName is the download name of the exported PDF.
	FileName string
	// FailureMessage is shown when the completion call fails.
	FailureMessage string
	// EmptyBody replaces an empty body on export, if set.
	EmptyBody string
	// HasChart marks kinds whose export appends a rendered chart page.
	HasChart bool

	clean func(string) string
}

// Clean applies the kind's post-processing to raw model output.
func (k Kind) Clean(text string) string {
	if k.clean == nil {
		return text
	}
	return k.clean(text)
}

var markdownStripper = strings.NewReplacer("*", "", "_", "", "~", "", "`", "")

func stripMarkdown(s string) string {
	return markdownStripper.Replace(s)
}

var kinds = map[string]Kind{
	FeaturePriority: {
		Name:           FeaturePriority,
		Namespace:      "featureAnalysis",
		Title:          "Feature Priority Analysis Report",
		FooterLabel:    "Feature Priority Analysis",
		FileName:       "feature-priority-analysis.pdf",
		FailureMessage: failedAnalysis,
	},
	FeedbackCollection: {
		Name:           FeedbackCollection,
		Namespace:      "feedbackAnalysis",
		Title:          "Feedback Analysis Report",
		FooterLabel:    "Feedback Analysis Report",
		FileName:       "feedback-analysis-report.pdf",
		FailureMessage: failedAnalysis,
	},
	JourneyMapping: {
		Name:           JourneyMapping,
		Namespace:      "journeyMapping",
		Title:          "Customer Journey Mapping Report",
		FooterLabel:    "Customer Journey Analysis",
		FileName:       "customer-journey-analysis.pdf",
		FailureMessage: failedAnalysis,
		EmptyBody:      "No analysis available.",
		clean:          stripMarkdown,
	},
	MarketAssessment: {
		Name:           MarketAssessment,
		Namespace:      "marketStatement",
		Title:          "Market Assessment Report",
		FooterLabel:    "Market Assessment Report",
		FileName:       "market-assessment-report.pdf",
		FailureMessage: failedAssessment,
		HasChart:       true,
	},
}

// Lookup returns the kind registered under name.
func Lookup(name string) (Kind, bool) {
	k, ok := kinds[name]
	return k, ok
}

// All returns every kind ordered by name.
func All() []Kind {
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns every kind name in sorted order.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, k := range all {
		names[i] = k.Name
	}
	return names
}
