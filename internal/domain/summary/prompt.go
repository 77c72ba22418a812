package summary

import (
	"fmt"
	"strings"

	"github.com/chronicle-dev/chronicle/internal/domain/digest"
)

const mergeSystemPrompt = `You maintain an executive rollup of engineering activity
for one repository over one period. Merge the new items into the current rollup:
keep the headline short, accomplishments as past-tense bullet phrases, and
key_features limited to genuinely user-visible work. Never drop information that
is still accurate; rewrite rather than append.`

const mergeSchemaHint = `{"headline":"...","accomplishments":["..."],"key_features":["..."]}`

// narrative is the AI-merged portion of a summary.
type narrative struct {
	Headline        string   `json:"headline"`
	Accomplishments []string `json:"accomplishments"`
	KeyFeatures     []string `json:"key_features"`
}

func buildMergePrompt(prior narrative, batch []digest.Digest, g Granularity) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Period granularity: %s\n\n", g)

	if prior.Headline == "" && len(prior.Accomplishments) == 0 {
		b.WriteString("Current rollup: (empty)\n")
	} else {
		fmt.Fprintf(&b, "Current rollup headline: %s\n", prior.Headline)
		for _, a := range prior.Accomplishments {
			fmt.Fprintf(&b, "- %s\n", a)
		}
		if len(prior.KeyFeatures) > 0 {
			b.WriteString("Key features so far:\n")
			for _, f := range prior.KeyFeatures {
				fmt.Fprintf(&b, "- %s\n", f)
			}
		}
	}

	b.WriteString("\nNew items:\n")
	for _, d := range batch {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", d.Category, d.Title, d.Narrative)
	}

	return b.String()
}
