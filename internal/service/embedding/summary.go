package embedding

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wiktor-jurek/stewthius/internal/model"
)

// MaxTranscriptRunes bounds the transcript excerpt in a summary
const MaxTranscriptRunes = 800

// SummaryInput holds the facts a summary paragraph is built from
type SummaryInput struct {
	Day         int
	Sentiment   string
	Overall     *float64
	Richness    *float64
	Complexity  *float64
	Ingredients []string
	FlavorNotes *string
	Transcript  string
}

// BuildSummary renders the deterministic text that is embedded for one media item
func BuildSummary(in SummaryInput) string {
	lines := []string{
		fmt.Sprintf("Day %d Summary:", in.Day),
		fmt.Sprintf("Metrics: Overall Rating: %s. Richness: %s. Complexity: %s.",
			outOfTen(in.Overall), outOfTen(in.Richness), outOfTen(in.Complexity)),
		fmt.Sprintf("Vibe: Creator Sentiment is %s.", in.Sentiment),
	}

	if len(in.Ingredients) > 0 {
		lines = append(lines, "Ingredients Added: "+strings.Join(in.Ingredients, ", ")+".")
	} else {
		lines = append(lines, "Ingredients Added: None.")
	}

	if in.FlavorNotes != nil && *in.FlavorNotes != "" {
		lines = append(lines, "Flavor Notes: "+*in.FlavorNotes)
	}

	if in.Transcript != "" {
		text := in.Transcript
		if r := []rune(text); len(r) > MaxTranscriptRunes {
			text = string(r[:MaxTranscriptRunes]) + "..."
		}
		lines = append(lines, `Transcript: "`+text+`"`)
	}

	return strings.Join(lines, "\n")
}

func outOfTen(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + "/10"
}

// SummaryFromResult builds the summary input of a fresh extraction
func SummaryFromResult(r *model.AnalysisResult, day int) SummaryInput {
	return SummaryInput{
		Day:         day,
		Sentiment:   r.CreatorSentiment,
		Overall:     r.SensoryRatings.RatingOverall,
		Richness:    r.SensoryRatings.RatingRichness,
		Complexity:  r.SensoryRatings.RatingComplexity,
		Ingredients: r.IngredientNames(),
		FlavorNotes: r.SensoryRatings.FlavorProfileNotes,
		Transcript:  r.TranscriptText(),
	}
}

// SummaryFromSource builds the summary input from stored facts
func SummaryFromSource(s model.SummarySource) SummaryInput {
	in := SummaryInput{
		Day:         s.Day,
		Sentiment:   s.Sentiment,
		Overall:     s.RatingOverall,
		Richness:    s.RatingRichness,
		Complexity:  s.RatingComplexity,
		Ingredients: s.Ingredients,
		FlavorNotes: s.FlavorProfileNotes,
	}
	if s.Transcript != nil {
		in.Transcript = strings.TrimSpace(*s.Transcript)
	}
	return in
}
