package model

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
)

// Rating bounds accepted on persistence. The inference prompt asks for 0-10; the stored
// columns allow up to 20 and validation follows the stored bound.
const (
	RatingMin = 0
	RatingMax = 20
)

// DefaultGeneralNotes replaces an empty general_notes field
const DefaultGeneralNotes = "No notes provided."

// DefaultTranscriptLanguage is used when the model omits the transcript language
const DefaultTranscriptLanguage = "en"

// Sentiments is the 5-level ordinal sentiment scale
var Sentiments = []string{"Super Positive", "Positive", "Neutral", "Negative", "Super Negative"}

// AnalysisResult is the structured extraction returned by the inference service
type AnalysisResult struct {
	IsAboutStew         bool                 `json:"is_about_stew"`
	VideoDay            float64              `json:"video_day"`
	CreatorSentiment    string               `json:"creator_sentiment"`
	Transcript          TranscriptOutput     `json:"transcript"`
	SensoryRatings      SensoryRatings       `json:"sensory_ratings"`
	PhysicalProperties  PhysicalProperties   `json:"physical_properties"`
	IngredientAdditions []IngredientAddition `json:"ingredient_additions"`
	ProcessAndContext   ProcessAndContext    `json:"process_and_context"`
}

// TranscriptOutput is the speech text extracted from the video
type TranscriptOutput struct {
	Language *string `json:"language"`
	FullText string  `json:"full_text"`
}

// SensoryRatings holds the three bounded ratings with confidence and reasoning
type SensoryRatings struct {
	RatingOverall              *float64 `json:"rating_overall"`
	RatingRichness             *float64 `json:"rating_richness"`
	RatingComplexity           *float64 `json:"rating_complexity"`
	RatingOverallConfidence    *float64 `json:"rating_overall_confidence"`
	RatingRichnessConfidence   *float64 `json:"rating_richness_confidence"`
	RatingComplexityConfidence *float64 `json:"rating_complexity_confidence"`
	RatingOverallReasoning     *string  `json:"rating_overall_reasoning"`
	RatingRichnessReasoning    *string  `json:"rating_richness_reasoning"`
	RatingComplexityReasoning  *string  `json:"rating_complexity_reasoning"`
	FlavorProfileNotes         *string  `json:"flavor_profile_notes"`
}

// PhysicalProperties describes texture and appearance
type PhysicalProperties struct {
	TextureThickness  *float64 `json:"texture_thickness"`
	AppearanceColor   *string  `json:"appearance_color"`
	AppearanceClarity *float64 `json:"appearance_clarity"`
}

// IngredientAddition is one raw ingredient mention as reported by the model
type IngredientAddition struct {
	IngredientName     string  `json:"ingredient_name"`
	IngredientCategory string  `json:"ingredient_category"`
	PrepStyle          string  `json:"prep_style"`
	Comment            *string `json:"comment"`
}

// ProcessAndContext holds the free-text fields
type ProcessAndContext struct {
	KeyQuote     *string `json:"key_quote"`
	GeneralNotes string  `json:"general_notes"`
}

// Validate checks every present bounded numeric field. It returns a SchemaValidationError
// listing each violation, or nil.
func (r *AnalysisResult) Validate() error {
	var reasons []string
	check := func(name string, v *float64) {
		if v == nil {
			return
		}
		if math.IsNaN(*v) || *v < RatingMin || *v > RatingMax {
			reasons = append(reasons, fmt.Sprintf("%s=%v", name, *v))
		}
	}

	check("rating_overall", r.SensoryRatings.RatingOverall)
	check("rating_richness", r.SensoryRatings.RatingRichness)
	check("rating_complexity", r.SensoryRatings.RatingComplexity)
	check("texture_thickness", r.PhysicalProperties.TextureThickness)
	check("appearance_clarity", r.PhysicalProperties.AppearanceClarity)

	if len(reasons) == 0 {
		return nil
	}
	return apperrors.SchemaValidation(nil, "values out of range: "+strings.Join(reasons, ", "))
}

// TranscriptText returns the trimmed transcript text
func (r *AnalysisResult) TranscriptText() string {
	return strings.TrimSpace(r.Transcript.FullText)
}

// TranscriptLanguage returns the transcript language or the default
func (r *AnalysisResult) TranscriptLanguage() string {
	if r.Transcript.Language != nil && strings.TrimSpace(*r.Transcript.Language) != "" {
		return strings.TrimSpace(*r.Transcript.Language)
	}
	return DefaultTranscriptLanguage
}

// IngredientNames returns the non-empty raw ingredient names in response order
func (r *AnalysisResult) IngredientNames() []string {
	names := make([]string, 0, len(r.IngredientAdditions))
	for _, a := range r.IngredientAdditions {
		if strings.TrimSpace(a.IngredientName) != "" {
			names = append(names, a.IngredientName)
		}
	}
	return names
}

// AnalysisRecord is the persisted form of one media item's analysis
type AnalysisRecord struct {
	ID                         int64    `json:"analysis_id" db:"analysis_id"`
	VideoID                    int64    `json:"video_id" db:"video_id"`
	VideoDay                   int      `json:"video_day" db:"video_day"`
	CreatorSentiment           string   `json:"creator_sentiment" db:"creator_sentiment"`
	RatingOverall              *float64 `json:"rating_overall,omitempty" db:"rating_overall"`
	RatingRichness             *float64 `json:"rating_richness,omitempty" db:"rating_richness"`
	RatingComplexity           *float64 `json:"rating_complexity,omitempty" db:"rating_complexity"`
	RatingOverallConfidence    *int     `json:"rating_overall_confidence,omitempty" db:"rating_overall_confidence"`
	RatingRichnessConfidence   *int     `json:"rating_richness_confidence,omitempty" db:"rating_richness_confidence"`
	RatingComplexityConfidence *int     `json:"rating_complexity_confidence,omitempty" db:"rating_complexity_confidence"`
	RatingOverallReasoning     *string  `json:"rating_overall_reasoning,omitempty" db:"rating_overall_reasoning"`
	RatingRichnessReasoning    *string  `json:"rating_richness_reasoning,omitempty" db:"rating_richness_reasoning"`
	RatingComplexityReasoning  *string  `json:"rating_complexity_reasoning,omitempty" db:"rating_complexity_reasoning"`
	FlavorProfileNotes         *string  `json:"flavor_profile_notes,omitempty" db:"flavor_profile_notes"`
	TextureThickness           *float64 `json:"texture_thickness,omitempty" db:"texture_thickness"`
	AppearanceColor            *string  `json:"appearance_color,omitempty" db:"appearance_color"`
	AppearanceClarity          *float64 `json:"appearance_clarity,omitempty" db:"appearance_clarity"`
	KeyQuote                   *string  `json:"key_quote,omitempty" db:"key_quote"`
	GeneralNotes               string   `json:"general_notes" db:"general_notes"`
	RatingInferred             bool     `json:"rating_inferred" db:"rating_inferred"`
	RichnessInferred           bool     `json:"richness_inferred" db:"richness_inferred"`
	ComplexityInferred         bool     `json:"complexity_inferred" db:"complexity_inferred"`
	RawResponse                string   `json:"-" db:"raw_gemini_response"`
	AnalysisModel              string   `json:"analysis_model" db:"analysis_model"`
}

// ToRecord converts an extraction into the persisted analysis row for videoID
func (r *AnalysisResult) ToRecord(videoID int64, raw, analysisModel string) *AnalysisRecord {
	s := r.SensoryRatings
	notes := strings.TrimSpace(r.ProcessAndContext.GeneralNotes)
	if notes == "" {
		notes = DefaultGeneralNotes
	}

	return &AnalysisRecord{
		VideoID:                    videoID,
		VideoDay:                   int(math.Round(r.VideoDay)),
		CreatorSentiment:           r.CreatorSentiment,
		RatingOverall:              s.RatingOverall,
		RatingRichness:             s.RatingRichness,
		RatingComplexity:           s.RatingComplexity,
		RatingOverallConfidence:    roundConfidence(s.RatingOverallConfidence),
		RatingRichnessConfidence:   roundConfidence(s.RatingRichnessConfidence),
		RatingComplexityConfidence: roundConfidence(s.RatingComplexityConfidence),
		RatingOverallReasoning:     s.RatingOverallReasoning,
		RatingRichnessReasoning:    s.RatingRichnessReasoning,
		RatingComplexityReasoning:  s.RatingComplexityReasoning,
		FlavorProfileNotes:         s.FlavorProfileNotes,
		TextureThickness:           r.PhysicalProperties.TextureThickness,
		AppearanceColor:            r.PhysicalProperties.AppearanceColor,
		AppearanceClarity:          r.PhysicalProperties.AppearanceClarity,
		KeyQuote:                   r.ProcessAndContext.KeyQuote,
		GeneralNotes:               notes,
		RatingInferred:             inferred(s.RatingOverallConfidence),
		RichnessInferred:           inferred(s.RatingRichnessConfidence),
		ComplexityInferred:         inferred(s.RatingComplexityConfidence),
		RawResponse:                raw,
		AnalysisModel:              analysisModel,
	}
}

// a rating counts as inferred unless the creator stated it explicitly (confidence 100)
func inferred(confidence *float64) bool {
	return confidence == nil || *confidence < 100
}

func roundConfidence(confidence *float64) *int {
	if confidence == nil {
		return nil
	}
	v := int(math.Round(*confidence))
	return &v
}

// TranscriptRecord is the derived speech text of one media item
type TranscriptRecord struct {
	VideoID  int64  `json:"video_id" db:"video_id"`
	Model    string `json:"model" db:"model"`
	Text     string `json:"transcript_text" db:"transcript_text"`
	Language string `json:"language" db:"language"`
}

// ResolvedMention is a mention ready to be resolved against the catalog inside a transaction
type ResolvedMention struct {
	RawName     string
	RawCategory string
	PrepStyle   string
	Comment     *string
}

// Mentions converts the raw additions into mentions with validated prep style and trimmed comment
func (r *AnalysisResult) Mentions() []ResolvedMention {
	out := make([]ResolvedMention, 0, len(r.IngredientAdditions))
	for _, a := range r.IngredientAdditions {
		var comment *string
		if a.Comment != nil {
			if c := strings.TrimSpace(*a.Comment); c != "" {
				comment = &c
			}
		}
		style := a.PrepStyle
		if style == "" {
			style = DefaultPrepStyle
		}
		out = append(out, ResolvedMention{
			RawName:     a.IngredientName,
			RawCategory: a.IngredientCategory,
			PrepStyle:   ValidPrepStyle(style),
			Comment:     comment,
		})
	}
	return out
}

// AnalysisWrite bundles everything the analysis transaction persists for one media item
type AnalysisWrite struct {
	Record     *AnalysisRecord
	Mentions   []ResolvedMention
	Transcript *TranscriptRecord // nil when there is no transcript text
	Embedding  *SummaryEmbedding
}
