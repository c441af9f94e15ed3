package gemini

import "github.com/wiktor-jurek/stewthius/internal/model"

const systemInstruction = `You are a meticulous data analyst AI for a perpetual stew project.
The creator sometimes posts videos unrelated to the perpetual stew.
First determine whether the video is about the perpetual stew (is_about_stew).
If it is NOT about the stew, set is_about_stew to false and fill the remaining fields with sensible defaults (video_day=0, empty arrays, nulls).
If it IS about the stew, extract data with high precision.
For creator_sentiment, use the 5-level scale: "Super Negative" for disgust/despair, "Negative" for disappointment, "Neutral" for indifference, "Positive" for satisfaction, "Super Positive" for excitement/euphoria.`

const userPrompt = `First, determine if this video is about the perpetual stew project (is_about_stew).
If the video is NOT about the perpetual stew, set is_about_stew=false and use defaults for the rest.
If it IS about the stew, extract structured data:
- Extract ingredient_additions[].ingredient_name as a singular base ingredient (for example: "Carrot", not "Diced organic carrots").
- For each ingredient, include a comment if the creator says something noteworthy about why they're adding it or what effect they expect (e.g. "To add saltiness and spice"). Use their own words when possible. Leave null if nothing notable is said.
- All rating_* values are on a 0-10 scale because the creator usually rates the stew out of 10.
- For each main rating, include a confidence score (1-100) and brief evidence-based reasoning.
- Always include transcript.full_text when speech can be inferred from audio.
- If no ingredients are added, return an empty ingredient_additions array.`

type schema = map[string]any

func str(desc string) schema {
	s := schema{"type": "STRING"}
	if desc != "" {
		s["description"] = desc
	}
	return s
}

func num(desc string) schema {
	s := schema{"type": "NUMBER"}
	if desc != "" {
		s["description"] = desc
	}
	return s
}

func nullable(s schema) schema {
	s["nullable"] = true
	return s
}

func enum(values []string) schema {
	return schema{"type": "STRING", "enum": values}
}

func object(required []string, props schema) schema {
	return schema{"type": "OBJECT", "required": required, "properties": props}
}

func ratingConfidence(field string) schema {
	return num("Confidence from 1-100 for " + field + ". 100 means explicitly stated by creator.")
}

// responseSchema constrains the extraction output
func responseSchema() schema {
	return object(
		[]string{
			"is_about_stew", "video_day", "creator_sentiment", "transcript", "sensory_ratings",
			"physical_properties", "ingredient_additions", "process_and_context",
		},
		schema{
			"is_about_stew": schema{
				"type":        "BOOLEAN",
				"description": "True if this video is about the perpetual stew project. False if the creator is making unrelated content (e.g. a different recipe, vlog, etc.).",
			},
			"video_day":         num(""),
			"creator_sentiment": enum(model.Sentiments),
			"transcript": object([]string{"language", "full_text"}, schema{
				"language":  nullable(str("")),
				"full_text": str(""),
			}),
			"sensory_ratings": object(
				[]string{
					"rating_overall", "rating_richness", "rating_complexity",
					"rating_overall_confidence", "rating_richness_confidence", "rating_complexity_confidence",
					"rating_overall_reasoning", "rating_richness_reasoning", "rating_complexity_reasoning",
					"flavor_profile_notes",
				},
				schema{
					"rating_overall":               nullable(num("Rate stew overall from 0-10 where 0 is inedible and 10 is excellent. The creator rates out of 10.")),
					"rating_richness":              nullable(num("Rate richness from 0-10 where 0 is watery/thin flavor and 10 is deeply rich and full-bodied.")),
					"rating_complexity":            nullable(num("Rate complexity from 0-10 where 0 is one-note and 10 is highly layered flavor.")),
					"rating_overall_confidence":    ratingConfidence("rating_overall"),
					"rating_richness_confidence":   ratingConfidence("rating_richness"),
					"rating_complexity_confidence": ratingConfidence("rating_complexity"),
					"rating_overall_reasoning":     nullable(str("Short evidence-based reason for rating_overall.")),
					"rating_richness_reasoning":    nullable(str("Short evidence-based reason for rating_richness.")),
					"rating_complexity_reasoning":  nullable(str("Short evidence-based reason for rating_complexity.")),
					"flavor_profile_notes":         nullable(str("")),
				},
			),
			"physical_properties": object([]string{"texture_thickness", "appearance_color", "appearance_clarity"}, schema{
				"texture_thickness":  nullable(num("Rate 1-10. 1 = water-like broth, 5 = thick gravy, 10 = near-solid/paste.")),
				"appearance_color":   nullable(str("")),
				"appearance_clarity": nullable(num("Rate 1-10. 1 = very cloudy/opaque, 5 = semi-cloudy, 10 = very clear/transparent.")),
			}),
			"ingredient_additions": schema{
				"type": "ARRAY",
				"items": object([]string{"ingredient_name", "ingredient_category", "prep_style"}, schema{
					"ingredient_name":     str(""),
					"ingredient_category": enum(model.IngredientCategories),
					"prep_style":          enum(model.PrepStyles),
					"comment": nullable(str("Optional noteworthy comment about why this ingredient was added or what effect the creator expects, " +
						"in the creator's own words if possible. Only include if the creator says something meaningful about this specific ingredient.")),
				}),
			},
			"process_and_context": object([]string{"key_quote", "general_notes"}, schema{
				"key_quote":     nullable(str("")),
				"general_notes": str(""),
			}),
		},
	)
}
