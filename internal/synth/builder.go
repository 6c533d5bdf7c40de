// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package synth

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	userQueryLabel = "Traveler's Question:"
	persona        = "You are a helpful travel assistant for a vacation rental platform. " +
		"Help travelers plan their trips with practical recommendations."
)

// BuildPrompt renders the single prompt sent to a model provider
func BuildPrompt(pc PromptContext) string {
	var prompt strings.Builder

	prompt.WriteString(persona)
	prompt.WriteString("\n")

	for _, section := range []string{pc.BookingSummary, pc.PreferenceSummary, pc.SearchSummary} {
		if section == "" {
			continue
		}
		prompt.WriteString("\n")
		prompt.WriteString(section)
		prompt.WriteString("\n")
	}

	prompt.WriteString("\n")
	prompt.WriteString(userQueryLabel)
	prompt.WriteString(" ")
	prompt.WriteString(pc.Query)
	prompt.WriteString("\n\n")

	prompt.WriteString(fmt.Sprintf("Based on the information above, provide helpful travel recommendations for %s.\n", pc.Location))
	if pc.Focus != "" {
		prompt.WriteString(pc.Focus)
		prompt.WriteString("\n")
	}

	prompt.WriteString("\nInclude:\n")
	prompt.WriteString("1. A day-by-day outline of activities and attractions to visit\n")
	prompt.WriteString("2. Restaurant recommendations where relevant (consider dietary needs if mentioned)\n")
	prompt.WriteString("3. Practical tips (transportation, local customs, getting around)\n")
	if pc.HasWeather {
		prompt.WriteString("4. A short packing note based on the weather forecast above\n")
	}

	prompt.WriteString("\nKeep your response friendly, practical, and well-organized. ")
	prompt.WriteString("Use the live local information when available.\n\nResponse:")

	return prompt.String()
}

// BuildRestaurantPrompt renders the prompt for restaurant suggestions
func BuildRestaurantPrompt(location string, dietary []string, titles []string) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("Suggest 5 good restaurants in %s with options for %s.\n",
		location, DietaryLabel(dietary)))

	if len(titles) > 0 {
		prompt.WriteString("\nRecent recommendations from web:\n")
		for _, title := range titles {
			prompt.WriteString("• ")
			prompt.WriteString(title)
			prompt.WriteString("\n")
		}
	}

	prompt.WriteString("\nFormat as a simple list with brief descriptions.")
	return prompt.String()
}

// DietaryLabel joins dietary filters, defaulting to all cuisines
func DietaryLabel(dietary []string) string {
	cleaned := compact(dietary)
	if len(cleaned) == 0 {
		return "all cuisines"
	}
	return strings.Join(cleaned, ", ")
}

// EstimateTokens provides a rough estimate of token count (4 characters ≈ 1 token)
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// ValidatePrompt validates the completeness and structure of a prompt
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("prompt cannot be empty")
	}

	_, question, found := strings.Cut(prompt, userQueryLabel)
	if !found {
		return fmt.Errorf("prompt must contain the traveler's question")
	}
	if line, _, _ := strings.Cut(question, "\n"); strings.TrimSpace(line) == "" {
		return fmt.Errorf("traveler's question cannot be blank")
	}

	if !strings.Contains(prompt, "Include:") {
		return fmt.Errorf("prompt must contain the response outline")
	}

	return nil
}
