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

package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/travel-assistant/internal/synth"
)

const (
	weatherNoteChars     = 100
	weatherNoteIndex     = 3
	restaurantResults    = 5
	restaurantTitleLimit = 3
)

var basePackingItems = []string{
	"Passport/ID and travel documents",
	"Comfortable walking shoes",
	"Weather-appropriate clothing",
	"Toiletries and personal care items",
	"Phone charger and adapters",
	"Medications (if needed)",
	"Sunscreen and sunglasses",
	"Reusable water bottle",
	"Camera or phone for photos",
	"Light jacket or sweater",
}

// Checklist is a packing list for one destination
type Checklist struct {
	Location    string   `json:"location"`
	Items       []string `json:"items"`
	WeatherNote string   `json:"weather_note,omitempty"`
}

// PackingChecklist returns the base packing list, with a weather note
// inserted as the fourth item when a forecast can be found.
func (a *Assistant) PackingChecklist(ctx context.Context, location string) Checklist {
	location = strings.TrimSpace(location)
	checklist := Checklist{
		Location: location,
		Items:    append([]string(nil), basePackingItems...),
	}

	if location == "" || !a.searchConfigured() {
		return checklist
	}

	results := a.search.Search(ctx, "weather forecast "+location, 1)
	if len(results) == 0 {
		return checklist
	}

	weather := firstRunes(strings.TrimSpace(results[0].Content), weatherNoteChars)
	if weather == "" {
		return checklist
	}

	checklist.WeatherNote = weather
	items := make([]string, 0, len(checklist.Items)+1)
	items = append(items, checklist.Items[:weatherNoteIndex]...)
	items = append(items, "Note: "+weather)
	items = append(items, checklist.Items[weatherNoteIndex:]...)
	checklist.Items = items

	return checklist
}

// Restaurants suggests places to eat, grounded on live search titles when
// available. A fixed list is returned when the model cannot answer.
func (a *Assistant) Restaurants(ctx context.Context, location string, dietary []string) *Result {
	startTime := time.Now()
	result := &Result{ServicesUsed: []string{}}

	location = strings.TrimSpace(location)
	if location == "" {
		location = synth.PlaceholderLocation
	}

	var titles []string
	if a.searchConfigured() && location != synth.PlaceholderLocation {
		query := "best restaurants in " + location
		if len(dietary) > 0 {
			query += " for " + synth.DietaryLabel(dietary)
		}
		for _, r := range a.search.Search(ctx, query, restaurantResults) {
			if r.Title != "" && len(titles) < restaurantTitleLimit {
				titles = append(titles, r.Title)
			}
		}
		result.ServicesUsed = append(result.ServicesUsed, ServiceSearch)
	}

	a.generate(ctx, synth.BuildRestaurantPrompt(location, dietary, titles), result)
	if result.Degraded {
		result.Text = restaurantFallback(location, dietary, titles)
	}

	a.finalize(result)
	result.ExecutionTimeMs = time.Since(startTime).Milliseconds()

	a.logger.Info("Restaurant suggestions produced",
		zap.String("location", location),
		zap.Int("search_titles", len(titles)),
		zap.Bool("degraded", result.Degraded))

	return result
}

func restaurantFallback(location string, dietary []string, titles []string) string {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("Popular dining options in %s:\n\n", location))
	text.WriteString("1. Local cuisine restaurants - Try authentic regional dishes\n")
	text.WriteString("2. International options - Various global cuisines available\n")
	text.WriteString("3. Casual cafes - Perfect for quick meals and coffee\n")
	text.WriteString("4. Fine dining - For special occasions\n")
	text.WriteString("5. Street food - Experience local flavors\n\n")

	if len(titles) == 0 {
		text.WriteString("Check online reviews for current recommendations and consider dietary needs: ")
		text.WriteString(synth.DietaryLabel(dietary))
		return text.String()
	}

	text.WriteString("Recent recommendations from web:\n")
	for _, title := range titles {
		text.WriteString("• ")
		text.WriteString(title)
		text.WriteString("\n")
	}
	return text.String()
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}
