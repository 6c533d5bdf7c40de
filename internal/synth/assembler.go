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

// Package synth assembles booking, preference and search context into the
// prompt handed to a model provider.
package synth

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/your-org/travel-assistant/internal/booking"
	"github.com/your-org/travel-assistant/internal/classifier"
	"github.com/your-org/travel-assistant/internal/websearch"
)

// PlaceholderLocation is used when no location can be resolved
const PlaceholderLocation = "the destination"

// Search notes written in place of live results
const (
	NoteLimitedData   = "Note: Limited live data available."
	NoteSearchOff     = "Note: Web search not available."
	NoteGeneralTravel = "Note: Using general travel knowledge."
)

const maxExtractedWords = 4

// Preferences are optional traveler preferences supplied with a query
type Preferences struct {
	Budget       string   `json:"budget,omitempty"`
	Dietary      []string `json:"dietary,omitempty"`
	Interests    []string `json:"interests,omitempty"`
	Mobility     string   `json:"mobility,omitempty"`
	WithChildren bool     `json:"with_children,omitempty"`
}

// PromptContext is the assembled context for one generation request
type PromptContext struct {
	Query             string
	Location          string
	BookingSummary    string
	PreferenceSummary string
	SearchSummary     string
	Focus             string
	HasWeather        bool
	SearchAttempted   bool
}

// LocationResolved reports whether a concrete location was found
func (pc PromptContext) LocationResolved() bool {
	return pc.Location != "" && pc.Location != PlaceholderLocation
}

// AssembleInput carries everything the assembler reads
type AssembleInput struct {
	Query            string
	Classification   classifier.Classification
	Bookings         []booking.Booking
	Preferences      *Preferences
	Search           []websearch.TopicResults
	SearchConfigured bool
	SearchAttempted  bool
}

// Assemble builds the prompt context. It performs no I/O.
func Assemble(in AssembleInput) PromptContext {
	pc := PromptContext{
		Query:           strings.TrimSpace(in.Query),
		SearchAttempted: in.SearchAttempted,
	}

	trip, hasTrip := TripBooking(in.Bookings)
	if hasTrip {
		pc.BookingSummary = BookingSummary(trip)
	}
	pc.Location = ResolveLocation(in.Query, in.Bookings, in.Classification.Destination)

	pc.PreferenceSummary = PreferenceSummary(in.Preferences)
	pc.Focus = focusFor(in.Classification, pc.Location)

	pc.SearchSummary, pc.HasWeather = searchSummary(in, pc.LocationResolved())

	return pc
}

// ResolveLocation picks the trip location: the booked place first, then the
// text following "in", then a recognised destination name. A recognised
// destination overrides extracted text that does not mention it.
func ResolveLocation(query string, bookings []booking.Booking, destination string) string {
	if trip, ok := TripBooking(bookings); ok {
		if place := trip.Place(); place != "" {
			return place
		}
	}

	destination = strings.ToLower(strings.TrimSpace(destination))
	extracted := ExtractLocation(query)

	switch {
	case extracted != "" && (destination == "" || strings.Contains(strings.ToLower(extracted), destination)):
		return extracted
	case destination != "":
		return titleCase(destination)
	default:
		return PlaceholderLocation
	}
}

// ExtractLocation returns the words following the last standalone "in" that
// is not followed by a time of year, stopping at punctuation or another "in".
// It returns "" when nothing usable follows.
func ExtractLocation(query string) string {
	words := strings.Fields(strings.ToLower(query))

	for i := len(words) - 1; i >= 0; i-- {
		if words[i] != "in" {
			continue
		}
		picked := locationWords(words[i+1:])
		if len(picked) == 0 || isTimePhrase(picked) {
			continue
		}
		return titleCase(strings.Join(picked, " "))
	}

	return ""
}

func locationWords(words []string) []string {
	var picked []string
	for _, word := range words {
		if word == "in" {
			break
		}
		trimmed := strings.TrimRightFunc(word, unicode.IsPunct)
		if trimmed != "" {
			picked = append(picked, trimmed)
		}
		if trimmed != word || len(picked) == maxExtractedWords {
			break
		}
	}
	return picked
}

var timeWords = map[string]bool{
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
	"spring": true, "summer": true, "autumn": true, "fall": true, "winter": true,
	"summertime": true, "wintertime": true,
}

// isTimePhrase reports whether words name a month or season,
// such as "december" or "the summer"
func isTimePhrase(words []string) bool {
	for _, word := range words {
		switch word {
		case "the", "early", "late", "mid", "next", "this":
			continue
		}
		return timeWords[word]
	}
	return false
}

// TripBooking selects the booking that describes the trip being planned:
// the most recent one that has not been cancelled.
func TripBooking(bookings []booking.Booking) (booking.Booking, bool) {
	var active []booking.Booking
	for _, b := range bookings {
		if b.NormalizedStatus() != booking.StatusCancelled {
			active = append(active, b)
		}
	}
	return booking.MostRecent(active)
}

// BookingSummary renders the booking block of the prompt
func BookingSummary(b booking.Booking) string {
	var summary strings.Builder
	summary.WriteString("Your upcoming trip:\n")
	summary.WriteString(fmt.Sprintf("- Destination: %s\n", b.Place()))
	summary.WriteString(fmt.Sprintf("- Check-in: %s\n", b.CheckIn()))
	summary.WriteString(fmt.Sprintf("- Check-out: %s\n", b.CheckOut()))
	summary.WriteString(fmt.Sprintf("- Guests: %d", b.NumGuests))
	return summary.String()
}

// PreferenceSummary renders only the preference fields that are present
func PreferenceSummary(p *Preferences) string {
	if p == nil {
		return ""
	}

	var lines []string
	if budget := strings.TrimSpace(p.Budget); budget != "" {
		lines = append(lines, "Budget: "+budget)
	}
	if dietary := compact(p.Dietary); len(dietary) > 0 {
		lines = append(lines, "Dietary needs: "+strings.Join(dietary, ", "))
	}
	if interests := compact(p.Interests); len(interests) > 0 {
		lines = append(lines, "Interests: "+strings.Join(interests, ", "))
	}
	if mobility := strings.TrimSpace(p.Mobility); mobility != "" {
		lines = append(lines, "Mobility: "+mobility)
	}
	if p.WithChildren {
		lines = append(lines, "Traveling with children")
	}

	if len(lines) == 0 {
		return ""
	}
	return "User Preferences:\n" + strings.Join(lines, "\n")
}

func searchSummary(in AssembleInput, locationResolved bool) (string, bool) {
	switch {
	case !in.SearchConfigured:
		return NoteSearchOff, false
	case !locationResolved && !in.SearchAttempted:
		return NoteGeneralTravel, false
	}

	var summary strings.Builder
	hasWeather := false
	for _, topic := range in.Search {
		if len(topic.Results) == 0 {
			continue
		}
		if topic.Kind == websearch.KindWeather {
			hasWeather = true
		}
		summary.WriteString("\n")
		summary.WriteString(topic.Topic)
		summary.WriteString(":\n")
		for _, result := range topic.Results {
			summary.WriteString(fmt.Sprintf("• %s: %s\n", result.Title, result.Content))
		}
	}

	if summary.Len() == 0 {
		return NoteLimitedData, false
	}
	return "Live Local Information (from web):\n" + strings.TrimRight(summary.String(), "\n"), hasWeather
}

func focusFor(c classifier.Classification, location string) string {
	switch c.Category {
	case classifier.CategoryPacking:
		return "Focus on what to pack for this trip."
	case classifier.CategoryBudget:
		return "Focus on keeping the trip affordable and mention typical costs."
	case classifier.CategoryDestinationSpecific:
		return fmt.Sprintf("Focus on the highlights of %s.", location)
	default:
		return ""
	}
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
