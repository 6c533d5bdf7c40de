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

// Package classifier assigns a travel query to one category using an
// ordered table of deterministic text rules.
package classifier

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Category is the outcome of classifying a query
type Category string

// Query categories
const (
	CategoryGreeting            Category = "greeting"
	CategoryHelp                Category = "help"
	CategoryThanks              Category = "thanks"
	CategoryBookingStatus       Category = "booking_status"
	CategoryDestinationSpecific Category = "destination_specific"
	CategoryGeneralTravel       Category = "general_travel"
	CategoryPacking             Category = "packing"
	CategoryBudget              Category = "budget"
	CategoryUnknown             Category = "unknown"
)

// StatusFilter narrows a booking-status query
type StatusFilter string

// Booking-status sub-filters. FilterMostRecent is the zero value.
const (
	FilterMostRecent StatusFilter = ""
	FilterCancelled  StatusFilter = "cancelled"
	FilterAccepted   StatusFilter = "accepted"
	FilterPending    StatusFilter = "pending"
	FilterCount      StatusFilter = "count"
)

// Classification represents the result of query classification
type Classification struct {
	Category     Category     `json:"category"`
	StatusFilter StatusFilter `json:"status_filter,omitempty"`
	Destination  string       `json:"destination,omitempty"`
	MatchedRule  string       `json:"matched_rule"`
}

// NeedsGeneration reports whether the category is answered by a model
// rather than a fixed template.
func (c Classification) NeedsGeneration() bool {
	switch c.Category {
	case CategoryGreeting, CategoryHelp, CategoryThanks, CategoryBookingStatus:
		return false
	default:
		return true
	}
}

type rule struct {
	name  string
	match func(query string) (Classification, bool)
}

var (
	possessiveBooking = regexp.MustCompile(
		`\bmy\s+(?:(?:cancelled|canceled|accepted|confirmed|pending|upcoming|next|last|latest|recent|current|past)\s+)?(?:trip|booking|reservation|stay)s?\b`)
	bookingCount = regexp.MustCompile(
		`\bhow\s+many\s+(?:\w+\s+)?(?:trip|booking|reservation)s?\b`)
)

// QueryClassifier handles category classification for travel queries
type QueryClassifier struct {
	greetings      []string
	helpKeywords   []string
	thanksKeywords []string
	destinations   []string
	travelKeywords []string
	packKeywords   []string
	budgetKeywords []string
	rules          []rule
}

// NewQueryClassifier creates a new instance of QueryClassifier
func NewQueryClassifier() *QueryClassifier {
	qc := &QueryClassifier{
		greetings: []string{
			"hi", "hello", "hey", "hola", "greetings",
			"good morning", "good afternoon", "good evening",
		},
		helpKeywords:   []string{"help", "what can you do", "how can you help"},
		thanksKeywords: []string{"thank", "thanks", "appreciate"},
		destinations: []string{
			"paris", "tokyo", "london", "rome", "barcelona", "amsterdam",
			"berlin", "prague", "vienna", "budapest", "lisbon", "new york",
		},
		travelKeywords: []string{"travel", "trip", "vacation", "holiday", "destination", "visit", "go to"},
		packKeywords:   []string{"pack", "packing", "what to bring", "luggage", "clothes"},
		budgetKeywords: []string{"budget", "cheap", "expensive", "cost", "money", "price"},
	}

	// Longest names first so "new york" is never shadowed by a shorter match.
	sort.SliceStable(qc.destinations, func(i, j int) bool {
		return len(qc.destinations[i]) > len(qc.destinations[j])
	})

	qc.rules = []rule{
		{name: "booking_status", match: qc.matchBookingStatus},
		{name: "greeting", match: qc.matchGreeting},
		{name: "help", match: keywordRule(CategoryHelp, qc.helpKeywords)},
		{name: "thanks", match: keywordRule(CategoryThanks, qc.thanksKeywords)},
		{name: "destination", match: qc.matchDestination},
		{name: "general_travel", match: keywordRule(CategoryGeneralTravel, qc.travelKeywords)},
		{name: "packing", match: keywordRule(CategoryPacking, qc.packKeywords)},
		{name: "budget", match: keywordRule(CategoryBudget, qc.budgetKeywords)},
	}

	return qc
}

// Classify evaluates the rule table in order and returns the first match
func (qc *QueryClassifier) Classify(query string) Classification {
	normalized := Normalize(query)

	for _, r := range qc.rules {
		if result, ok := r.match(normalized); ok {
			result.MatchedRule = r.name
			return result
		}
	}

	return Classification{Category: CategoryUnknown, MatchedRule: "default"}
}

// Normalize case-folds and trims a query
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// IsPlanningIntent reports whether a query asks to plan a trip.
func IsPlanningIntent(query string) bool {
	return strings.Contains(query, "plan") && strings.Contains(query, "trip")
}

func (qc *QueryClassifier) matchBookingStatus(query string) (Classification, bool) {
	if IsPlanningIntent(query) {
		return Classification{}, false
	}

	counting := bookingCount.MatchString(query)
	if !counting && !possessiveBooking.MatchString(query) {
		return Classification{}, false
	}

	return Classification{
		Category:     CategoryBookingStatus,
		StatusFilter: statusFilter(query, counting),
	}, true
}

func statusFilter(query string, counting bool) StatusFilter {
	switch {
	case strings.Contains(query, "cancelled") || strings.Contains(query, "canceled"):
		return FilterCancelled
	case strings.Contains(query, "accepted") || strings.Contains(query, "confirmed"):
		return FilterAccepted
	case strings.Contains(query, "pending"):
		return FilterPending
	case counting:
		return FilterCount
	default:
		return FilterMostRecent
	}
}

func (qc *QueryClassifier) matchGreeting(query string) (Classification, bool) {
	bare := strings.TrimRight(query, "!?.,")

	for _, greeting := range qc.greetings {
		if bare == greeting {
			return Classification{Category: CategoryGreeting}, true
		}
		if rest, ok := strings.CutPrefix(query, greeting); ok && rest != "" {
			if r := []rune(rest)[0]; unicode.IsSpace(r) {
				return Classification{Category: CategoryGreeting}, true
			}
		}
	}

	return Classification{}, false
}

func (qc *QueryClassifier) matchDestination(query string) (Classification, bool) {
	for _, dest := range qc.destinations {
		if containsWord(query, dest) {
			return Classification{Category: CategoryDestinationSpecific, Destination: dest}, true
		}
	}
	return Classification{}, false
}

func keywordRule(category Category, keywords []string) func(string) (Classification, bool) {
	return func(query string) (Classification, bool) {
		for _, keyword := range keywords {
			if strings.Contains(query, keyword) {
				return Classification{Category: category}, true
			}
		}
		return Classification{}, false
	}
}

// containsWord reports whether word appears in text bounded by non-letters
func containsWord(text, word string) bool {
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], word)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(word)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if boundary(before) && boundary(after) {
			return true
		}
		offset = start + 1
	}
	return false
}

// boundary reports whether r separates words. utf8.RuneError marks the edge
// of the text.
func boundary(r rune) bool {
	return r == utf8.RuneError || (!unicode.IsLetter(r) && !unicode.IsDigit(r))
}
