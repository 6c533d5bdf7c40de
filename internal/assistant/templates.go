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
	"fmt"
	"strings"

	"github.com/your-org/travel-assistant/internal/booking"
	"github.com/your-org/travel-assistant/internal/classifier"
)

// Fixed replies that never involve a provider
const (
	GreetingMessage = "Hello! I'm your AI Travel Assistant. How can I help you plan your next adventure? I can help with:\n\n" +
		"• Travel itineraries for any destination\n" +
		"• Restaurant and activity recommendations\n" +
		"• Packing lists and travel tips\n" +
		"• Checking the status of your bookings\n\n" +
		"What would you like to know?"

	HelpMessage = "I'm here to help you plan amazing trips! Here's what I can do:\n\n" +
		"• Travel Planning: Create detailed itineraries for any destination\n" +
		"• Food & Activities: Recommend restaurants, attractions, and experiences\n" +
		"• Travel Tips: Provide packing lists, cultural advice, and practical tips\n" +
		"• Your Bookings: Tell you about your upcoming, pending, or cancelled trips\n\n" +
		"Just tell me where you're going or what you need help with!"

	ThanksMessage = "You're very welcome! I'm always here to help with your travel planning. " +
		"Feel free to ask me anything about your upcoming trips or destinations you're curious about!"

	// DegradedMessage is returned whenever a generated answer cannot be produced
	DegradedMessage = "I'm having trouble creating a personalized travel plan right now, but I can still help with:\n\n" +
		"• Your bookings: ask \"show my trips\" or \"how many bookings do I have\"\n" +
		"• Packing checklists for your destination\n" +
		"• Restaurant suggestions for your destination\n" +
		"• A quick overview of what I can do: just ask for help\n\n" +
		"Please try your travel planning question again in a few minutes."

	LoginRequiredMessage = "Please log in so I can look up your bookings."
	NoBookingsMessage    = "I couldn't find any bookings for your account yet. Once you book a stay, I can tell you all about it here."
)

// templateText returns the fixed reply for template categories
func templateText(category classifier.Category) (string, bool) {
	switch category {
	case classifier.CategoryGreeting:
		return GreetingMessage, true
	case classifier.CategoryHelp:
		return HelpMessage, true
	case classifier.CategoryThanks:
		return ThanksMessage, true
	default:
		return "", false
	}
}

// BookingText renders the answer to a booking-status query
func BookingText(filter classifier.StatusFilter, bookings []booking.Booking) string {
	if len(bookings) == 0 {
		return NoBookingsMessage
	}

	switch filter {
	case classifier.FilterCount:
		return countText(booking.Tally(bookings))
	case classifier.FilterCancelled, classifier.FilterAccepted, classifier.FilterPending:
		return statusText(string(filter), booking.Filter(bookings, string(filter)))
	default:
		latest, _ := booking.MostRecent(bookings)
		return "Your most recent booking:\n" + describe(latest)
	}
}

func countText(counts booking.Counts) string {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("You have %d %s in total:\n", counts.Total, plural(counts.Total, "booking")))
	text.WriteString(fmt.Sprintf("• Accepted: %d\n", counts.Accepted))
	text.WriteString(fmt.Sprintf("• Pending: %d\n", counts.Pending))
	text.WriteString(fmt.Sprintf("• Cancelled: %d", counts.Cancelled))
	if counts.Other > 0 {
		text.WriteString(fmt.Sprintf("\n• Other: %d", counts.Other))
	}
	return text.String()
}

func statusText(status string, matched []booking.Booking) string {
	if len(matched) == 0 {
		return fmt.Sprintf("You have no %s trips.", status)
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("You have %d %s %s:", len(matched), status, plural(len(matched), "trip")))
	for _, b := range matched {
		text.WriteString(fmt.Sprintf("\n• %s (%s to %s)", placeOrUnknown(b), b.CheckIn(), b.CheckOut()))
	}
	return text.String()
}

func describe(b booking.Booking) string {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("• Destination: %s\n", placeOrUnknown(b)))
	text.WriteString(fmt.Sprintf("• Check-in: %s\n", b.CheckIn()))
	text.WriteString(fmt.Sprintf("• Check-out: %s\n", b.CheckOut()))
	text.WriteString(fmt.Sprintf("• Guests: %d\n", b.NumGuests))
	text.WriteString(fmt.Sprintf("• Status: %s", b.NormalizedStatus()))
	return text.String()
}

func placeOrUnknown(b booking.Booking) string {
	if place := b.Place(); place != "" {
		return place
	}
	return "Unknown location"
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
