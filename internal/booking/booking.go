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

// Package booking reads a user's booking snapshot from the backend service.
package booking

import (
	"strings"
	"time"
)

// Known booking statuses. The backend may report others.
const (
	StatusAccepted  = "accepted"
	StatusPending   = "pending"
	StatusCancelled = "cancelled"
)

// Booking is one reservation row as returned by the backend
type Booking struct {
	ID           int64  `json:"id"`
	PropertyName string `json:"property_name"`
	Location     string `json:"location"`
	City         string `json:"city"`
	Country      string `json:"country,omitempty"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	NumGuests    int    `json:"num_guests"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// Place returns the most specific human-readable location of the booking
func (b Booking) Place() string {
	city := strings.TrimSpace(b.City)
	country := strings.TrimSpace(b.Country)

	switch {
	case city != "" && country != "":
		return city + ", " + country
	case city != "":
		return city
	case strings.TrimSpace(b.Location) != "":
		return strings.TrimSpace(b.Location)
	default:
		return strings.TrimSpace(b.PropertyName)
	}
}

// NormalizedStatus lowercases the status and folds the American spelling
func (b Booking) NormalizedStatus() string {
	status := strings.ToLower(strings.TrimSpace(b.Status))
	if status == "canceled" {
		return StatusCancelled
	}
	return status
}

// CheckIn returns the start date without a time component
func (b Booking) CheckIn() string {
	return FormatDate(b.StartDate)
}

// CheckOut returns the end date without a time component
func (b Booking) CheckOut() string {
	return FormatDate(b.EndDate)
}

// FormatDate trims a backend timestamp to YYYY-MM-DD when it parses,
// and returns the input unchanged otherwise.
func FormatDate(value string) string {
	value = strings.TrimSpace(value)
	if t, ok := parseTime(value); ok {
		return t.Format("2006-01-02")
	}
	return value
}

func parseTime(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Counts aggregates bookings by status
type Counts struct {
	Total     int `json:"total"`
	Accepted  int `json:"accepted"`
	Pending   int `json:"pending"`
	Cancelled int `json:"cancelled"`
	Other     int `json:"other"`
}

// Tally counts bookings per status
func Tally(bookings []Booking) Counts {
	counts := Counts{Total: len(bookings)}
	for _, b := range bookings {
		switch b.NormalizedStatus() {
		case StatusAccepted:
			counts.Accepted++
		case StatusPending:
			counts.Pending++
		case StatusCancelled:
			counts.Cancelled++
		default:
			counts.Other++
		}
	}
	return counts
}

// Filter returns the bookings with the given status, preserving order
func Filter(bookings []Booking, status string) []Booking {
	var matched []Booking
	for _, b := range bookings {
		if b.NormalizedStatus() == status {
			matched = append(matched, b)
		}
	}
	return matched
}

// MostRecent returns the booking created last. The backend lists bookings
// newest first, so that order decides when creation times are missing or tied.
func MostRecent(bookings []Booking) (Booking, bool) {
	if len(bookings) == 0 {
		return Booking{}, false
	}

	latest := bookings[0]
	latestAt, latestOK := parseTime(latest.CreatedAt)
	for _, b := range bookings[1:] {
		createdAt, ok := parseTime(b.CreatedAt)
		if ok && (!latestOK || createdAt.After(latestAt)) {
			latest, latestAt, latestOK = b, createdAt, true
		}
	}

	return latest, true
}
