// Package capacity does the seat accounting of events: booked seats,
// vacancies and whether a registration for some seats can be accepted.
package capacity

import (
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/seminars/internal/model"
)

// BookedSeats counts regular registrations plus offline attendees.
func BookedSeats(e *model.Event) int {
	return e.RegularSeats + e.OfflineAttendees
}

// IsUnlimited reports whether e accepts any number of attendees.
func IsUnlimited(e *model.Event) bool {
	return !e.NeedsRegistration || e.MaxAttendees <= 0
}

// Vacancies returns the free regular seats and false, or 0 and true when the
// event is unlimited. The count never drops below 0.
func Vacancies(e *model.Event) (int, bool) {
	if IsUnlimited(e) {
		return 0, true
	}
	free := e.MaxAttendees - BookedSeats(e)
	if free < 0 {
		free = 0
	}
	return free, false
}

// HasVacancy reports whether at least one more regular seat is available.
func HasVacancy(e *model.Event) bool {
	free, unlimited := Vacancies(e)
	return unlimited || free > 0
}

// IsFull is the negation of HasVacancy.
func IsFull(e *model.Event) bool {
	return !HasVacancy(e)
}

// CanRegisterSeats reports whether a registration for the requested number of
// seats can be accepted. An empty request means one seat; a non-numeric
// request is rejected. With a waitlist every request is accepted, the
// overflow going to the queue.
func CanRegisterSeats(e *model.Event, requested string) bool {
	requested = strings.TrimSpace(requested)
	seats := 1
	if requested != "" {
		n, err := strconv.Atoi(requested)
		if err != nil {
			return false
		}
		seats = n
	}

	if IsUnlimited(e) || e.QueueEnabled {
		return true
	}
	free, _ := Vacancies(e)
	return seats >= 0 && seats <= free
}
