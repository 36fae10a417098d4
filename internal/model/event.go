// Package model defines the core domain types for the seminar booking system.
package model

import "time"

// Variant tags which of the three mutually exclusive event shapes a record has.
type Variant int

const (
	// VariantSingle is a one-off event carrying topic and date attributes inline.
	VariantSingle Variant = 0
	// VariantTopic is the definition of a recurring seminar without own dates.
	VariantTopic Variant = 1
	// VariantDate is a scheduled occurrence of a topic.
	VariantDate Variant = 2
)

func (v Variant) String() string {
	switch v {
	case VariantSingle:
		return "single"
	case VariantTopic:
		return "topic"
	case VariantDate:
		return "date"
	default:
		return "unknown"
	}
}

// Status is the planning state of a single or date record.
type Status int

const (
	StatusPlanned   Status = 0
	StatusCanceled  Status = 1
	StatusConfirmed Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusPlanned:
		return "planned"
	case StatusCanceled:
		return "canceled"
	case StatusConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// ParseStatus maps a status name to its Status.
func ParseStatus(name string) (Status, bool) {
	switch name {
	case "planned":
		return StatusPlanned, true
	case "canceled":
		return StatusCanceled, true
	case "confirmed":
		return StatusConfirmed, true
	}
	return 0, false
}

// Prices holds the six price amounts of a topic-level record. An amount of 0
// means the price is not set (or, for the regular price, that the event is free).
type Prices struct {
	Regular      float64 `json:"regular"`
	RegularEarly float64 `json:"regular_early"`
	RegularBoard float64 `json:"regular_board"`
	Special      float64 `json:"special"`
	SpecialEarly float64 `json:"special_early"`
	SpecialBoard float64 `json:"special_board"`
}

// TopicDetails are the attributes a Date delegates to its Topic.
type TopicDetails struct {
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description string `json:"description"`
	EventTypeID int64  `json:"event_type_id"`
	Prices      Prices `json:"prices"`
}

// Event is a seminar record in one of the three variants. Only Date records
// carry a TopicID; Topic is populated when the record was loaded together
// with its topic.
type Event struct {
	ID      int64   `json:"uid"`
	PID     int64   `json:"pid"`
	Variant Variant `json:"variant"`
	TopicID int64   `json:"topic_uid,omitempty"`
	Topic   *Event  `json:"-"`

	Details TopicDetails `json:"details"`

	AccreditationNumber string `json:"accreditation_number,omitempty"`
	Language            string `json:"language,omitempty"`

	BeginDate            time.Time `json:"begin_date"`
	EndDate              time.Time `json:"end_date"`
	RegistrationDeadline time.Time `json:"registration_deadline"`
	EarlyBirdDeadline    time.Time `json:"early_bird_deadline"`
	Expiry               time.Time `json:"expiry"`

	NeedsRegistration bool `json:"needs_registration"`
	MaxAttendees      int  `json:"max_attendees"`
	OfflineAttendees  int  `json:"offline_attendees"`
	QueueEnabled      bool `json:"queue_enabled"`
	// RegularSeats is the sum of seats of visible, non-queued registrations.
	RegularSeats int `json:"regular_seats"`

	Status Status `json:"status"`

	OwnerID int64 `json:"owner_uid,omitempty"`

	CancelationReminderSent bool `json:"cancelation_reminder_sent"`
	TakesPlaceReminderSent  bool `json:"takes_place_reminder_sent"`
	Hidden                  bool `json:"hidden"`
}

// GetID returns the record uid.
func (e *Event) GetID() int64 { return e.ID }

// IsTopic reports whether e is a Topic record.
func (e *Event) IsTopic() bool { return e.Variant == VariantTopic }

// IsDate reports whether e is a Date record.
func (e *Event) IsDate() bool { return e.Variant == VariantDate }

// IsSingle reports whether e is a Single record.
func (e *Event) IsSingle() bool { return e.Variant == VariantSingle }

// TopicUID is the uid of the record holding e's topic-level attributes.
func (e *Event) TopicUID() int64 {
	if e.IsDate() {
		return e.TopicID
	}
	return e.ID
}

// TopicDetails returns the topic-level attributes of e. For a Date these are
// taken from its loaded topic; a Date whose topic was not loaded yields its
// own (usually empty) details.
func (e *Event) TopicDetails() TopicDetails {
	if e.IsDate() && e.Topic != nil {
		return e.Topic.Details
	}
	return e.Details
}

// Title is the topic-level title of e.
func (e *Event) Title() string { return e.TopicDetails().Title }

// HasBeginDate reports whether a begin date is set.
func (e *Event) HasBeginDate() bool { return !e.BeginDate.IsZero() }

// HasEndDate reports whether an end date is set.
func (e *Event) HasEndDate() bool { return !e.EndDate.IsZero() }

// HasEarlyBirdDeadline reports whether an early-bird deadline is set.
func (e *Event) HasEarlyBirdDeadline() bool { return !e.EarlyBirdDeadline.IsZero() }
