package exchange

import "time"

const (
	IdentificationPeriodDays = 45
	ExchangePeriodDays       = 180
)

type Deadlines struct {
	Reference      time.Time `json:"reference_date"`
	Identification time.Time `json:"identification_deadline"`
	Completion     time.Time `json:"completion_deadline"`
}

// ReferenceDate picks close of escrow, then proceeds received, then start.
func ReferenceDate(closeOfEscrow, proceedsReceived, start *time.Time) (time.Time, bool) {
	for _, candidate := range []*time.Time{closeOfEscrow, proceedsReceived, start} {
		if candidate != nil && !candidate.IsZero() {
			return CalendarDate(*candidate), true
		}
	}
	return time.Time{}, false
}

// ComputeDeadlines returns the 45 and 180 day deadlines, counted in calendar
// days from the UTC date of the reference.
func ComputeDeadlines(closeOfEscrow, proceedsReceived, start *time.Time) (Deadlines, bool) {
	reference, ok := ReferenceDate(closeOfEscrow, proceedsReceived, start)
	if !ok {
		return Deadlines{}, false
	}
	return Deadlines{
		Reference:      reference,
		Identification: AddCalendarDays(reference, IdentificationPeriodDays),
		Completion:     AddCalendarDays(reference, ExchangePeriodDays),
	}, true
}

// CalendarDate truncates t to midnight UTC of its UTC date.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func AddCalendarDays(t time.Time, days int) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, time.UTC)
}

// ApplyDeadlines recomputes both deadlines from the exchange's dates. Without
// any reference date the deadlines are cleared.
func (e *Exchange) ApplyDeadlines() {
	deadlines, ok := ComputeDeadlines(e.CloseOfEscrowDate, e.ProceedsReceivedDate, e.StartDate)
	if !ok {
		e.IdentificationDeadline = nil
		e.CompletionDeadline = nil
		return
	}
	e.IdentificationDeadline = &deadlines.Identification
	e.CompletionDeadline = &deadlines.Completion
}

func (e *Exchange) HasReferenceDate() bool {
	_, ok := ReferenceDate(e.CloseOfEscrowDate, e.ProceedsReceivedDate, e.StartDate)
	return ok
}
