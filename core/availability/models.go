package availability

import (
	"sort"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tutorconnect/core"
)

var (
	slotOrderTag  = "slotorder"
	slotOrderText = "end_time must be after start_time"
)

// Slot is a recurring weekly window during which a tutor accepts bookings.
type Slot struct {
	ID        int        `json:"id,omitempty" db:"id"`
	TutorID   int        `json:"tutor_id,omitempty" db:"tutor_id"`
	DayOfWeek string     `json:"day_of_week" db:"day_of_week"`
	StartTime core.Clock `json:"start_time" db:"start_time"`
	EndTime   core.Clock `json:"end_time" db:"end_time"`
}

// Contains reports whether t, read in its own location, falls inside the window.
// The end bound is exclusive.
func (s Slot) Contains(t time.Time) bool {
	if !strings.EqualFold(s.DayOfWeek, t.Weekday().String()) {
		return false
	}
	clock := core.ClockOf(t)
	return s.StartTime <= clock && clock < s.EndTime
}

// Covers reports whether any slot contains t once converted to loc.
func Covers(slots []Slot, t time.Time, loc *time.Location) bool {
	lt := t.In(loc)
	for _, s := range slots {
		if s.Contains(lt) {
			return true
		}
	}
	return false
}

// Sort orders slots Monday to Sunday, then by start time.
func Sort(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		di, dj := weekdayIndex(slots[i].DayOfWeek), weekdayIndex(slots[j].DayOfWeek)
		if di != dj {
			return di < dj
		}
		return slots[i].StartTime < slots[j].StartTime
	})
}

// weekdayIndex is 0 for Monday, 6 for Sunday.
func weekdayIndex(day string) int {
	d, ok := core.ParseWeekday(day)
	if !ok {
		return 7
	}
	return (int(d) + 6) % 7
}

type NewSlot struct {
	DayOfWeek string `json:"day_of_week" validate:"required,weekday"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
}

func (ns NewSlot) toSlot(tutorID int) Slot {
	day, _ := core.ParseWeekday(ns.DayOfWeek)
	start, _ := core.ParseClock(ns.StartTime)
	end, _ := core.ParseClock(ns.EndTime)
	return Slot{TutorID: tutorID, DayOfWeek: day.String(), StartTime: start, EndTime: end}
}

// Update replaces the whole weekly availability of a tutor.
type Update struct {
	Slots []NewSlot `json:"slots" validate:"dive"`
}

func (up *Update) Validate(validate *validator.Validate) error {
	for i := range up.Slots {
		up.Slots[i].DayOfWeek = core.CleanString(up.Slots[i].DayOfWeek)
		up.Slots[i].StartTime = core.CleanString(up.Slots[i].StartTime)
		up.Slots[i].EndTime = core.CleanString(up.Slots[i].EndTime)
	}
	return validate.Struct(up)
}

// InitValidators registers the availability validators; call once after core.InitValidators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(slotStructValidation, NewSlot{})
	core.RegisterCustomTranslation(validate, translator, slotOrderTag, slotOrderText)
}

func slotStructValidation(sl validator.StructLevel) {
	ns, ok := sl.Current().Interface().(NewSlot)
	if !ok {
		return
	}
	start, err1 := core.ParseClock(ns.StartTime)
	end, err2 := core.ParseClock(ns.EndTime)
	if err1 != nil || err2 != nil {
		return // left to `clock`
	}
	if end <= start {
		sl.ReportError(ns.EndTime, "end_time", "EndTime", slotOrderTag, "")
	}
}
