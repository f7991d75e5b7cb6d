package availability

import (
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorconnect/core"
)

func clock(t *testing.T, s string) core.Clock {
	c, err := core.ParseClock(s)
	require.NoError(t, err)
	return c
}

func TestCovers(t *testing.T) {
	slots := []Slot{
		{DayOfWeek: "Monday", StartTime: clock(t, "09:00"), EndTime: clock(t, "12:00")},
		{DayOfWeek: "Wednesday", StartTime: clock(t, "14:00"), EndTime: clock(t, "16:30")},
	}
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday
	goma := time.FixedZone("CAT", 2*3600)

	tests := []struct {
		name string
		t    time.Time
		loc  *time.Location
		want bool
	}{
		{"start bound", monday.Add(9 * time.Hour), time.UTC, true},
		{"inside", monday.Add(11*time.Hour + 59*time.Minute), time.UTC, true},
		{"end bound", monday.Add(12 * time.Hour), time.UTC, false},
		{"before", monday.Add(8*time.Hour + 59*time.Minute), time.UTC, false},
		{"other day", monday.Add(24*time.Hour + 10*time.Hour), time.UTC, false},
		{"second slot", monday.AddDate(0, 0, 2).Add(16 * time.Hour), time.UTC, true},
		{"read in local time", monday.Add(7 * time.Hour), goma, true},   // 09:00 CAT
		{"inside in local time", monday.Add(9 * time.Hour), goma, true}, // 11:00 CAT
		{"utc slot not local", monday.Add(11 * time.Hour), goma, false}, // 13:00 CAT
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Covers(slots, tt.t, tt.loc))
		})
	}

	assert.False(t, Covers(nil, monday.Add(10*time.Hour), time.UTC))
}

func TestSort(t *testing.T) {
	slots := []Slot{
		{DayOfWeek: "Sunday", StartTime: clock(t, "10:00")},
		{DayOfWeek: "Wednesday", StartTime: clock(t, "14:00")},
		{DayOfWeek: "Monday", StartTime: clock(t, "15:00")},
		{DayOfWeek: "Monday", StartTime: clock(t, "08:00")},
	}
	Sort(slots)

	var got []string
	for _, s := range slots {
		got = append(got, s.DayOfWeek+" "+s.StartTime.String())
	}
	assert.Equal(t, []string{"Monday 08:00:00", "Monday 15:00:00", "Wednesday 14:00:00", "Sunday 10:00:00"}, got)
}

func TestUpdate_Validate(t *testing.T) {
	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	fields := func(err error) map[string]string {
		vErrs, ok := err.(validator.ValidationErrors)
		require.True(t, ok, "got %T", err)
		res := make(map[string]string)
		for _, fe := range core.TranslateFieldErrors(vErrs, translator) {
			res[fe.Field] = fe.Error
		}
		return res
	}

	tests := []struct {
		name       string
		slot       NewSlot
		wantFields map[string]string
	}{
		{name: "valid", slot: NewSlot{DayOfWeek: " tuesday ", StartTime: "09:00", EndTime: "10:30"}},
		{
			name:       "missing",
			slot:       NewSlot{},
			wantFields: map[string]string{"day_of_week": "this field is required", "start_time": "this field is required", "end_time": "this field is required"},
		},
		{
			name:       "bad values",
			slot:       NewSlot{DayOfWeek: "Someday", StartTime: "9am", EndTime: "10:00"},
			wantFields: map[string]string{"day_of_week": "day_of_week must be a day of the week", "start_time": "start_time must be a time of day (HH:MM)"},
		},
		{
			name:       "end before start",
			slot:       NewSlot{DayOfWeek: "Friday", StartTime: "10:00", EndTime: "10:00"},
			wantFields: map[string]string{"end_time": "end_time must be after start_time"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := Update{Slots: []NewSlot{tt.slot}}
			err := up.Validate(validate)
			if tt.wantFields == nil {
				require.NoError(t, err)
				assert.Equal(t, Slot{TutorID: 3, DayOfWeek: "Tuesday", StartTime: clock(t, "09:00"), EndTime: clock(t, "10:30")}, up.Slots[0].toSlot(3))
				return
			}
			assert.Equal(t, tt.wantFields, fields(err))
		})
	}
}
