package slot

import (
	"errors"
	"sync"
	"testing"
)

func TestSuggestSadLampSlot(t *testing.T) {
	tests := []struct {
		name     string
		daylight Daylight
		schedule []ScheduleItem
		want     string
	}{
		{
			name:     "empty schedule uses sunrise",
			daylight: Daylight{"07:00", "08:00"},
			want:     "07:00 AM",
		},
		{
			name:     "twelve hour daylight",
			daylight: Daylight{"7:31 AM", "4:52 PM"},
			schedule: []ScheduleItem{
				{StartTime: "7:00 AM", EndTime: "9:00 AM", Description: "commute"},
				{StartTime: "9:15 AM", EndTime: "12:00 PM", Description: "work"},
			},
			want: "12:00 PM",
		},
		{
			name:     "mixed formats",
			daylight: Daylight{"09:00", "18:00"},
			schedule: []ScheduleItem{
				{StartTime: "9:00", EndTime: "10:00", Description: "standup"},
				{StartTime: "11:00 AM", EndTime: "12:00 PM", Description: "review"},
			},
			want: "10:00 AM",
		},
		{
			name:     "short window",
			daylight: Daylight{"07:00", "07:20"},
			schedule: []ScheduleItem{{StartTime: "12:00", EndTime: "13:00"}},
			want:     NoSlotMessage,
		},
		{
			name:     "inverted window",
			daylight: Daylight{"18:00", "07:00"},
			want:     NoSlotMessage,
		},
		{
			name:     "fully booked",
			daylight: Daylight{"08:00", "16:00"},
			schedule: []ScheduleItem{{StartTime: "07:30", EndTime: "16:30", Description: "shift"}},
			want:     NoSlotMessage,
		},
		{
			name:     "bad sunrise",
			daylight: Daylight{"sunrise", "18:00"},
			want:     ErrorMessage,
		},
		{
			name:     "bad sunset",
			daylight: Daylight{"07:00", "N/A"},
			want:     ErrorMessage,
		},
		{
			name:     "bad schedule start defaults to midnight",
			daylight: Daylight{"07:00", "18:00"},
			schedule: []ScheduleItem{{StartTime: "soon", EndTime: "10:00", Description: "broken"}},
			want:     "10:00 AM",
		},
		{
			name:     "bad schedule end defaults to midnight",
			daylight: Daylight{"07:00", "18:00"},
			schedule: []ScheduleItem{{StartTime: "08:00", EndTime: "later", Description: "broken"}},
			want:     "07:00 AM",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SuggestSadLampSlot("2026-01-15", tc.daylight, tc.schedule)
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSuggest_Errors(t *testing.T) {
	_, err := Suggest("2026-01-15", Daylight{"25:00", "18:00"}, nil, Options{})
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("err = %v, want ErrInvalidWindow", err)
	}

	s, err := Suggest("2026-01-15", Daylight{"07:00", "18:00"},
		[]ScheduleItem{{StartTime: "??", EndTime: "11:00"}}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Found || s.Start != hm(11, 0) {
		t.Fatalf("got %+v, want slot at 11:00", s)
	}
}

func TestSuggest_SkipUnparseable(t *testing.T) {
	schedule := []ScheduleItem{{StartTime: "??", EndTime: "11:00", Description: "broken"}}
	s, err := Suggest("2026-01-15", Daylight{"07:00", "18:00"}, schedule, Options{SkipUnparseable: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Found || s.Start != hm(7, 0) || s.Message != "07:00 AM" {
		t.Fatalf("got %+v, want 07:00 AM", s)
	}
}

func TestSuggestSadLampSlot_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sunrise := "07:00"
			if i%2 == 1 {
				sunrise = "09:00"
			}
			results[i] = SuggestSadLampSlot("2026-01-15", Daylight{sunrise, "18:00"},
				[]ScheduleItem{{StartTime: "09:00", EndTime: "10:00"}})
		}(i)
	}
	wg.Wait()
	for i, got := range results {
		want := "07:00 AM"
		if i%2 == 1 {
			want = "10:00 AM"
		}
		if got != want {
			t.Errorf("call %d: got %q, want %q", i, got, want)
		}
	}
}
