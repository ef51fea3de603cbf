package slot

import (
	"testing"
)

func hm(h, m int) TimeOfDay { return TimeOfDay(h*60 + m) }

func TestFindFreeSlot(t *testing.T) {
	tests := []struct {
		name   string
		window DaylightWindow
		busy   []BusyInterval
		want   TimeOfDay
		wantOK bool
	}{
		{
			name:   "gap before first interval",
			window: DaylightWindow{hm(7, 0), hm(18, 0)},
			busy:   []BusyInterval{{hm(9, 0), hm(10, 0), "a"}, {hm(11, 0), hm(12, 0), "b"}},
			want:   hm(7, 0), wantOK: true,
		},
		{
			name:   "first interval starts at sunrise",
			window: DaylightWindow{hm(9, 0), hm(18, 0)},
			busy:   []BusyInterval{{hm(9, 0), hm(10, 0), "a"}, {hm(11, 0), hm(12, 0), "b"}},
			want:   hm(10, 0), wantOK: true,
		},
		{
			name:   "nested interval absorbed",
			window: DaylightWindow{hm(9, 0), hm(18, 0)},
			busy:   []BusyInterval{{hm(9, 0), hm(11, 0), "outer"}, {hm(10, 0), hm(10, 30), "inner"}},
			want:   hm(11, 0), wantOK: true,
		},
		{
			name:   "nested interval does not open a false gap",
			window: DaylightWindow{hm(9, 0), hm(18, 0)},
			busy: []BusyInterval{
				{hm(9, 0), hm(11, 0), "outer"},
				{hm(10, 0), hm(10, 30), "inner"},
				{hm(11, 10), hm(17, 0), "late"},
			},
			want: hm(17, 0), wantOK: true,
		},
		{
			name:   "unsorted input",
			window: DaylightWindow{hm(8, 0), hm(12, 0)},
			busy:   []BusyInterval{{hm(9, 0), hm(12, 0), "b"}, {hm(8, 0), hm(8, 45), "a"}},
			want:   0, wantOK: false,
		},
		{
			name:   "gap of exactly thirty minutes",
			window: DaylightWindow{hm(8, 0), hm(12, 0)},
			busy:   []BusyInterval{{hm(8, 0), hm(9, 0), "a"}, {hm(9, 30), hm(12, 0), "b"}},
			want:   hm(9, 0), wantOK: true,
		},
		{
			name:   "empty schedule",
			window: DaylightWindow{hm(7, 0), hm(8, 0)},
			want:   hm(7, 0), wantOK: true,
		},
		{
			name:   "window shorter than minimum",
			window: DaylightWindow{hm(7, 0), hm(7, 20)},
			wantOK: false,
		},
		{
			name:   "window shorter than minimum with schedule",
			window: DaylightWindow{hm(7, 0), hm(7, 20)},
			busy:   []BusyInterval{{hm(12, 0), hm(13, 0), "lunch"}},
			wantOK: false,
		},
		{
			name:   "inverted window",
			window: DaylightWindow{hm(18, 0), hm(7, 0)},
			wantOK: false,
		},
		{
			name:   "inverted window with later busy interval",
			window: DaylightWindow{hm(18, 0), hm(7, 0)},
			busy:   []BusyInterval{{hm(20, 0), hm(21, 0), "evening"}},
			wantOK: false,
		},
		{
			name:   "busy past sunset never yields a slot after sunset",
			window: DaylightWindow{hm(7, 0), hm(16, 0)},
			busy:   []BusyInterval{{hm(6, 0), hm(17, 0), "work"}, {hm(19, 0), hm(20, 0), "gym"}},
			wantOK: false,
		},
		{
			name:   "gap truncated by sunset",
			window: DaylightWindow{hm(7, 0), hm(16, 0)},
			busy:   []BusyInterval{{hm(6, 0), hm(15, 50), "work"}, {hm(18, 0), hm(19, 0), "gym"}},
			wantOK: false,
		},
		{
			name:   "busy before sunrise is ignored",
			window: DaylightWindow{hm(8, 0), hm(16, 0)},
			busy:   []BusyInterval{{hm(5, 0), hm(6, 0), "run"}},
			want:   hm(8, 0), wantOK: true,
		},
		{
			name:   "midnight default entry occupies the morning",
			window: DaylightWindow{hm(7, 0), hm(17, 0)},
			busy:   []BusyInterval{{0, hm(10, 0), "bad start"}},
			want:   hm(10, 0), wantOK: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := FindFreeSlot(tc.window, tc.busy, MinSlotDuration)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v (got %s)", ok, tc.wantOK, got.Clock())
			}
			if !ok {
				return
			}
			if got != tc.want {
				t.Fatalf("slot = %s, want %s", got.Clock(), tc.want.Clock())
			}
			if got < tc.window.Sunrise || got >= tc.window.Sunset {
				t.Fatalf("slot %s outside window", got.Clock())
			}
			for _, iv := range tc.busy {
				if got >= iv.Start && got < iv.End {
					t.Fatalf("slot %s inside busy interval %q", got.Clock(), iv.Label)
				}
			}
		})
	}
}

func TestFindFreeSlot_DoesNotMutateInput(t *testing.T) {
	busy := []BusyInterval{{hm(11, 0), hm(12, 0), "b"}, {hm(9, 0), hm(10, 0), "a"}}
	FindFreeSlot(DaylightWindow{hm(9, 0), hm(18, 0)}, busy, MinSlotDuration)
	if busy[0].Label != "b" || busy[1].Label != "a" {
		t.Fatalf("input reordered: %+v", busy)
	}
}

func TestFindFreeSlot_StableTies(t *testing.T) {
	busy := []BusyInterval{
		{hm(9, 0), hm(9, 10), "short"},
		{hm(9, 0), hm(11, 0), "long"},
	}
	got, ok := FindFreeSlot(DaylightWindow{hm(9, 0), hm(18, 0)}, busy, MinSlotDuration)
	if !ok || got != hm(11, 0) {
		t.Fatalf("got %s, %v; want 11:00", got.Clock(), ok)
	}
}
