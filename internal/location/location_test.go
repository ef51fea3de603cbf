package location

import (
	"context"
	"testing"

	"sadlamp/internal/config"
	"sadlamp/internal/kvstore"
	"sadlamp/internal/weather"
)

func TestStored_Current(t *testing.T) {
	ctx := context.Background()
	paris := weather.Coordinates{Latitude: 48.8566, Longitude: 2.3522}
	oslo := config.LocationConfig{Latitude: 59.91, Longitude: 10.75}

	tests := []struct {
		name       string
		cfg        config.LocationConfig
		saved      *weather.Coordinates
		want       weather.Coordinates
		wantSource Source
	}{
		{
			name:       "nothing configured",
			want:       weather.Coordinates{Latitude: config.DefaultLatitude, Longitude: config.DefaultLongitude},
			wantSource: SourceDefault,
		},
		{
			name:       "config only",
			cfg:        oslo,
			want:       weather.Coordinates{Latitude: 59.91, Longitude: 10.75},
			wantSource: SourceConfig,
		},
		{
			name:       "device wins over config",
			cfg:        oslo,
			saved:      &paris,
			want:       paris,
			wantSource: SourceDevice,
		},
		{
			name:       "use_default ignores device",
			cfg:        config.LocationConfig{Latitude: 59.91, Longitude: 10.75, UseDefault: true},
			saved:      &paris,
			want:       weather.Coordinates{Latitude: 59.91, Longitude: 10.75},
			wantSource: SourceConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewStored(kvstore.NewMemoryStore(), tt.cfg)
			if tt.saved != nil {
				if err := p.Save(ctx, *tt.saved); err != nil {
					t.Fatalf("Save: %v", err)
				}
			}
			got, err := p.Current(ctx)
			if err != nil {
				t.Fatalf("Current: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Current = %+v, want %+v", got, tt.want)
			}
			if p.LastSource() != tt.wantSource {
				t.Fatalf("LastSource = %s, want %s", p.LastSource(), tt.wantSource)
			}
		})
	}
}

func TestStored_SaveRejectsInvalid(t *testing.T) {
	p := NewStored(kvstore.NewMemoryStore(), config.LocationConfig{})
	if err := p.Save(context.Background(), weather.Coordinates{Latitude: 120}); err == nil {
		t.Fatal("Save accepted latitude 120")
	}
}

func TestStored_CorruptRecordFallsBack(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	if err := kv.Set(ctx, kvstore.KeyUserLocation, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	p := NewStored(kv, config.LocationConfig{})
	got, err := p.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if got.Latitude != config.DefaultLatitude {
		t.Fatalf("Current = %+v, want default", got)
	}
}
