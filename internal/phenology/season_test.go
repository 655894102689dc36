package phenology

import (
	"testing"
	"time"
)

func TestSeasonYearOf(t *testing.T) {
	tests := []struct {
		name     string
		date     time.Time
		latitude float64
		want     int
	}{
		{
			name:     "northern site uses calendar year",
			date:     time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC),
			latitude: 48.2,
			want:     2021,
		},
		{
			name:     "northern december stays in its year",
			date:     time.Date(2021, 12, 30, 0, 0, 0, 0, time.UTC),
			latitude: 48.2,
			want:     2021,
		},
		{
			name:     "southern spring belongs to next January year",
			date:     time.Date(2020, 10, 1, 0, 0, 0, 0, time.UTC),
			latitude: -33.9,
			want:     2021,
		},
		{
			name:     "southern autumn belongs to its January year",
			date:     time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC),
			latitude: -33.9,
			want:     2021,
		},
		{
			name:     "southern june closes the season",
			date:     time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC),
			latitude: -33.9,
			want:     2021,
		},
		{
			name:     "southern july opens the next season",
			date:     time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC),
			latitude: -33.9,
			want:     2022,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SeasonYearOf(tt.date, tt.latitude); got != tt.want {
				t.Errorf("expected season %d, got %d", tt.want, got)
			}
		})
	}
}

func TestSeasonDayRoundtrip(t *testing.T) {
	tests := []struct {
		name     string
		date     time.Time
		latitude float64
		wantDay  float64
	}{
		{
			name:     "northern january first is day 1",
			date:     time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
			latitude: 48.2,
			wantDay:  1,
		},
		{
			name:     "northern february first is day 32",
			date:     time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC),
			latitude: 48.2,
			wantDay:  32,
		},
		{
			name:     "southern july first is day 1",
			date:     time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC),
			latitude: -33.9,
			wantDay:  1,
		},
		{
			name:     "southern october first is day 93",
			date:     time.Date(2020, 10, 1, 0, 0, 0, 0, time.UTC),
			latitude: -33.9,
			wantDay:  93,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day := SeasonDay(tt.date, tt.latitude)
			if day != tt.wantDay {
				t.Errorf("expected day %v, got %v", tt.wantDay, day)
			}

			year := SeasonYearOf(tt.date, tt.latitude)
			back := SeasonDate(year, tt.latitude, day)
			if !back.Equal(tt.date) {
				t.Errorf("roundtrip mismatch: %v -> day %v -> %v", tt.date, day, back)
			}
		})
	}
}

func TestSeasonStart(t *testing.T) {
	north := SeasonStart(2021, 48.2)
	if !north.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("northern season 2021 should start Jan 1 2021, got %v", north)
	}

	south := SeasonStart(2021, -33.9)
	if !south.Equal(time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("southern season 2021 should start Jul 1 2020, got %v", south)
	}
}
