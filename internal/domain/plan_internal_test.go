package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAgeAt(t *testing.T) {
	date := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }

	tests := []struct {
		name  string
		birth time.Time
		now   time.Time
		want  int
	}{
		{name: "leap day before march birthday", birth: date(1999, time.March, 1), now: date(2024, time.February, 29), want: 24},
		{name: "march birthday in a leap year", birth: date(1999, time.March, 1), now: date(2024, time.March, 1), want: 25},
		{name: "leap born on a common year", birth: date(2000, time.February, 29), now: date(2023, time.February, 28), want: 22},
		{name: "leap born after february", birth: date(2000, time.February, 29), now: date(2023, time.March, 1), want: 23},
		{name: "december birthday from a leap year", birth: date(2004, time.December, 31), now: date(2025, time.December, 30), want: 20},
		{name: "birthday", birth: date(1990, time.May, 14), now: date(2025, time.May, 14), want: 35},
		{name: "future birth", birth: date(2030, time.January, 1), now: date(2025, time.May, 14), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ageAt(tt.birth, tt.now))
		})
	}
}
