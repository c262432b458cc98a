package post

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mridulsharma03/snapnet-server/cmd/utils"
)

func TestDateFloor(t *testing.T) {
	now := time.Date(2025, time.March, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		filter string
		want   time.Time
	}{
		// calendar arithmetic: March 31 minus one month normalizes past
		// February's end
		{FilterThisMonth, time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)},
		{FilterLast6Months, time.Date(2024, time.October, 1, 12, 0, 0, 0, time.UTC)},
		{FilterLastYear, time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)},
		{FilterLast10Years, time.Date(2015, time.March, 31, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			got, err := DateFloor(tt.filter, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateFloorInvalidFilter(t *testing.T) {
	_, err := DateFloor("last_week", time.Now())
	require.Error(t, err)
	assert.Equal(t, utils.KindValidation, err.(*utils.APIError).Kind)
}
