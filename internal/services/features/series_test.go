package features

import (
	"errors"
	"testing"
	"time"

	"DemandCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeFillsGapsAndSumsDuplicates(t *testing.T) {
	obs := []models.Observation{
		{Date: day(2024, 3, 5), Quantity: 4},
		{Date: day(2024, 3, 1).Add(9 * time.Hour), Quantity: 2},
		{Date: day(2024, 3, 1).Add(15 * time.Hour), Quantity: 3},
		{Date: day(2024, 3, 3), Quantity: 1},
	}

	s, err := Normalize(obs, 1)
	require.NoError(t, err)
	require.Len(t, s, 5)

	assert.Equal(t, []float64{5, 0, 1, 0, 4}, s.Values())
	for i := 1; i < len(s); i++ {
		assert.Equal(t, s[i-1].Date.AddDate(0, 0, 1), s[i].Date, "day %d not consecutive", i)
	}
	assert.Equal(t, day(2024, 3, 1), s[0].Date)
	assert.Equal(t, day(2024, 3, 5), s.Last().Date)
}

func TestNormalizeClipsOutliersToMean(t *testing.T) {
	obs := make([]models.Observation, 0, 30)
	for i := 0; i < 29; i++ {
		obs = append(obs, models.Observation{Date: day(2024, 1, 1).AddDate(0, 0, i), Quantity: 10})
	}
	obs = append(obs, models.Observation{Date: day(2024, 1, 30), Quantity: 1000})

	s, err := Normalize(obs, 14)
	require.NoError(t, err)

	last := s.Last().Quantity
	assert.Less(t, last, 1000.0)
	assert.InDelta(t, (29*10+1000)/30.0, last, 1e-9)
}

func TestNormalizeConstantSeriesUnchanged(t *testing.T) {
	obs := make([]models.Observation, 0, 20)
	for i := 0; i < 20; i++ {
		obs = append(obs, models.Observation{Date: day(2024, 1, 1).AddDate(0, 0, i), Quantity: 7})
	}
	s, err := Normalize(obs, 14)
	require.NoError(t, err)
	for _, v := range s.Values() {
		assert.Equal(t, 7.0, v)
	}
}

func TestNormalizeNegativeQuantitiesClampedToZero(t *testing.T) {
	obs := []models.Observation{
		{Date: day(2024, 1, 1), Quantity: -5},
		{Date: day(2024, 1, 2), Quantity: 3},
	}
	s, err := Normalize(obs, 1)
	require.NoError(t, err)
	for _, v := range s.Values() {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestNormalizeInsufficientData(t *testing.T) {
	_, err := Normalize(nil, 14)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))

	obs := make([]models.Observation, 0, 5)
	for i := 0; i < 5; i++ {
		obs = append(obs, models.Observation{Date: day(2024, 1, 1).AddDate(0, 0, i), Quantity: 1})
	}
	_, err = Normalize(obs, 14)
	var ide *InsufficientDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 5, ide.Have)
	assert.Equal(t, 14, ide.Need)
}

func TestNormalizeBucketsByUTCDate(t *testing.T) {
	eat := time.FixedZone("EAT", 3*3600)
	start := time.Date(2024, 2, 1, 22, 30, 0, 0, time.UTC)

	obs := make([]models.Observation, 0, 14)
	for i := 0; i < 14; i++ {
		obs = append(obs, models.Observation{Date: start.AddDate(0, 0, i).In(eat), Quantity: 5})
	}

	s, err := Normalize(obs, 14)
	require.NoError(t, err)
	require.Len(t, s, 14)
	assert.Equal(t, day(2024, 2, 1), s[0].Date)
	assert.Equal(t, day(2024, 2, 14), s.Last().Date)
	assert.Equal(t, day(2024, 2, 1), Day(start.In(eat)))
}
