package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSalesCSV(t *testing.T) {
	in := "date,quantity\n2024-01-01,5\n 2024-01-02 , 7.5\n2024-01-03T10:00:00Z,3\n"
	obs, err := parseSalesCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), obs[0].Date)
	assert.Equal(t, 7.5, obs[1].Quantity)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), obs[2].Date)
}

func TestParseSalesCSVWithoutHeader(t *testing.T) {
	obs, err := parseSalesCSV(strings.NewReader("2024-02-01,1\n2024-02-02,2\n"))
	require.NoError(t, err)
	assert.Len(t, obs, 2)
}

func TestParseSalesCSVErrors(t *testing.T) {
	cases := map[string]string{
		"bad date":     "2024-01-01,1\nyesterday,2\n",
		"bad quantity": "2024-01-01,lots\n",
		"one column":   "2024-01-01\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseSalesCSV(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}
