package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"DemandCast/internal/domain/models"
	"DemandCast/pkg/util"
)

// parseSalesCSV reads date,quantity rows. A first row whose date does not
// parse is treated as a header.
func parseSalesCSV(r io.Reader) ([]models.Observation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []models.Observation
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("csv line %d: want date,quantity", line)
		}
		day, ok := util.ParseDay(strings.TrimSpace(rec[0]))
		if !ok {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("csv line %d: bad date %q", line, rec[0])
		}
		qty, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: bad quantity %q", line, rec[1])
		}
		out = append(out, models.Observation{Date: day, Quantity: qty})
	}
	return out, nil
}
