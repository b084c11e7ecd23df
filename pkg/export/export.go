// Package export writes battery snapshot history in CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/kilianp07/essim/core/model"
)

// Header is the column layout of WriteCSV.
var Header = []string{
	"tick", "phase", "site_id", "battery_id", "state",
	"rate_kw", "energy_kwh", "capacity_kwh", "soc", "clipped",
}

// WriteJSON writes the snapshots to w as a JSON array.
func WriteJSON(w io.Writer, snaps []model.BatterySnapshot) error {
	if snaps == nil {
		snaps = []model.BatterySnapshot{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snaps)
}

// WriteCSV writes the snapshots to w in CSV format with a header row.
func WriteCSV(w io.Writer, snaps []model.BatterySnapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, s := range snaps {
		rec := []string{
			strconv.Itoa(s.Tick),
			string(s.Phase),
			s.SiteID,
			s.BatteryID,
			s.State.String(),
			formatFloat(s.RateKW),
			formatFloat(s.EnergyKWh),
			formatFloat(s.CapacityKWh),
			formatFloat(s.StateOfCharge()),
			strconv.FormatBool(s.Clipped),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write dispatches on format ("csv" or "json").
func Write(w io.Writer, format string, snaps []model.BatterySnapshot) error {
	switch format {
	case "csv":
		return WriteCSV(w, snaps)
	case "json", "":
		return WriteJSON(w, snaps)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
