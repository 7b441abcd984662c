package datasource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ukydev/road-vision/internal/models"
)

// readRows reads every data row of a CSV stream after discarding the header,
// checking each row has exactly arity fields.
func readRows(r io.Reader, name string, arity int, fn func(fields []string) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return &ParseError{File: name, Err: errors.New("missing header row")}
		}
		return &ParseError{File: name, Err: err}
	}

	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &ParseError{File: name, Err: err}
		}
		line, _ := reader.FieldPos(0)
		if len(fields) != arity {
			return &ParseError{File: name, Line: line, Err: fmt.Errorf("expected %d fields, got %d", arity, len(fields))}
		}
		if err := fn(fields); err != nil {
			return &ParseError{File: name, Line: line, Err: err}
		}
	}
}

func parseInt(field string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", field)
	}
	return v, nil
}

func parseFloat(field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid number %q", field)
	}
	return v, nil
}

// ReadAccelerometer parses x,y,z integer rows.
func ReadAccelerometer(r io.Reader, name string) ([]models.Accelerometer, error) {
	var out []models.Accelerometer
	err := readRows(r, name, 3, func(fields []string) error {
		var axes [3]int
		for i, f := range fields {
			v, err := parseInt(f)
			if err != nil {
				return err
			}
			axes[i] = v
		}
		out = append(out, models.Accelerometer{X: axes[0], Y: axes[1], Z: axes[2]})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadGps parses longitude,latitude rows.
func ReadGps(r io.Reader, name string) ([]models.Gps, error) {
	var out []models.Gps
	err := readRows(r, name, 2, func(fields []string) error {
		gps, err := parseGps(fields[0], fields[1])
		if err != nil {
			return err
		}
		out = append(out, gps)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadParking parses empty_count,longitude,latitude rows. The count may be
// written as a float but must be a whole non-negative number.
func ReadParking(r io.Reader, name string) ([]models.Parking, error) {
	var out []models.Parking
	err := readRows(r, name, 3, func(fields []string) error {
		count, err := parseFloat(fields[0])
		if err != nil {
			return err
		}
		if count < 0 || count != math.Trunc(count) {
			return fmt.Errorf("empty_count %q is not a non-negative integer", fields[0])
		}
		gps, err := parseGps(fields[1], fields[2])
		if err != nil {
			return err
		}
		out = append(out, models.Parking{EmptyCount: int(count), Gps: gps})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseGps(lonField, latField string) (models.Gps, error) {
	lon, err := parseFloat(lonField)
	if err != nil {
		return models.Gps{}, err
	}
	lat, err := parseFloat(latField)
	if err != nil {
		return models.Gps{}, err
	}
	return models.Gps{Longitude: lon, Latitude: lat}, nil
}
