// Package datasource reads sensor CSV files and aligns them into agent samples.
package datasource

import (
	"fmt"
	"os"
	"time"

	"github.com/ukydev/road-vision/internal/models"
)

// FileDatasource reads the three sensor files of one agent.
type FileDatasource struct {
	AccelerometerFile string
	GpsFile           string
	ParkingFile       string
	UserID            int64

	// Now stamps aggregated samples; defaults to time.Now.
	Now func() time.Time
}

// NewFileDatasource creates a datasource for the given files and user.
func NewFileDatasource(accelerometerFile, gpsFile, parkingFile string, userID int64) *FileDatasource {
	return &FileDatasource{
		AccelerometerFile: accelerometerFile,
		GpsFile:           gpsFile,
		ParkingFile:       parkingFile,
		UserID:            userID,
		Now:               time.Now,
	}
}

// Read parses all three files and aggregates them. Any open or parse failure
// fails the whole read; there is no partial result.
func (d *FileDatasource) Read() ([]models.AgentData, error) {
	var (
		acc     []models.Accelerometer
		gps     []models.Gps
		parking []models.Parking
	)

	if err := readFile(d.AccelerometerFile, func(f *os.File) (err error) {
		acc, err = ReadAccelerometer(f, d.AccelerometerFile)
		return err
	}); err != nil {
		return nil, err
	}
	if err := readFile(d.GpsFile, func(f *os.File) (err error) {
		gps, err = ReadGps(f, d.GpsFile)
		return err
	}); err != nil {
		return nil, err
	}
	if err := readFile(d.ParkingFile, func(f *os.File) (err error) {
		parking, err = ReadParking(f, d.ParkingFile)
		return err
	}); err != nil {
		return nil, err
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	return Aggregate(acc, gps, parking, d.UserID, now())
}

func readFile(path string, fn func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open sensor file: %w", err)
	}
	defer f.Close()
	return fn(f)
}

// Aggregate zips the three sequences by index. Entries beyond the shortest
// sequence are dropped; every sample gets the same user id and timestamp.
func Aggregate(acc []models.Accelerometer, gps []models.Gps, parking []models.Parking, userID int64, now time.Time) ([]models.AgentData, error) {
	n := min(len(acc), len(gps), len(parking))

	out := make([]models.AgentData, 0, n)
	for i := 0; i < n; i++ {
		if err := parking[i].Validate(); err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		data, err := models.NewAgentData(userID, acc[i], gps[i], now)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		out = append(out, data)
	}
	return out, nil
}
