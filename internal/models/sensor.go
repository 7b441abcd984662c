package models

// Accelerometer is a raw three-axis accelerometer reading.
type Accelerometer struct {
	X int `bson:"x" json:"x"`
	Y int `bson:"y" json:"y"`
	Z int `bson:"z" json:"z"`
}

// Gps represents a geographical position in degrees.
type Gps struct {
	Longitude float64 `bson:"longitude" json:"longitude"`
	Latitude  float64 `bson:"latitude" json:"latitude"`
}

// Parking is a parking-occupancy reading at a location.
type Parking struct {
	EmptyCount int `bson:"empty_count" json:"empty_count"`
	Gps        Gps `bson:"gps" json:"gps"`
}

// Validate checks that the coordinates are inside the WGS84 range.
func (g Gps) Validate() error {
	if g.Latitude < -90 || g.Latitude > 90 {
		return &ValidationError{Field: "gps.latitude", Reason: "must be between -90 and 90"}
	}
	if g.Longitude < -180 || g.Longitude > 180 {
		return &ValidationError{Field: "gps.longitude", Reason: "must be between -180 and 180"}
	}
	return nil
}

// Validate rejects negative empty counts and out-of-range locations.
func (p Parking) Validate() error {
	if p.EmptyCount < 0 {
		return &ValidationError{Field: "parking.empty_count", Reason: "must not be negative"}
	}
	return p.Gps.Validate()
}
