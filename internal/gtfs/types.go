package gtfs

import "transitmatrix/internal/transit"

// Feed is a GTFS feed read into the shape the travel-time pipeline expects.
type Feed struct {
	Input  *transit.Input // nil when NotModified
	Info   *FeedInfo      // nil when the feed has no agency or routes file
	Source string
	Validators
	NotModified bool
}

// Rows of the GTFS files the pipeline reads. Every field is kept as the raw
// string; conversion happens in the loader so errors can name the row.

type Stop struct {
	StopID        string `csv:"stop_id"`
	StopName      string `csv:"stop_name"`
	StopLat       string `csv:"stop_lat"`
	StopLon       string `csv:"stop_lon"`
	LocationType  string `csv:"location_type"`
	ParentStation string `csv:"parent_station"`
}

type Trip struct {
	TripID    string `csv:"trip_id"`
	RouteID   string `csv:"route_id"`
	ServiceID string `csv:"service_id"`
}

type StopTime struct {
	TripID        string `csv:"trip_id"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	StopID        string `csv:"stop_id"`
	StopSequence  string `csv:"stop_sequence"`
}

type Transfer struct {
	FromStopID      string `csv:"from_stop_id"`
	ToStopID        string `csv:"to_stop_id"`
	TransferType    string `csv:"transfer_type"`
	MinTransferTime string `csv:"min_transfer_time"`
}
