package service

import "github.com/BrandonDHaskell/labaccess/internal/labaccess/store"

// Decision is the outcome of the airlock table for an authorized scan.
// IsEntry also selects the occupancy mutation: create on entry, delete on
// exit.
type Decision struct {
	DoorShouldOpen bool
	IsEntry        bool
}

// Decide applies the airlock table.  An outside reader opens the street
// door for someone coming in; an inside reader opens it for someone leaving.
// The other two cells only move occupancy.
//
//	insideNow  location  open   entry
//	false      outside   true   true
//	false      inside    false  true
//	true       outside   false  false
//	true       inside    true   false
func Decide(insideNow bool, loc store.Location) Decision {
	if !insideNow {
		return Decision{DoorShouldOpen: loc == store.LocationOutside, IsEntry: true}
	}
	return Decision{DoorShouldOpen: loc == store.LocationInside, IsEntry: false}
}
