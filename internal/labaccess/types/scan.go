package types

// ScanRequest is what a reader gateway posts for every card presented.
type ScanRequest struct {
	CardUID   string `json:"card_uid"`
	ReaderUID string `json:"reader_uid"`
}

// ScanResult is the only shape a reader ever sees.  Reason is empty on a
// grant and holds the deny reason otherwise.
type ScanResult struct {
	Authorized     bool   `json:"authorized"`
	DoorShouldOpen bool   `json:"door_should_open"`
	IsEntry        bool   `json:"is_entry"`
	UserName       string `json:"user_name,omitempty"`
	Message        string `json:"message"`
	Reason         string `json:"reason,omitempty"`
	ScanID         string `json:"scan_id,omitempty"`
	ServerTime     string `json:"server_time"`
}
