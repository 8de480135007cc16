package types

type DoorStatus struct {
	RoomID        int64  `json:"room_id"`
	IsOpen        bool   `json:"is_open"`
	LastUpdatedAt string `json:"last_updated_at,omitempty"`
}

// OccupantView is one row of the "who is inside" listing.
type OccupantView struct {
	UserID    int64  `json:"user_id"`
	RoomID    int64  `json:"room_id"`
	CardUID   string `json:"card_uid"`
	EntryTime string `json:"entry_time"`
}
