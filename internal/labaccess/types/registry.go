package types

type RegisterCardRequest struct {
	UserID       int64  `json:"user_id"`
	CardUID      string `json:"card_uid"`
	RegisteredBy *int64 `json:"registered_by,omitempty"`
}

type CardView struct {
	ID          int64  `json:"id"`
	CardUID     string `json:"card_uid"`
	OwnerUserID *int64 `json:"owner_user_id,omitempty"`
	Active      bool   `json:"active"`
	LastUsedAt  string `json:"last_used_at,omitempty"`
}

type RegisterReaderRequest struct {
	ReaderUID string `json:"reader_uid"`
	RoomID    int64  `json:"room_id"`
	Location  string `json:"location"`
}

type ReaderView struct {
	ID        int64  `json:"id"`
	ReaderUID string `json:"reader_uid"`
	RoomID    int64  `json:"room_id"`
	Location  string `json:"location"`
	Active    bool   `json:"active"`
}

type SetReaderActiveRequest struct {
	Active bool `json:"active"`
}
