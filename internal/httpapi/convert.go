package httpapi

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/types"
)

// Protobuf payloads are google.protobuf.Struct messages keyed by the same
// field names as the JSON bodies.

// ── Scan ─────────────────────────────────────────────────────────────────────

func scanRequestFromProto(p *structpb.Struct) types.ScanRequest {
	f := p.GetFields()
	return types.ScanRequest{
		CardUID:   f["card_uid"].GetStringValue(),
		ReaderUID: f["reader_uid"].GetStringValue(),
	}
}

func scanResultToProto(r types.ScanResult) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"authorized":       r.Authorized,
		"door_should_open": r.DoorShouldOpen,
		"is_entry":         r.IsEntry,
		"user_name":        r.UserName,
		"message":          r.Message,
		"reason":           r.Reason,
		"scan_id":          r.ScanID,
		"server_time":      r.ServerTime,
	})
}

// ── Door ─────────────────────────────────────────────────────────────────────

func doorStatusToProto(d types.DoorStatus) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"room_id":         d.RoomID,
		"is_open":         d.IsOpen,
		"last_updated_at": d.LastUpdatedAt,
	})
}

