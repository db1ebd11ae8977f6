package protocol

// WebSocket message type constants. Requests resolve with the matching
// "...Response" type; tagList and deviceStatus are also pushed unsolicited
// when the field changes.
const (
	WSTypeTagList      = "tagList"
	WSTypeDeviceStatus = "deviceStatus"

	WSTypeListTags         = "listTags"
	WSTypeListTagsResponse = "listTagsResponse"

	WSTypeReadPage          = "readPage"
	WSTypeReadPageResponse  = "readPageResponse"
	WSTypeWritePage         = "writePage"
	WSTypeWritePageResponse = "writePageResponse"
	WSTypeFastRead          = "fastRead"
	WSTypeFastReadResponse  = "fastReadResponse"
	WSTypeSubtype           = "subtype"
	WSTypeSubtypeResponse   = "subtypeResponse"

	WSTypeReadBlock          = "readBlock"
	WSTypeReadBlockResponse  = "readBlockResponse"
	WSTypeWriteBlock         = "writeBlock"
	WSTypeWriteBlockResponse = "writeBlockResponse"

	WSTypeError = "error"
)

// WebSocketMessage is the generic message envelope for WebSocket communication.
type WebSocketMessage struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// WebSocketRequest is for incoming requests from WebSocket clients.
type WebSocketRequest struct {
	ID      string         `json:"id,omitempty"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// WebSocketResponse is for responses to WebSocket requests.
type WebSocketResponse struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TagInfo describes one discovered tag in tagList broadcasts and
// listTagsResponse payloads.
type TagInfo struct {
	UID        string `json:"uid"`
	Type       string `json:"type"`
	Technology string `json:"technology"`
	Subtype    int    `json:"subtype,omitempty"` // 213/215/216 for NTAG, absent otherwise
	ScannedAt  string `json:"scannedAt"`         // RFC3339 format
}

// DeviceStatusPayload is the payload for device status updates.
type DeviceStatusPayload struct {
	Connected bool   `json:"connected"`
	Device    string `json:"device"`
	Message   string `json:"message,omitempty"`
}

// ReadPageRequest asks for one 4-byte page of an Ultralight/NTAG tag.
type ReadPageRequest struct {
	UID  string `json:"uid"`
	Page byte   `json:"page"`
}

// ReadPageResponse carries the page contents as hex.
type ReadPageResponse struct {
	UID  string `json:"uid"`
	Page byte   `json:"page"`
	Data string `json:"data"`
}

// WritePageRequest writes one 4-byte page; Data is 8 hex characters.
type WritePageRequest struct {
	UID  string `json:"uid"`
	Page byte   `json:"page"`
	Data string `json:"data"`
}

// WritePageResponse acknowledges a page write.
type WritePageResponse struct {
	UID  string `json:"uid"`
	Page byte   `json:"page"`
}

// FastReadRequest reads an inclusive page range in one command.
type FastReadRequest struct {
	UID       string `json:"uid"`
	StartPage byte   `json:"startPage"`
	EndPage   byte   `json:"endPage"`
}

// FastReadResponse carries the concatenated pages as hex.
type FastReadResponse struct {
	UID       string `json:"uid"`
	StartPage byte   `json:"startPage"`
	EndPage   byte   `json:"endPage"`
	Data      string `json:"data"`
}

// SubtypeRequest asks which NTAG21x variant a tag is.
type SubtypeRequest struct {
	UID string `json:"uid"`
}

// SubtypeResponse carries the variant: 213, 215, 216, or 0 for plain
// Ultralight tags.
type SubtypeResponse struct {
	UID     string `json:"uid"`
	Subtype int    `json:"subtype"`
}

// ReadBlockRequest reads one 16-byte MIFARE Classic block. Key is 12 hex
// characters and defaults to the factory key; KeyType is "A" or "B" and
// defaults to "A". Block is the absolute block number; Sector selects
// which sector key to authenticate against.
type ReadBlockRequest struct {
	UID     string `json:"uid"`
	Sector  byte   `json:"sector"`
	Block   byte   `json:"block"`
	Key     string `json:"key,omitempty"`
	KeyType string `json:"keyType,omitempty"`
}

// ReadBlockResponse carries the block contents as hex.
type ReadBlockResponse struct {
	UID   string `json:"uid"`
	Block byte   `json:"block"`
	Data  string `json:"data"`
}

// WriteBlockRequest writes one 16-byte block; Data is 32 hex characters.
type WriteBlockRequest struct {
	UID     string `json:"uid"`
	Sector  byte   `json:"sector"`
	Block   byte   `json:"block"`
	Data    string `json:"data"`
	Key     string `json:"key,omitempty"`
	KeyType string `json:"keyType,omitempty"`
}

// WriteBlockResponse acknowledges a block write.
type WriteBlockResponse struct {
	UID   string `json:"uid"`
	Block byte   `json:"block"`
}
