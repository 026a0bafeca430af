// ABOUTME: Control message definitions for the item stream websocket
// ABOUTME: JSON text frames wrap these; items travel as binary frames
package protocol

// Version is the stream protocol version reported in the hello
const Version = 1

// Message types
const (
	TypeServerHello = "server/hello"
	TypeServerError = "server/error"
	TypeServerStats = "server/stats"
)

// Codec names
const (
	CodecRaw  = "raw"
	CodecOpus = "opus"
)

// Message is the top-level wrapper for all text frames
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ServerHello describes the stream a subscriber is about to receive
type ServerHello struct {
	ServerID   string      `json:"server_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
	ItemSize   int         `json:"item_size"`
	Codec      string      `json:"codec"`

	// Set for the opus codec only
	SampleRate int `json:"sample_rate,omitempty"`
	Channels   int `json:"channels,omitempty"`
}

// DeviceInfo contains product identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerError is sent before the server closes a connection it refuses
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ServerStats reports reader progress to the subscriber
type ServerStats struct {
	Items     uint64 `json:"items"`
	Rotations uint64 `json:"rotations"`
	Rewinds   uint64 `json:"rewinds"`
	Pending   int    `json:"pending"`
	Current   string `json:"current"`
}
