package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	PlayerID        string    `json:"player_id"`
	PlayerName      string    `json:"player_name"`
	HubParams       HubParams `json:"hub_params"`
}

type HubParams struct {
	TickRateHz         int    `json:"tick_rate_hz"`
	RequestExpiryTicks uint64 `json:"request_expiry_ticks"`
}

// CMD (client -> server): one chat-style command, e.g. /tpa <player>.
type CmdMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Args            []string `json:"args,omitempty"`
}

// Event is a loosely-typed server-side event delivered in EVENT_BATCH.
// Common keys: "t" (tick), "type", "text", "code".
type Event map[string]interface{}

// EVENT_BATCH (server -> client)
type EventBatchMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	Events          []Event `json:"events"`
}
