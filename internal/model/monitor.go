package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API
type MonitorResponse struct {
	Status      string          `json:"status"` // "healthy" or "idle"
	Connections ConnectionStats `json:"connections"`
	Rooms       RoomStats       `json:"rooms"`
	Calls       CallStats       `json:"calls"`
	Clients     []ClientInfo    `json:"clients"`
}

type ConnectionStats struct {
	TotalConnections int `json:"totalConnections"`
	OnlineUsers      int `json:"onlineUsers"`
	MultiDeviceUsers int `json:"multiDeviceUsers"` // users with more than one live connection
}

type RoomStats struct {
	TotalRooms  int        `json:"totalRooms"`
	RoomDetails []RoomInfo `json:"roomDetails"`
}

type RoomInfo struct {
	Room          string `json:"room"`
	Members       int    `json:"members"`
	DistinctUsers int    `json:"distinctUsers"`
}

type CallStats struct {
	TotalActiveCalls int            `json:"totalActiveCalls"`
	ByStatus         map[string]int `json:"byStatus"`
	CallDetails      []CallInfo     `json:"callDetails"`
}

type CallInfo struct {
	CallID      string `json:"callId"`
	CallerID    string `json:"callerId"`
	RecipientID string `json:"recipientId"`
	CallType    string `json:"callType"`
	Status      string `json:"status"`
	StartedAt   string `json:"startedAt"` // RFC3339
}

type ClientInfo struct {
	ClientID string   `json:"clientId"`
	UserID   string   `json:"userId"`
	Rooms    []string `json:"rooms"`
}
