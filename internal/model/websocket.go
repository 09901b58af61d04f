package model

// WebSocket message types
type WSMessageType string

const (
	WSMessageTypeProgress WSMessageType = "progress"
	WSMessageTypeComplete WSMessageType = "complete"
	WSMessageTypeError    WSMessageType = "error"
	WSMessageTypePing     WSMessageType = "ping"
	WSMessageTypePong     WSMessageType = "pong"
)

// WSMessage is the base message exchanged with progress subscribers
type WSMessage struct {
	Type WSMessageType `json:"type"`
}

// WSProgressMessage carries a job progress snapshot
type WSProgressMessage struct {
	Type     WSMessageType `json:"type"`
	Key      string        `json:"key"`
	Progress JobProgress   `json:"progress"`
}

// WSCompleteMessage carries the final artifact descriptor
type WSCompleteMessage struct {
	Type   WSMessageType      `json:"type"`
	Key    string             `json:"key"`
	Result ArtifactDescriptor `json:"result"`
}

// WSError describes a job failure
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WSErrorMessage carries a job failure to subscribers
type WSErrorMessage struct {
	Type  WSMessageType `json:"type"`
	Key   string        `json:"key"`
	Error WSError       `json:"error"`
}
