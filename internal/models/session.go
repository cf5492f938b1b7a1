package models

// SessionStatus represents the status of a decode session.
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusDecoding SessionStatus = "decoding"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusError    SessionStatus = "error"
)

// DecodeSession represents the decoding of one stored document.
type DecodeSession struct {
	ID               string        `json:"id"`
	FileID           string        `json:"fileId"`
	FileName         string        `json:"fileName,omitempty"`
	Status           SessionStatus `json:"status"`
	Technology       string        `json:"technology,omitempty"`
	LayerCount       int           `json:"layerCount,omitempty"`
	ArcCount         int           `json:"arcCount,omitempty"`
	NodeCount        int           `json:"nodeCount,omitempty"`
	ProcessingTimeMs int64         `json:"processingTimeMs,omitempty"`
	StartTime        int64         `json:"startTime,omitempty"` // Unix ms
	EndTime          int64         `json:"endTime,omitempty"`   // Unix ms
	Errors           []DecodeError `json:"errors,omitempty"`
}

// DecodeError is the user-facing description of a failed decode.
type DecodeError struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// NewDecodeSession creates a new DecodeSession in pending status.
func NewDecodeSession(id, fileID string) *DecodeSession {
	return &DecodeSession{
		ID:     id,
		FileID: fileID,
		Status: SessionStatusPending,
		Errors: make([]DecodeError, 0),
	}
}

// IsTerminal reports whether the session has finished, successfully or not.
func (s *DecodeSession) IsTerminal() bool {
	return s.Status == SessionStatusComplete || s.Status == SessionStatusError
}
