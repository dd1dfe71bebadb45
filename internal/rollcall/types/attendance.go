package types

// EventRequest submits one attendance intent for a worker.
type EventRequest struct {
	WorkerID  string `json:"workerId"`
	Day       string `json:"day,omitempty"` // YYYY-MM-DD; defaults to the site-local day of At
	Action    string `json:"action"`        // auto | manual-checkout | manual-absent
	At        string `json:"at,omitempty"`  // RFC3339; defaults to server time
	ScannerID string `json:"scannerId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

type EventResponse struct {
	Status     string          `json:"status"` // ok | rejected
	NewState   string          `json:"newState,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Changed    bool            `json:"changed"`
	Record     *AttendanceView `json:"record,omitempty"`
	ServerTime string          `json:"serverTime"`
}

// AttendanceView is the outbound shape of an attendance record.
type AttendanceView struct {
	WorkerID     string  `json:"workerId"`
	Date         string  `json:"date"`
	Status       string  `json:"status"`
	CheckInTime  *string `json:"checkInTime"`
	CheckOutTime *string `json:"checkOutTime"`
}

type AttendanceList struct {
	Records []AttendanceView `json:"records"`
}

// AttendanceQuery selects records for one day (Day) or an inclusive range
// (Start..End). It is the request body of the gRPC queries.
type AttendanceQuery struct {
	WorkerIDs []string `json:"workerIds"`
	Day       string   `json:"day,omitempty"`
	Start     string   `json:"start,omitempty"`
	End       string   `json:"end,omitempty"`
}
