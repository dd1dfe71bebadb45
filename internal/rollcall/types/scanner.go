package types

// ScannerHeartbeatRequest is sent by a scanning session on start, on state
// changes and periodically while it runs.
type ScannerHeartbeatRequest struct {
	ScannerID   string `json:"scannerId"`
	SiteID      string `json:"siteId,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
	State       string `json:"state"` // running | disabled | stopped
	Reason      string `json:"reason,omitempty"`
	GallerySize int    `json:"gallerySize,omitempty"`
}

type ScannerHeartbeatResponse struct {
	OK         bool   `json:"ok"`
	Known      bool   `json:"known"`
	ScannerID  string `json:"scannerId"`
	ServerTime string `json:"serverTime"`
}
