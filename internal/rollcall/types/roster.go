package types

type Site struct {
	SiteID   string `json:"siteId"`
	Name     string `json:"name"`
	Timezone string `json:"timezone,omitempty"`
}

// Worker is the roster entry supplied by the employee-management side.
// A null signature means the worker cannot be auto-scanned.
type Worker struct {
	WorkerID  string    `json:"workerId"`
	SiteID    string    `json:"siteId"`
	Name      string    `json:"name"`
	Signature []float32 `json:"signature"`
}

type Roster struct {
	Site    Site     `json:"site"`
	Workers []Worker `json:"workers"`
}
