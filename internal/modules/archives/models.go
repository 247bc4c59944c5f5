package archives

import "time"

// Archive is one recorded automated test run.
type Archive struct {
	ID          string    `json:"id"`
	Timestamp   string    `json:"timestamp"`
	TestType    string    `json:"testType"`
	Description string    `json:"description"`
	ConfigFile  string    `json:"configFile,omitempty"`
	Folder      string    `json:"folder"`
	Success     bool      `json:"success"`
	DurationMS  int64     `json:"durationMs"`
	StockCount  int       `json:"stockCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Metadata is the metadata.json artifact written into each archive folder.
type Metadata struct {
	TestType    string `json:"testType"`
	Description string `json:"description"`
	ConfigFile  string `json:"configFile"`
	Timestamp   string `json:"timestamp"`
	Success     bool   `json:"success"`
	FrontendURL string `json:"frontendUrl"`
	APIURL      string `json:"apiUrl"`
	StockCount  int    `json:"stockCount"`
}

// RunRequest is the payload for triggering an automated test run.
type RunRequest struct {
	Description string `json:"description"`
	ConfigFile  string `json:"configFile"`
}

// RunResult summarizes a completed automated test run.
type RunResult struct {
	ArchiveID   string  `json:"archiveId"`
	ArchivePath string  `json:"archivePath"`
	Duration    float64 `json:"duration"` // seconds
	FrontendURL string  `json:"frontendUrl"`
	Success     bool    `json:"success"`
}
