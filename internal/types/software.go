package types

// Unknown is the placeholder used for inventory fields the collector did not supply.
const Unknown = "Unknown"

// SoftwareRecord is one installed-software row of an uploaded inventory.
// Name is mandatory; Version and Publisher default to Unknown.
type SoftwareRecord struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	Publisher   string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	InstallDate string `json:"installDate,omitempty" yaml:"installDate,omitempty"`
}

// SoftwareMatch is the per-software outcome of a matching run.
type SoftwareMatch struct {
	// Index is the position of the record in the submitted inventory.
	Index           int      `json:"-"`
	Name            string   `json:"software_name"`
	Version         string   `json:"software_version"`
	Publisher       string   `json:"software_publisher"`
	CVECount        int      `json:"cve_count"`
	MatchedVendors  []string `json:"matched_vendors"`
	MatchedProducts []string `json:"matched_products"`
	FromCache       bool     `json:"from_cache"`
}

// Stages a batch can fail in.
const (
	StageMatch   = "match"
	StageResolve = "resolve"
)

// BatchFailure describes a worker batch that could not be completed.
type BatchFailure struct {
	Stage string `json:"stage"`
	Batch int    `json:"batch"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Error string `json:"error"`
}
