// Package report assembles the per-run audit payload and renders it.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/daimoniac/swaudit/internal/policy"
	"github.com/daimoniac/swaudit/internal/types"
	"github.com/daimoniac/swaudit/internal/worker"
)

// DefaultPageSize is the number of products per page of viewData.
const DefaultPageSize = 10

// ViewData is the paginated product frequency table.
type ViewData struct {
	Products      []worker.ProductCount `json:"products"`
	Page          int                   `json:"page"`
	PageSize      int                   `json:"pageSize"`
	TotalPages    int                   `json:"totalPages"`
	TotalProducts int                   `json:"totalProducts"`
}

// Report is the payload produced by one audit run.
type Report struct {
	RunID                  string                     `json:"run_id"`
	GeneratedAt            time.Time                  `json:"generated_at"`
	SoftwareCount          int                        `json:"software_count"`
	MatchedVulnerabilities []types.SoftwareMatch      `json:"matchedVulnerabilities"`
	ViewData               ViewData                   `json:"viewData"`
	CVEDetails             []types.EntityDetailResult `json:"cveDetails"`
	Failures               []types.BatchFailure       `json:"failures,omitempty"`
	Policy                 *policy.PolicyDecision     `json:"policy,omitempty"`
}

// Input carries everything Build needs from a finished run.
type Input struct {
	RunID         string
	SoftwareCount int
	Matches       []types.SoftwareMatch
	Products      []worker.ProductCount
	Details       []types.EntityDetailResult
	Failures      []types.BatchFailure
	Page          int
	PageSize      int
	Now           time.Time
}

// Build assembles the report, paginating the product table. Out of range
// pages are clamped to the nearest valid page.
func Build(in Input) *Report {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	return &Report{
		RunID:                  in.RunID,
		GeneratedAt:            in.Now.UTC(),
		SoftwareCount:          in.SoftwareCount,
		MatchedVulnerabilities: lo.Ternary(in.Matches == nil, []types.SoftwareMatch{}, in.Matches),
		ViewData:               Paginate(in.Products, in.Page, in.PageSize),
		CVEDetails:             lo.Ternary(in.Details == nil, []types.EntityDetailResult{}, in.Details),
		Failures:               in.Failures,
	}
}

// Paginate returns the requested 1-based page of products.
func Paginate(products []worker.ProductCount, page, size int) ViewData {
	if size <= 0 {
		size = DefaultPageSize
	}
	totalPages := max(1, (len(products)+size-1)/size)
	page = min(max(page, 1), totalPages)

	start := min((page-1)*size, len(products))
	end := min(start+size, len(products))

	return ViewData{
		Products:      append([]worker.ProductCount{}, products[start:end]...),
		Page:          page,
		PageSize:      size,
		TotalPages:    totalPages,
		TotalProducts: len(products),
	}
}

// Summary projects the report onto the facts a policy is evaluated against.
func (r *Report) Summary() policy.Summary {
	s := policy.Summary{
		SoftwareCount: r.SoftwareCount,
		MatchedCount:  len(r.MatchedVulnerabilities),
		FailedBatches: len(r.Failures),
		Products:      lo.Map(r.CVEDetails, func(d types.EntityDetailResult, _ int) string { return d.Name }),
	}
	for _, d := range r.CVEDetails {
		for _, v := range d.Vulnerabilities {
			s.Vulnerabilities = append(s.Vulnerabilities, policy.Vulnerability{
				ID:        v.ID,
				Product:   d.Name,
				Score:     v.Score,
				Exploited: v.Exploited,
			})
		}
	}
	return s
}

// WriteJSON encodes the report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteFile stores data at path, creating parent directories.
func WriteFile(fs afero.Fs, path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
