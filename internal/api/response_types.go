package api

import (
	"time"

	"github.com/daimoniac/swaudit/internal/session"
	"github.com/daimoniac/swaudit/internal/types"
)

// formatTimestamp converts a time to ISO8601 (RFC 3339) in UTC.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateSessionRequest uploads an inventory for a user.
type CreateSessionRequest struct {
	UserID    string                 `json:"user_id"`
	Inventory []types.SoftwareRecord `json:"inventory"`
}

// SessionResponse describes an audit session without its inventory.
// Timestamps are formatted as ISO8601 strings.
type SessionResponse struct {
	Key         string `json:"key"`
	UserID      string `json:"user_id"`
	RecordCount int    `json:"record_count"`
	CreatedAt   string `json:"created_at"` // ISO8601
	ExpiresAt   string `json:"expires_at"` // ISO8601
}

// CacheEntryResponse represents a match cache entry.
type CacheEntryResponse struct {
	NormalizedName     string   `json:"normalized_name"`
	OriginalName       string   `json:"original_name"`
	MatchedVendors     []string `json:"matched_vendors"`
	MatchedProducts    []string `json:"matched_products"`
	VulnerabilityCount int      `json:"vulnerability_count"`
	LastUpdated        string   `json:"last_updated"` // ISO8601
}

func toSessionResponse(s *session.Session) SessionResponse {
	return SessionResponse{
		Key:         s.Key,
		UserID:      s.UserID,
		RecordCount: len(s.Inventory),
		CreatedAt:   formatTimestamp(s.Created),
		ExpiresAt:   formatTimestamp(s.Expiry),
	}
}

func toCacheEntryResponse(e *types.MatchCacheEntry) CacheEntryResponse {
	resp := CacheEntryResponse{
		NormalizedName:     e.NormalizedName,
		OriginalName:       e.OriginalName,
		MatchedVendors:     e.MatchedVendors,
		MatchedProducts:    e.MatchedProducts,
		VulnerabilityCount: e.VulnerabilityCount,
		LastUpdated:        formatTimestamp(e.LastUpdated),
	}
	if resp.MatchedVendors == nil {
		resp.MatchedVendors = []string{}
	}
	if resp.MatchedProducts == nil {
		resp.MatchedProducts = []string{}
	}
	return resp
}
