// Package audit runs a full audit: match an inventory, resolve vulnerability
// details for the matched products and assemble the report.
package audit

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/inventory"
	"github.com/daimoniac/swaudit/internal/policy"
	"github.com/daimoniac/swaudit/internal/report"
	"github.com/daimoniac/swaudit/internal/resolver"
	"github.com/daimoniac/swaudit/internal/session"
	"github.com/daimoniac/swaudit/internal/types"
	"github.com/daimoniac/swaudit/internal/worker"
)

// Options configures optional stages of an audit
type Options struct {
	PageSize    int
	Filter      *inventory.Filter
	Policy      policy.PolicyEngine
	Tolerations []policy.Toleration
}

// Service ties the matching run, the resolver and report assembly together
type Service struct {
	sessions    session.Store
	coordinator *worker.Coordinator
	resolver    *resolver.Resolver
	options     Options
	logger      *slog.Logger
}

// NewService creates an audit service; sessions may be nil when only
// RunInventory is used.
func NewService(sessions session.Store, coordinator *worker.Coordinator, res *resolver.Resolver, options Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions:    sessions,
		coordinator: coordinator,
		resolver:    res,
		options:     options,
		logger:      logger,
	}
}

// Run audits the inventory held by session key on behalf of userID.
func (s *Service) Run(ctx context.Context, key, userID string, page int) (*report.Report, error) {
	if s.sessions == nil {
		return nil, errors.NewPermanentf("audit sessions are not configured")
	}
	sess, err := session.Authorize(ctx, s.sessions, key, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("audit requested",
		"session", sess.Key,
		"user_id", sess.UserID,
		"records", len(sess.Inventory),
		"page", page)

	return s.RunInventory(ctx, sess.Inventory, page)
}

// RunInventory audits records directly.
func (s *Service) RunInventory(ctx context.Context, records []types.SoftwareRecord, page int) (*report.Report, error) {
	if err := inventory.Validate(records); err != nil {
		return nil, err
	}
	records = s.options.Filter.Apply(inventory.Normalize(records))

	result, err := s.coordinator.Run(ctx, records)
	if err != nil {
		return nil, err
	}

	ranked := result.RankedProducts()
	names := lo.Map(ranked, func(p worker.ProductCount, _ int) string { return p.Name })

	details, detailFailures, err := s.resolver.Resolve(ctx, names)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// matches are still worth reporting without their details
		s.logger.Error("vulnerability detail resolution failed",
			"run_id", result.RunID,
			"products", len(names),
			"error", err)
	}

	rep := report.Build(report.Input{
		RunID:         result.RunID,
		SoftwareCount: len(records),
		Matches:       result.Matches,
		Products:      ranked,
		Details:       details,
		Failures:      append(result.Failures, detailFailures...),
		Page:          page,
		PageSize:      s.options.PageSize,
	})

	if s.options.Policy != nil {
		decision, err := s.options.Policy.Evaluate(ctx, rep.Summary(), s.options.Tolerations)
		if err != nil {
			s.logger.Warn("policy evaluation failed", "run_id", result.RunID, "error", err)
		} else {
			rep.Policy = decision
		}
	}

	s.logger.Info("audit completed",
		"run_id", result.RunID,
		"software", rep.SoftwareCount,
		"matched", len(rep.MatchedVulnerabilities),
		"products", rep.ViewData.TotalProducts,
		"details", len(rep.CVEDetails),
		"failures", len(rep.Failures))

	return rep, nil
}
