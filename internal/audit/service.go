package audit

import (
	"context"
	"strings"

	"github.com/labdesk/labdesk/internal/rbac"
	"github.com/labdesk/labdesk/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Service coordinates audit trail reads.
type Service struct {
	repo Repository
}

// NewService builds the audit trail service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of the audit trail, newest first.
func (s *Service) Timeline(ctx context.Context, actor rbac.Actor, filters TimelineFilters) (Result, error) {
	if err := s.check(actor, filters); err != nil {
		return Result{}, err
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	limit := pageSize + 1
	rows, err := s.repo.Window(ctx, Query{
		TimelineFilters: normalize(filters),
		Offset:          (page - 1) * pageSize,
		Limit:           &limit,
	})
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching row without paging.
func (s *Service) Export(ctx context.Context, actor rbac.Actor, filters TimelineFilters) ([]TimelineRow, error) {
	if err := s.check(actor, filters); err != nil {
		return nil, err
	}
	return s.repo.Window(ctx, Query{TimelineFilters: normalize(filters)})
}

func (s *Service) check(actor rbac.Actor, filters TimelineFilters) error {
	if err := rbac.Require(actor, rbac.PermAuditView); err != nil {
		return err
	}
	if s.repo == nil {
		return shared.E(shared.KindPersistence, "audit", "repository not configured")
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.From.After(filters.To) {
		return shared.Validation("audit", "from must not be after to")
	}
	return nil
}

func normalize(f TimelineFilters) TimelineFilters {
	f.Entity = strings.TrimSpace(f.Entity)
	f.EntityID = strings.TrimSpace(f.EntityID)
	f.Actor = strings.TrimSpace(f.Actor)
	f.Action = strings.TrimSpace(f.Action)
	return f
}
