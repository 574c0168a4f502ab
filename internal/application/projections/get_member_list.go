package projections

import (
	"context"
	"sort"
	"strings"

	"gymdesk/internal/application/collection"
	"gymdesk/internal/application/listutil"
	"gymdesk/internal/domain/member"
)

// GetMemberListQuery carries query parameters.
type GetMemberListQuery struct {
	listutil.ListParams
}

// Status returns the requested status filter, defaulting to all.
func (q GetMemberListQuery) Status() string {
	if s := q.Filters["status"]; s != "" {
		return s
	}
	return member.FilterAll
}

// GetMemberListResult carries the query result.
type GetMemberListResult struct {
	Members  []member.Member
	Page     listutil.PageInfo
	Counts   map[string]int // over the unfiltered set
	Total    int
	ErrorKey string
}

// QueryGetMemberList loads members into col and applies the status filter,
// search and pagination.
// PRE: col is backed by the members service
// POST: Members holds only the requested page, sorted by name;
// an upstream failure is reported through ErrorKey with an empty page
func QueryGetMemberList(ctx context.Context, query GetMemberListQuery, col *collection.Collection[member.Member]) GetMemberListResult {
	_ = col.Load(ctx)
	all := col.Items()

	filtered := member.Search(member.FilterByStatus(all, query.Status()), query.Search)
	sort.SliceStable(filtered, func(i, j int) bool {
		return strings.ToLower(filtered[i].Name) < strings.ToLower(filtered[j].Name)
	})
	page, info := listutil.Paginate(filtered, query.PageParams)

	return GetMemberListResult{
		Members:  page,
		Page:     info,
		Counts:   member.CountByStatus(all),
		Total:    len(all),
		ErrorKey: col.Error(),
	}
}
