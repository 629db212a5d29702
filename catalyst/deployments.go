package catalyst

import (
	"context"
	"strconv"

	"github.com/decentraland/catalyst-client-sub000/fragment"
	"github.com/decentraland/catalyst-client-sub000/model"
	"github.com/decentraland/catalyst-client-sub000/paginate"
)

// DeploymentsPath is the deployment history endpoint.
const DeploymentsPath = "/content/deployments"

// SortOrder orders deployments by local timestamp.
type SortOrder string

const (
	SortDescending SortOrder = "DESC"
	SortAscending  SortOrder = "ASC"
)

// DeploymentFilters narrows the deployment history.
type DeploymentFilters struct {
	EntityTypes          []model.EntityType
	EntityIDs            []string
	Pointers             []string
	OnlyCurrentlyPointed bool
	// From and To bound the local timestamp, in epoch milliseconds. Zero
	// means unbounded.
	From int64
	To   int64
}

// DeploymentOptions configures FetchAllDeployments.
type DeploymentOptions struct {
	Filters DeploymentFilters
	// Fields defaults to DefaultFields.
	Fields DeploymentFields
	// Order defaults to SortDescending.
	Order SortOrder
	// Limit is the page size requested from the server. Zero leaves it to
	// the server.
	Limit int
	// Policy overrides the client's partial-failure policy when set.
	Policy *paginate.Policy
}

// FetchAllDeployments returns the full deployment history matching opts.
//
// Entity id and pointer filters are split across as many requests as the URL
// budget requires; every fragment is paginated to exhaustion and the merged
// result is de-duplicated by entity id and ordered by local timestamp, then
// entity timestamp. Without auditInfo in Fields the local timestamp is
// unknown and only the entity timestamp orders the result.
func (c *Client) FetchAllDeployments(ctx context.Context, opts DeploymentOptions) ([]model.Deployment, error) {
	fields := opts.Fields
	if fields == 0 {
		fields = DefaultFields
	}
	order := opts.Order
	if order == "" {
		order = SortDescending
	}
	policy := c.policy
	if opts.Policy != nil {
		policy = *opts.Policy
	}

	f := opts.Filters
	types := make([]string, 0, len(f.EntityTypes))
	for _, t := range f.EntityTypes {
		types = append(types, string(t))
	}
	fixed := []fragment.Param{
		{Name: "entityType", Values: types},
		{Name: "fields", Values: []string{fields.String()}},
		{Name: "sortingField", Values: []string{"local_timestamp"}},
		{Name: "sortingOrder", Values: []string{string(order)}},
	}
	if f.OnlyCurrentlyPointed {
		fixed = append(fixed, fragment.Param{Name: "onlyCurrentlyPointed", Values: []string{"true"}})
	}
	if f.From > 0 {
		fixed = append(fixed, fragment.Param{Name: "from", Values: []string{strconv.FormatInt(f.From, 10)}})
	}
	if f.To > 0 {
		fixed = append(fixed, fragment.Param{Name: "to", Values: []string{strconv.FormatInt(f.To, 10)}})
	}
	if opts.Limit > 0 {
		fixed = append(fixed, fragment.Param{Name: "limit", Values: []string{strconv.Itoa(opts.Limit)}})
	}
	split := []fragment.Param{
		{Name: "entityId", Values: f.EntityIDs},
		{Name: "pointer", Values: f.Pointers},
	}

	frag := c.fragmenter
	frag.Reserve = fragment.PaginationReserve
	queries, err := frag.Split(c.baseURL, DeploymentsPath, fixed, split)
	if err != nil {
		return nil, err
	}

	less := func(a, b model.Deployment) bool { return deploymentBefore(b, a) }
	if order == SortAscending {
		less = deploymentBefore
	}

	return paginate.FetchAll(ctx, paginate.Request[model.Deployment]{
		Queries: queries,
		Fetch: func(ctx context.Context, u string) (paginate.Page[model.Deployment], error) {
			var h model.DeploymentHistory
			if err := c.transport.FetchJSON(ctx, u, c.options, &h); err != nil {
				return paginate.Page[model.Deployment]{}, err
			}
			return paginate.Page[model.Deployment]{Items: h.Deployments, Pagination: h.Pagination}, nil
		},
		Key:         func(d model.Deployment) string { return d.EntityID },
		Less:        less,
		Concurrency: c.concurrency,
		Policy:      policy,
		Logger:      c.logger,
	})
}

// deploymentBefore reports whether a sorts before b in ascending order.
func deploymentBefore(a, b model.Deployment) bool {
	if la, lb := a.LocalTimestamp(), b.LocalTimestamp(); la != lb {
		return la < lb
	}
	return a.EntityTimestamp < b.EntityTimestamp
}
