package catalyst

import (
	"context"
	"fmt"
	"net/url"

	"github.com/decentraland/catalyst-client-sub000/availability"
	"github.com/decentraland/catalyst-client-sub000/model"
)

func entitiesPath(t model.EntityType) string {
	return "/content/entities/" + url.PathEscape(string(t))
}

// FetchEntitiesByPointers returns the entities currently active on pointers.
func (c *Client) FetchEntitiesByPointers(ctx context.Context, t model.EntityType, pointers []string) ([]model.Entity, error) {
	return c.fetchEntities(ctx, t, "pointer", pointers)
}

// FetchEntitiesByIDs returns the entities with the given ids. Unknown ids are
// silently absent from the result.
func (c *Client) FetchEntitiesByIDs(ctx context.Context, t model.EntityType, ids []string) ([]model.Entity, error) {
	return c.fetchEntities(ctx, t, "id", ids)
}

// FetchEntityByID returns a single entity, or a KindNotFound error.
func (c *Client) FetchEntityByID(ctx context.Context, t model.EntityType, id string) (model.Entity, error) {
	if id == "" {
		return model.Entity{}, model.NewValidationError(availability.ErrNoIdentifiers)
	}
	entities, err := c.FetchEntitiesByIDs(ctx, t, []string{id})
	if err != nil {
		return model.Entity{}, err
	}
	for _, e := range entities {
		if e.ID == id {
			return e, nil
		}
	}
	return model.Entity{}, model.NewNotFoundError(fmt.Sprintf("entity %s of type %s not found", id, t))
}

func (c *Client) fetchEntities(ctx context.Context, t model.EntityType, param string, values []string) ([]model.Entity, error) {
	if len(values) == 0 {
		return nil, model.NewValidationError(availability.ErrNoIdentifiers)
	}
	if !t.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("unknown entity type %q", t))
	}
	urls, err := c.fragmenter.SplitValues(c.baseURL, entitiesPath(t), param, values)
	if err != nil {
		return nil, err
	}
	pages, err := fetchFragments[model.Entity](ctx, c, urls)
	if err != nil {
		return nil, err
	}

	// An entity can be active on pointers of several fragments.
	seen := map[string]struct{}{}
	var out []model.Entity
	for _, page := range pages {
		for _, e := range page {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			out = append(out, e)
		}
	}
	return out, nil
}
