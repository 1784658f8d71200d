package beeswax

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"

	"go.uber.org/zap"

	"github.com/cinema6/beeswax-client/internal/metrics"
)

// pageSize is the number of rows requested per page by QueryAll.
const pageSize = 50

// descriptor binds a resource type to its REST path and identifier field.
type descriptor struct {
	name    string
	path    string
	idField string
}

var (
	advertisers        = descriptor{name: "advertisers", path: "/rest/advertiser", idField: "advertiser_id"}
	campaigns          = descriptor{name: "campaigns", path: "/rest/campaign", idField: "campaign_id"}
	creatives          = descriptor{name: "creatives", path: "/rest/creative", idField: "creative_id"}
	lineItems          = descriptor{name: "line-items", path: "/rest/line_item", idField: "line_item_id"}
	creativeLineItems  = descriptor{name: "creative-line-items", path: "/rest/creative_line_item", idField: "cli_id"}
	targetingTemplates = descriptor{name: "targeting-templates", path: "/rest/targeting_template", idField: "targeting_template_id"}

	descriptors = []descriptor{
		advertisers,
		campaigns,
		creatives,
		lineItems,
		creativeLineItems,
		targetingTemplates,
	}
)

// ResourceNames lists the names accepted by Client.Resource.
func ResourceNames() []string {
	names := make([]string, len(descriptors))
	for i, d := range descriptors {
		names[i] = d.name
	}
	return names
}

// Resource exposes the CRUD helpers bound to one resource type.
type Resource struct {
	client *Client
	desc   descriptor
}

// Path returns the REST path of the resource, e.g. /rest/campaign.
func (r *Resource) Path() string { return r.desc.path }

// IDField returns the identifier field name, e.g. campaign_id.
func (r *Resource) IDField() string { return r.desc.idField }

// Find fetches one entity by id. Payload is nil when nothing matched.
func (r *Resource) Find(ctx context.Context, id int64) (*Result[Entity], error) {
	return r.client.find(ctx, r.desc, id)
}

// Query fetches all entities matching filter in a single request.
func (r *Resource) Query(ctx context.Context, filter Entity) (*Result[[]Entity], error) {
	return r.client.query(ctx, r.desc, filter)
}

// QueryAll pages through every entity matching filter.
func (r *Resource) QueryAll(ctx context.Context, filter Entity) (*Result[[]Entity], error) {
	return r.client.queryAll(ctx, r.desc, filter)
}

// Create creates an entity from body (a map or a struct encoding to a JSON
// object) and returns it as stored.
func (r *Resource) Create(ctx context.Context, body any) (*Result[Entity], error) {
	return r.client.create(ctx, r.desc, body)
}

// Edit updates entity id with body and returns it as stored.
func (r *Resource) Edit(ctx context.Context, id int64, body any, failOnNotFound bool) (*Result[Entity], error) {
	return r.client.edit(ctx, r.desc, id, body, failOnNotFound)
}

// Delete removes entity id and returns the deleted entity.
func (r *Resource) Delete(ctx context.Context, id int64, failOnNotFound bool) (*Result[Entity], error) {
	return r.client.delete(ctx, r.desc, id, failOnNotFound)
}

func (c *Client) find(ctx context.Context, d descriptor, id int64) (*Result[Entity], error) {
	body, err := c.Request(ctx, http.MethodGet, RequestOptions{
		Path: d.path,
		Body: Entity{d.idField: id},
	})
	if err != nil {
		return nil, err
	}
	first, err := body.First()
	if err != nil {
		return nil, err
	}
	return ok(first), nil
}

func (c *Client) query(ctx context.Context, d descriptor, filter Entity) (*Result[[]Entity], error) {
	if filter == nil {
		filter = Entity{}
	}
	body, err := c.Request(ctx, http.MethodGet, RequestOptions{Path: d.path, Body: filter})
	if err != nil {
		return nil, err
	}
	list, err := body.Entities()
	if err != nil {
		return nil, err
	}
	return ok(list), nil
}

// queryAll overrides rows, offset and sort_by in a copy of filter so that
// pages are stable; pagination cannot be disabled by the caller.
func (c *Client) queryAll(ctx context.Context, d descriptor, filter Entity) (*Result[[]Entity], error) {
	page := make(Entity, len(filter)+3)
	maps.Copy(page, filter)
	page["rows"] = pageSize
	page["sort_by"] = d.idField

	all := []Entity{}
	for offset := 0; ; offset += pageSize {
		page["offset"] = offset
		res, err := c.query(ctx, d, page)
		if err != nil {
			c.logger.Debug("beeswax.query_all_aborted",
				zap.String("endpoint", d.path),
				zap.Int("offset", offset),
				zap.Error(err))
			return nil, err
		}
		metrics.IncPage(d.path)
		all = append(all, res.Payload...)
		if len(res.Payload) < pageSize {
			break
		}
	}
	return ok(all), nil
}

func (c *Client) create(ctx context.Context, d descriptor, body any) (*Result[Entity], error) {
	// The API answers an empty body with a misleading 401, so reject it here.
	fields, valid := objectBody(body)
	if !valid {
		return badRequest[Entity](msgInvalidBody), nil
	}

	resp, err := c.Request(ctx, http.MethodPost, RequestOptions{Path: d.path + "/strict", Body: fields})
	if err != nil {
		return nil, err
	}
	id, err := resp.ID()
	if err != nil {
		return nil, err
	}
	return c.find(ctx, d, id)
}

func (c *Client) edit(ctx context.Context, d descriptor, id int64, body any, failOnNotFound bool) (*Result[Entity], error) {
	fields, valid := objectBody(body)
	if !valid {
		return badRequest[Entity](msgInvalidBody), nil
	}
	update := maps.Clone(fields)
	update[d.idField] = id

	if _, err := c.Request(ctx, http.MethodPut, RequestOptions{Path: d.path + "/strict", Body: update}); err != nil {
		if !failOnNotFound && isNotFound(err, actionUpdate) {
			return badRequest[Entity](msgNotFound), nil
		}
		return nil, err
	}
	return c.find(ctx, d, id)
}

func (c *Client) delete(ctx context.Context, d descriptor, id int64, failOnNotFound bool) (*Result[Entity], error) {
	resp, err := c.Request(ctx, http.MethodDelete, RequestOptions{
		Path: d.path + "/strict",
		Body: Entity{d.idField: id},
	})
	if err != nil {
		if !failOnNotFound && isNotFound(err, actionDelete) {
			return badRequest[Entity](msgNotFound), nil
		}
		return nil, err
	}
	first, err := resp.First()
	if err != nil {
		return nil, err
	}
	return ok(first), nil
}

// objectBody accepts maps and values that encode to a non-empty JSON object.
func objectBody(body any) (Entity, bool) {
	switch v := body.(type) {
	case nil:
		return nil, false
	case Entity:
		return v, len(v) > 0
	case map[string]any:
		return Entity(v), len(v) > 0
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, false
	}
	var fields Entity
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) == 0 {
		return nil, false
	}
	return fields, true
}
