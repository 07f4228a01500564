package registry

import (
	"context"
	"strconv"

	"github.com/louisbranch/keybazaar/internal/audit"
	"github.com/louisbranch/keybazaar/internal/platform/errors"
	"github.com/louisbranch/keybazaar/internal/platform/grpc/pagination"
	"github.com/louisbranch/keybazaar/internal/registry/filter"
	"github.com/louisbranch/keybazaar/internal/registry/storage"
	"github.com/louisbranch/keybazaar/internal/registry/storage/cursor"
)

var listPageSizes = pagination.PageSizeConfig{Default: 50, Max: 200}

var serviceFilterFields = filter.Fields{
	"id":    filter.FieldString,
	"url":   filter.FieldString,
	"owner": filter.FieldString,
}

var keyFilterFields = filter.Fields{
	"id":         filter.FieldString,
	"service_id": filter.FieldString,
	"owner":      filter.FieldString,
	"can_share":  filter.FieldBool,
	"can_trade":  filter.FieldBool,
	"can_sell":   filter.FieldBool,
}

var eventFilterFields = filter.Fields{
	"type":       filter.FieldString,
	"owner":      filter.FieldString,
	"service_id": filter.FieldString,
	"key_id":     filter.FieldString,
	"category":   filter.FieldString,
}

// ListRequest describes one page of a filtered listing.
type ListRequest struct {
	PageSize  int32
	PageToken string
	// Filter is an AIP-160 conjunction over the listing's fields.
	Filter string
}

// parseListRequest resolves the page size, filter conditions and resume
// point shared by all listings.
func parseListRequest(req ListRequest, fields filter.Fields) (limit int, afterSeq uint64, conds []filter.Condition, err error) {
	limit = pagination.ClampPageSize(req.PageSize, listPageSizes)
	conds, err = filter.Parse(req.Filter, fields)
	if err != nil {
		return 0, 0, nil, errors.Wrap(errors.CodeFilterInvalid, "parse filter", err)
	}
	if req.PageToken != "" {
		c, err := cursor.Decode(req.PageToken)
		if err != nil {
			return 0, 0, nil, errors.Wrap(errors.CodePageTokenInvalid, "decode page token", err)
		}
		if err := cursor.ValidateFilterHash(c, req.Filter); err != nil {
			return 0, 0, nil, errors.Wrap(errors.CodePageTokenInvalid, "validate page token", err)
		}
		afterSeq = c.Seq
	}
	return limit, afterSeq, conds, nil
}

func nextPageToken(lastSeq uint64, filterStr string) (string, error) {
	token, err := cursor.Encode(cursor.New(lastSeq, filterStr))
	if err != nil {
		return "", errors.Wrap(errors.CodeUnknown, "encode page token", err)
	}
	return token, nil
}

// ListServices returns one page of services in registration order.
func (r *Registry) ListServices(ctx context.Context, req ListRequest) ([]storage.Service, string, error) {
	limit, afterSeq, conds, err := parseListRequest(req, serviceFilterFields)
	if err != nil {
		return nil, "", err
	}
	var services []storage.Service
	err = r.store.View(ctx, func(tx storage.ReadTx) error {
		services, err = tx.ListServices(afterSeq, limit+1, conds)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	if len(services) <= limit {
		return services, "", nil
	}
	services = services[:limit]
	token, err := nextPageToken(services[limit-1].Seq, req.Filter)
	if err != nil {
		return nil, "", err
	}
	return services, token, nil
}

// ListKeys returns one page of keys in issuance order.
func (r *Registry) ListKeys(ctx context.Context, req ListRequest) ([]storage.Key, string, error) {
	limit, afterSeq, conds, err := parseListRequest(req, keyFilterFields)
	if err != nil {
		return nil, "", err
	}
	var keys []storage.Key
	err = r.store.View(ctx, func(tx storage.ReadTx) error {
		keys, err = tx.ListKeys(afterSeq, limit+1, conds)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	if len(keys) <= limit {
		return keys, "", nil
	}
	keys = keys[:limit]
	token, err := nextPageToken(keys[limit-1].Seq, req.Filter)
	if err != nil {
		return nil, "", err
	}
	return keys, token, nil
}

// ListAuditEvents returns one page of the audit log in append order.
func (r *Registry) ListAuditEvents(ctx context.Context, req ListRequest) ([]audit.Event, string, error) {
	limit, afterSeq, conds, err := parseListRequest(req, eventFilterFields)
	if err != nil {
		return nil, "", err
	}
	var events []audit.Event
	err = r.store.View(ctx, func(tx storage.ReadTx) error {
		events, err = tx.ListAuditEvents(afterSeq, limit+1, conds)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	if len(events) <= limit {
		return events, "", nil
	}
	events = events[:limit]
	token, err := nextPageToken(events[limit-1].Seq, req.Filter)
	if err != nil {
		return nil, "", err
	}
	return events, token, nil
}

func formatIndex(index int) string {
	return strconv.Itoa(index)
}
