package mapping

import (
	"context"
	"fmt"
	"strconv"

	"f0oster/reconspy/connector"
	"f0oster/reconspy/identity"
	"f0oster/reconspy/store"
)

// ResolvedProvision is the outcome of resolving one (object, resource)
// pair: the remote object class, the key value locating the object's
// projection, and the effective mapping items (declared items plus the
// linking items synthesized from virtual schemas).
type ResolvedProvision struct {
	ObjectClass        string
	ConnObjectKeyValue string
	Items              []*identity.MappingItem
}

// Resolver resolves provisioning mappings against the store.
type Resolver struct {
	VirSchemas store.VirSchemaDAO
}

// Resolve determines whether the resource carries a usable provision for
// the object's type. It returns (nil, nil) when the pair must be skipped:
// no provision, or no connector-object key item.
func (r *Resolver) Resolve(
	ctx context.Context, any identity.Any, resource *identity.ExternalResource,
) (*ResolvedProvision, error) {

	provision := resource.Provision(any.Type())
	if provision == nil {
		return nil, nil
	}
	if provision.ConnObjectKeyItem() == nil {
		return nil, nil
	}

	keyValue, err := ConnObjectKeyValue(any, provision)
	if err != nil {
		return nil, err
	}

	virSchemas, err := r.VirSchemas.FindByProvision(ctx, provision)
	if err != nil {
		return nil, fmt.Errorf("virtual schemas for provision %s on %s: %w", provision.AnyType, resource.Key, err)
	}

	// Declared items first, then one linking item per virtual schema.
	// Duplicates are not collapsed; the connector copes with them.
	items := make([]*identity.MappingItem, 0, len(provision.Items)+len(virSchemas))
	items = append(items, provision.Items...)
	for _, virSchema := range virSchemas {
		items = append(items, virSchema.AsLinkingMappingItem())
	}

	return &ResolvedProvision{
		ObjectClass:        provision.ObjectClass,
		ConnObjectKeyValue: keyValue,
		Items:              items,
	}, nil
}

// ConnObjectKeyValue projects the object through the provision's key item.
// It is a pure function of the pair.
func ConnObjectKeyValue(any identity.Any, provision *identity.Provision) (string, error) {
	keyItem := provision.ConnObjectKeyItem()
	if keyItem == nil {
		return "", fmt.Errorf("provision for %s has no connector-object key item", provision.AnyType)
	}

	values := intAttrValues(any, keyItem.IntAttrName)
	if len(values) == 0 {
		return "", fmt.Errorf("object %d has no value for key schema %s", any.Key(), keyItem.IntAttrName)
	}
	return values[0], nil
}

// PrepareAttrs renders the object through the provision as if it were
// being written out, excluding password material. The result is the source
// projection the diff engine compares against the remote snapshot.
func PrepareAttrs(any identity.Any, provision *identity.Provision) map[string][]string {
	attrs := make(map[string][]string, len(provision.Items))
	for _, item := range provision.Items {
		if item.Password {
			continue
		}
		attrs[item.ExtAttrName] = intAttrValues(any, item.IntAttrName)
	}
	return attrs
}

// BuildOperationOptions names the remote attributes a read should return,
// one per effective mapping item.
func BuildOperationOptions(items []*identity.MappingItem) connector.OperationOptions {
	attrsToGet := make([]string, 0, len(items))
	for _, item := range items {
		attrsToGet = append(attrsToGet, item.ExtAttrName)
	}
	return connector.OperationOptions{AttributesToGet: attrsToGet}
}

// intAttrValues resolves an internal attribute name to the object's
// values: the fixed fields by well-known name, anything else through the
// plain attributes.
func intAttrValues(any identity.Any, intAttrName string) []string {
	switch intAttrName {
	case "key":
		return []string{strconv.FormatInt(any.Key(), 10)}
	case "status":
		return []string{any.Status()}
	case "username":
		if user, ok := any.(*identity.User); ok {
			return []string{user.Username}
		}
	case "name":
		if group, ok := any.(*identity.Group); ok {
			return []string{group.Name}
		}
	}
	return any.PlainAttrs()[intAttrName]
}
