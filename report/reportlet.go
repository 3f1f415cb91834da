package report

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"f0oster/reconspy/connector"
	"f0oster/reconspy/diff"
	"f0oster/reconspy/identity"
	"f0oster/reconspy/mapping"
	"f0oster/reconspy/population"
	"f0oster/reconspy/store"
)

// Reportlet extracts the reconciliation status of the whole identity
// population: for every object, which projections are missing on the
// mapped resources and which carry diverging attribute values. It only
// reads; neither the store nor the resources are touched.
type Reportlet struct {
	AnyTypes   store.AnyTypeDAO
	VirSchemas store.VirSchemaDAO
	Search     store.AnySearchDAO
	Connectors connector.Factory
}

// Extract runs the report, streaming one XML fragment per kind into the
// handler: users, groups, then one anyObjects wrapper per custom
// any-type. Objects with no findings are omitted.
func (r *Reportlet) Extract(ctx context.Context, conf interface{}, handler ContentHandler) error {
	rc, ok := conf.(*ReconciliationConf)
	if !ok {
		return &RunError{Cause: ErrInvalidConf}
	}

	log.Printf("starting reconciliation report run %s", uuid.New())

	if err := r.extractKind(ctx, rc, handler, identity.KindUser, rc.UserMatchingCond); err != nil {
		return fatal(err)
	}
	if err := r.extractKind(ctx, rc, handler, identity.KindGroup, rc.GroupMatchingCond); err != nil {
		return fatal(err)
	}
	if err := r.extractAnyObjects(ctx, rc, handler); err != nil {
		return fatal(err)
	}

	return nil
}

// extractKind emits the <users> or <groups> section.
func (r *Reportlet) extractKind(
	ctx context.Context,
	rc *ReconciliationConf,
	handler ContentHandler,
	kind identity.Kind,
	matchingCond string,
) error {

	return r.extractSection(ctx, rc, handler, kind, kind.ElementName()+"s", nil, matchingCond, nil)
}

func (r *Reportlet) extractAnyObjects(ctx context.Context, rc *ReconciliationConf, handler ContentHandler) error {
	anyTypes, err := r.AnyTypes.FindAllAnyTypes(ctx)
	if err != nil {
		return fmt.Errorf("listing any-types: %w", err)
	}
	userType, err := r.AnyTypes.FindUserType(ctx)
	if err != nil {
		return fmt.Errorf("finding user any-type: %w", err)
	}
	groupType, err := r.AnyTypes.FindGroupType(ctx)
	if err != nil {
		return fmt.Errorf("finding group any-type: %w", err)
	}

	for _, anyType := range anyTypes {
		if anyType.Key == userType.Key || anyType.Key == groupType.Key {
			continue
		}

		wrapperAttrs := []Attr{{Name: "type", Type: XSDString, Value: anyType.Key}}
		cond := store.AnyTypeLeafCond(anyType.Key)
		if err := r.extractSection(
			ctx, rc, handler, identity.KindAnyObject, "anyObjects", wrapperAttrs,
			rc.AnyObjectMatchingCond, cond,
		); err != nil {
			return err
		}
	}

	return nil
}

func (r *Reportlet) extractSection(
	ctx context.Context,
	rc *ReconciliationConf,
	handler ContentHandler,
	kind identity.Kind,
	wrapper string,
	wrapperAttrs []Attr,
	matchingCond string,
	extraCond *store.SearchCond,
) error {

	cond, err := store.ConvertSearchCond(matchingCond)
	if err != nil {
		return fmt.Errorf("matching condition for %s: %w", wrapper, err)
	}
	if extraCond != nil {
		if cond == nil {
			cond = extraCond
		} else {
			cond = store.AndCond(extraCond, cond)
		}
	}

	if err := handler.StartElement(wrapper, wrapperAttrs); err != nil {
		return err
	}

	iter := &population.Iterator{Search: r.Search}
	err = iter.ForEachPage(ctx, cond, kind, func(objects []identity.Any) error {
		return r.extractObjects(ctx, rc, handler, objects)
	})
	if err != nil {
		return err
	}

	return handler.EndElement(wrapper)
}

// extractObjects inspects one page of objects against every resource
// reachable through their provisioning and emits the objects that have
// findings.
func (r *Reportlet) extractObjects(
	ctx context.Context,
	rc *ReconciliationConf,
	handler ContentHandler,
	objects []identity.Any,
) error {

	resolver := &mapping.Resolver{VirSchemas: r.VirSchemas}

	for _, any := range objects {
		var missing []diff.Missing
		var misaligned []diff.Misaligned

		for _, resource := range any.Resources() {
			resolved, err := resolver.Resolve(ctx, any, resource)
			if err != nil {
				return err
			}
			if resolved == nil {
				continue
			}

			remote, err := r.readRemote(ctx, resource, resolved)
			if err != nil {
				// A connector failure is confined to this (object, resource)
				// pair and handled as a miss.
				log.Printf("reading %s/%s from resource %s: %v",
					resolved.ObjectClass, resolved.ConnObjectKeyValue, resource.Key, err)
				remote = nil
			}

			if remote == nil {
				log.Printf("object %s with class %s not found on resource %s",
					resolved.ConnObjectKeyValue, resolved.ObjectClass, resource.Key)
				missing = append(missing, diff.Missing{
					Resource:           resource.Key,
					ConnObjectKeyValue: resolved.ConnObjectKeyValue,
				})
				continue
			}

			source := mapping.PrepareAttrs(any, resource.Provision(any.Type()))
			snapshot := diff.RemoteSnapshot(remote.Attributes)
			misaligned = append(misaligned,
				diff.FindMisaligned(resource.Key, resolved.ConnObjectKeyValue, source, snapshot)...)
		}

		if len(missing) == 0 && len(misaligned) == 0 {
			continue
		}
		if err := r.emitObject(handler, rc, any, missing, misaligned); err != nil {
			return err
		}
	}

	return nil
}

func (r *Reportlet) readRemote(
	ctx context.Context,
	resource *identity.ExternalResource,
	resolved *mapping.ResolvedProvision,
) (*connector.Object, error) {

	conn, err := r.Connectors.Connector(resource)
	if err != nil {
		return nil, err
	}
	return conn.GetObject(ctx, resolved.ObjectClass, resolved.ConnObjectKeyValue,
		mapping.BuildOperationOptions(resolved.Items))
}

// emitObject writes one object element with its findings, missing before
// misaligned.
func (r *Reportlet) emitObject(
	handler ContentHandler,
	rc *ReconciliationConf,
	any identity.Any,
	missing []diff.Missing,
	misaligned []diff.Misaligned,
) error {

	element := any.Type().Kind.ElementName()
	if err := handler.StartElement(element, featureAttrs(rc.Features, any)); err != nil {
		return err
	}

	for _, item := range missing {
		attrs := []Attr{
			{Name: "resource", Type: XSDString, Value: item.Resource},
			{Name: "connObjectKeyValue", Type: XSDString, Value: item.ConnObjectKeyValue},
		}
		if err := handler.StartElement("missing", attrs); err != nil {
			return err
		}
		if err := handler.EndElement("missing"); err != nil {
			return err
		}
	}

	for _, item := range misaligned {
		attrs := []Attr{
			{Name: "resource", Type: XSDString, Value: item.Resource},
			{Name: "connObjectKeyValue", Type: XSDString, Value: item.ConnObjectKeyValue},
			{Name: "name", Type: XSDString, Value: item.Name},
		}
		if err := handler.StartElement("misaligned", attrs); err != nil {
			return err
		}
		if err := emitValues(handler, "onSyncope", item.OnSyncope); err != nil {
			return err
		}
		if err := emitValues(handler, "onResource", item.OnResource); err != nil {
			return err
		}
		if err := handler.EndElement("misaligned"); err != nil {
			return err
		}
	}

	return handler.EndElement(element)
}

func emitValues(handler ContentHandler, wrapper string, values []string) error {
	if err := handler.StartElement(wrapper, nil); err != nil {
		return err
	}
	for _, value := range values {
		if err := handler.StartElement("value", nil); err != nil {
			return err
		}
		if err := handler.Characters(value); err != nil {
			return err
		}
		if err := handler.EndElement("value"); err != nil {
			return err
		}
	}
	return handler.EndElement(wrapper)
}
