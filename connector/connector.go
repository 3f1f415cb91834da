package connector

import (
	"context"

	"f0oster/reconspy/identity"
)

// OperationOptions narrows a remote read to the attributes the caller is
// interested in.
type OperationOptions struct {
	AttributesToGet []string
}

// Object is a point-in-time snapshot of one remote object: its attribute
// values keyed by remote attribute name.
type Object struct {
	ObjectClass string
	UID         string
	Attributes  map[string][]string
}

// Connector reads objects from one external resource. A nil Object with a
// nil error means the object does not exist on the resource.
type Connector interface {
	GetObject(ctx context.Context, objectClass, uid string, opts OperationOptions) (*Object, error)
}

// Factory resolves the connector serving an external resource.
type Factory interface {
	Connector(resource *identity.ExternalResource) (Connector, error)
}
