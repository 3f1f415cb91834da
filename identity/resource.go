package identity

// ExternalResource is a downstream system that identity objects are
// provisioned onto. Provisions are keyed by any-type.
type ExternalResource struct {
	Key        string
	Provisions map[string]*Provision
}

// Provision returns the mapping for the given any-type, or nil when the
// resource does not handle that type.
func (r *ExternalResource) Provision(anyType *AnyType) *Provision {
	if r.Provisions == nil || anyType == nil {
		return nil
	}
	return r.Provisions[anyType.Key]
}

// Provision maps one any-type onto a remote object class, one mapping item
// per attribute correspondence.
type Provision struct {
	AnyType     string
	ObjectClass string
	Items       []*MappingItem
}

// ConnObjectKeyItem returns the item flagged as the connector-object key,
// or nil when the provision has none.
func (p *Provision) ConnObjectKeyItem() *MappingItem {
	for _, item := range p.Items {
		if item.ConnObjectKey {
			return item
		}
	}
	return nil
}

// MappingItem is one row of a provision's attribute correspondence table:
// a local schema (or a special field such as "username") paired with the
// attribute name used on the remote object class.
type MappingItem struct {
	IntAttrName   string
	ExtAttrName   string
	ConnObjectKey bool
	Password      bool
}

// VirSchema is a read-through attribute linked to a provision. It takes
// part in remote reads but never in writes.
type VirSchema struct {
	Key         string
	Provision   string
	ExtAttrName string
}

// AsLinkingMappingItem surfaces the virtual schema as a synthetic
// read-only mapping item appended to the provision's declared items.
func (v *VirSchema) AsLinkingMappingItem() *MappingItem {
	return &MappingItem{
		IntAttrName: v.Key,
		ExtAttrName: v.ExtAttrName,
	}
}
