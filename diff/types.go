package diff

// Missing records that an identity object should have a projection on a
// resource but the connector found none.
type Missing struct {
	Resource           string
	ConnObjectKeyValue string
}

// Misaligned records one attribute whose value sets disagree between the
// store and the resource. An empty set on one side means the attribute is
// present on the other side only.
type Misaligned struct {
	Resource           string
	ConnObjectKeyValue string
	Name               string
	OnSyncope          []string
	OnResource         []string
}
