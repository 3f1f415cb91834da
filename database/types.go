package database

import (
	"time"

	"github.com/google/uuid"
)

// AnyTypeRecord represents a row in the any_types table.
type AnyTypeRecord struct {
	TypeKey string
	Kind    string
}

// ProvisionRecord represents a row in the provisions table.
type ProvisionRecord struct {
	ProvisionID uuid.UUID
	ResourceKey string
	AnyType     string
	ObjectClass string
}

// MappingItemRecord represents a row in the mapping_items table.
type MappingItemRecord struct {
	ItemID        uuid.UUID
	ProvisionID   uuid.UUID
	IntAttrName   string
	ExtAttrName   string
	ConnObjectKey bool
	Password      bool
}

// VirSchemaRecord represents a row in the virtual_schemas table.
type VirSchemaRecord struct {
	SchemaKey   string
	ProvisionID uuid.UUID
	ExtAttrName string
}

// ObjectRecord represents a row in the any_objects table. Nullable
// columns map to pointers; user- and group-only columns stay NULL for the
// other kinds.
type ObjectRecord struct {
	ObjectKey           int64
	AnyType             string
	Realm               string
	WorkflowID          int64
	Status              *string
	CreationDate        *time.Time
	Username            *string
	GroupName           *string
	LastLoginDate       *time.Time
	ChangePwdDate       *time.Time
	PasswordHistorySize int
	FailedLogins        int
}
