package identity

import (
	"time"
)

// Kind discriminates the three families of identity objects held in the
// store. Users and groups are fixed; everything else is an any-object
// qualified by its AnyType.
type Kind int

const (
	KindUser Kind = iota
	KindGroup
	KindAnyObject
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "USER"
	case KindGroup:
		return "GROUP"
	default:
		return "ANY_OBJECT"
	}
}

// ElementName is the XML element emitted for a single object of this kind.
func (k Kind) ElementName() string {
	switch k {
	case KindUser:
		return "user"
	case KindGroup:
		return "group"
	default:
		return "anyObject"
	}
}

// AnyType is a named category of identity objects. The built-in "USER" and
// "GROUP" types carry the fixed kinds; user-defined types are ANY_OBJECT.
type AnyType struct {
	Key  string
	Kind Kind
}

// Any is the common surface of users, groups and any-objects.
type Any interface {
	Key() int64
	Type() *AnyType
	WorkflowID() int64
	Status() string
	CreationDate() *time.Time

	// Resources returns every external resource the object is mapped to,
	// directly or through its memberships. No resource appears twice.
	Resources() []*ExternalResource

	// PlainAttrs returns the object's attribute values keyed by schema name.
	PlainAttrs() map[string][]string
}

// Base carries the fields shared by every identity object. Concrete types
// embed it and the Any methods read from it.
type Base struct {
	ObjectKey   int64
	AnyType     *AnyType
	Workflow    int64
	StatusValue string
	Created     *time.Time
	Assigned    []*ExternalResource
	Attrs       map[string][]string
}

func (b *Base) Key() int64                     { return b.ObjectKey }
func (b *Base) Type() *AnyType                 { return b.AnyType }
func (b *Base) WorkflowID() int64              { return b.Workflow }
func (b *Base) Status() string                 { return b.StatusValue }
func (b *Base) CreationDate() *time.Time       { return b.Created }
func (b *Base) Resources() []*ExternalResource { return b.Assigned }
func (b *Base) PlainAttrs() map[string][]string {
	if b.Attrs == nil {
		return map[string][]string{}
	}
	return b.Attrs
}

type User struct {
	Base
	Username        string
	LastLoginDate   *time.Time
	ChangePwdDate   *time.Time
	PasswordHistory []string
	FailedLogins    int
}

type Group struct {
	Base
	Name string
}

type AnyObject struct {
	Base
}
