package report_test

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"testing"

	"f0oster/reconspy/connector"
	"f0oster/reconspy/identity"
	"f0oster/reconspy/report"
	"f0oster/reconspy/store"
)

// fakeStore implements the DAO surface over an in-memory population.
type fakeStore struct {
	anyTypes   []*identity.AnyType
	objects    []identity.Any
	virSchemas map[string][]*identity.VirSchema
}

func (s *fakeStore) FindAllAnyTypes(ctx context.Context) ([]*identity.AnyType, error) {
	return s.anyTypes, nil
}

func (s *fakeStore) FindUserType(ctx context.Context) (*identity.AnyType, error) {
	return s.typeByKind(identity.KindUser)
}

func (s *fakeStore) FindGroupType(ctx context.Context) (*identity.AnyType, error) {
	return s.typeByKind(identity.KindGroup)
}

func (s *fakeStore) typeByKind(kind identity.Kind) (*identity.AnyType, error) {
	for _, anyType := range s.anyTypes {
		if anyType.Kind == kind {
			return anyType, nil
		}
	}
	return nil, fmt.Errorf("no any-type of kind %s", kind)
}

func (s *fakeStore) FindByProvision(
	ctx context.Context, provision *identity.Provision,
) ([]*identity.VirSchema, error) {
	return s.virSchemas[provision.AnyType], nil
}

func (s *fakeStore) Count(
	ctx context.Context, realms []string, cond *store.SearchCond, kind identity.Kind,
) (int, error) {
	return len(s.filter(cond, kind)), nil
}

func (s *fakeStore) Search(
	ctx context.Context, realms []string, cond *store.SearchCond,
	page, pageSize int, orderBy []store.OrderByClause, kind identity.Kind,
) ([]identity.Any, error) {
	matched := s.filter(cond, kind)
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func (s *fakeStore) filter(cond *store.SearchCond, kind identity.Kind) []identity.Any {
	var matched []identity.Any
	for _, object := range s.objects {
		if object.Type().Kind == kind && matches(object, cond) {
			matched = append(matched, object)
		}
	}
	return matched
}

func matches(object identity.Any, cond *store.SearchCond) bool {
	if cond == nil {
		return true
	}
	if cond.IsAnd() {
		return matches(object, cond.Left) && matches(object, cond.Right)
	}
	if cond.AnyType != nil {
		return object.Type().Key == cond.AnyType.AnyTypeKey
	}
	if cond.Attr != nil {
		if cond.Attr.Schema == "username" {
			user, isUser := object.(*identity.User)
			return isUser && user.Username == cond.Attr.Expression
		}
		for _, value := range object.PlainAttrs()[cond.Attr.Schema] {
			if value == cond.Attr.Expression {
				return true
			}
		}
	}
	return false
}

// fakeConnector serves canned objects by uid; a nil entry is a miss.
type fakeConnector struct {
	objects map[string]*connector.Object
	err     error
}

func (c *fakeConnector) GetObject(
	ctx context.Context, objectClass, uid string, opts connector.OperationOptions,
) (*connector.Object, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.objects[uid], nil
}

type fakeFactory struct {
	connectors map[string]connector.Connector
}

func (f *fakeFactory) Connector(resource *identity.ExternalResource) (connector.Connector, error) {
	conn, ok := f.connectors[resource.Key]
	if !ok {
		return nil, fmt.Errorf("no connector for resource %s", resource.Key)
	}
	return conn, nil
}

func builtinTypes() (*identity.AnyType, *identity.AnyType) {
	return &identity.AnyType{Key: "USER", Kind: identity.KindUser},
		&identity.AnyType{Key: "GROUP", Kind: identity.KindGroup}
}

func userResource(key string) *identity.ExternalResource {
	return &identity.ExternalResource{
		Key: key,
		Provisions: map[string]*identity.Provision{
			"USER": {
				AnyType:     "USER",
				ObjectClass: "inetOrgPerson",
				Items: []*identity.MappingItem{
					{IntAttrName: "username", ExtAttrName: "uid", ConnObjectKey: true},
					{IntAttrName: "mail", ExtAttrName: "mail"},
					{IntAttrName: "dept", ExtAttrName: "dept"},
				},
			},
		},
	}
}

func newUser(key int64, username string, anyType *identity.AnyType, attrs map[string][]string, resources ...*identity.ExternalResource) *identity.User {
	return &identity.User{
		Base: identity.Base{
			ObjectKey: key,
			AnyType:   anyType,
			Assigned:  resources,
			Attrs:     attrs,
		},
		Username: username,
	}
}

func runReport(t *testing.T, s *fakeStore, factory connector.Factory, conf *report.ReconciliationConf) string {
	t.Helper()

	var buf bytes.Buffer
	writer := report.NewXMLWriter(&buf)
	if err := writer.StartElement("report", nil); err != nil {
		t.Fatalf("start report: %v", err)
	}

	reportlet := &report.Reportlet{
		AnyTypes:   s,
		VirSchemas: s,
		Search:     s,
		Connectors: factory,
	}
	if err := reportlet.Extract(context.Background(), conf, writer); err != nil {
		t.Fatalf("extract: %v", err)
	}

	if err := writer.EndElement("report"); err != nil {
		t.Fatalf("end report: %v", err)
	}
	return buf.String()
}

func keyOnlyConf() *report.ReconciliationConf {
	return &report.ReconciliationConf{Features: []report.Feature{report.FeatureKey}}
}

func TestExtractRejectsWrongConfType(t *testing.T) {
	userType, groupType := builtinTypes()
	s := &fakeStore{anyTypes: []*identity.AnyType{userType, groupType}}
	reportlet := &report.Reportlet{AnyTypes: s, VirSchemas: s, Search: s, Connectors: &fakeFactory{}}

	var buf bytes.Buffer
	err := reportlet.Extract(context.Background(), "bogus", report.NewXMLWriter(&buf))
	if err == nil {
		t.Fatal("expected an error for a wrong configuration type")
	}
	if !errors.Is(err, report.ErrInvalidConf) {
		t.Errorf("expected ErrInvalidConf, got %v", err)
	}
	var runErr *report.RunError
	if !errors.As(err, &runErr) {
		t.Errorf("expected a RunError, got %T", err)
	}
}

func TestPerfectAlignmentEmitsNoObject(t *testing.T) {
	userType, groupType := builtinTypes()
	r1 := userResource("R1")
	alice := newUser(1, "alice", userType, map[string][]string{"mail": {"a@x"}}, r1)
	s := &fakeStore{anyTypes: []*identity.AnyType{userType, groupType}, objects: []identity.Any{alice}}
	factory := &fakeFactory{connectors: map[string]connector.Connector{
		"R1": &fakeConnector{objects: map[string]*connector.Object{
			"alice": {Attributes: map[string][]string{"uid": {"alice"}, "mail": {"a@x"}, "dept": nil}},
		}},
	}}

	out := runReport(t, s, factory, keyOnlyConf())
	if !strings.Contains(out, "<users/>") {
		t.Errorf("expected empty users section, got %q", out)
	}
	if strings.Contains(out, "<user ") {
		t.Errorf("aligned object must be omitted, got %q", out)
	}
}

func TestMissingOnResource(t *testing.T) {
	userType, groupType := builtinTypes()
	r1 := userResource("R1")
	bob := newUser(2, "bob", userType, nil, r1)
	s := &fakeStore{anyTypes: []*identity.AnyType{userType, groupType}, objects: []identity.Any{bob}}
	factory := &fakeFactory{connectors: map[string]connector.Connector{
		"R1": &fakeConnector{},
	}}

	out := runReport(t, s, factory, keyOnlyConf())
	if !strings.Contains(out, `<user key="2">`) {
		t.Errorf("expected user element for bob, got %q", out)
	}
	if !strings.Contains(out, `<missing resource="R1" connObjectKeyValue="bob"/>`) {
		t.Errorf("expected missing record, got %q", out)
	}
	if strings.Contains(out, "<misaligned") {
		t.Errorf("missing and misaligned must not coexist for the same pair, got %q", out)
	}
}

func TestAttributeDrift(t *testing.T) {
	userType, groupType := builtinTypes()
	r1 := userResource("R1")
	carol := newUser(3, "carol", userType, map[string][]string{"mail": {"c@x"}, "dept": {"sales"}}, r1)
	s := &fakeStore{anyTypes: []*identity.AnyType{userType, groupType}, objects: []identity.Any{carol}}
	factory := &fakeFactory{connectors: map[string]connector.Connector{
		"R1": &fakeConnector{objects: map[string]*connector.Object{
			"carol": {Attributes: map[string][]string{
				"uid":          {"carol"},
				"mail":         {"c@y"},
				"dept":         {"sales"},
				"__PASSWORD__": {"hash"},
			}},
		}},
	}}

	out := runReport(t, s, factory, keyOnlyConf())
	if !strings.Contains(out, `<user key="3">`) {
		t.Errorf("expected user element for carol, got %q", out)
	}
	if !strings.Contains(out, `name="mail"`) {
		t.Errorf("expected a mail misalignment, got %q", out)
	}
	if !strings.Contains(out, "<onSyncope><value>c@x</value></onSyncope>") {
		t.Errorf("expected source values, got %q", out)
	}
	if !strings.Contains(out, "<onResource><value>c@y</value></onResource>") {
		t.Errorf("expected resource values, got %q", out)
	}
	if strings.Contains(out, "__PASSWORD__") {
		t.Errorf("password attribute leaked into findings: %q", out)
	}
	if strings.Contains(out, `name="dept"`) {
		t.Errorf("aligned attribute must produce no finding: %q", out)
	}
	if strings.Contains(out, "<missing") {
		t.Errorf("missing and misaligned must not coexist for the same pair: %q", out)
	}
}

func TestOnlyOnResourceAttribute(t *testing.T) {
	userType, groupType := builtinTypes()
	r1 := &identity.ExternalResource{
		Key: "R1",
		Provisions: map[string]*identity.Provision{
			"USER": {
				AnyType:     "USER",
				ObjectClass: "inetOrgPerson",
				Items: []*identity.MappingItem{
					{IntAttrName: "username", ExtAttrName: "uid", ConnObjectKey: true},
					{IntAttrName: "mail", ExtAttrName: "mail"},
				},
			},
		},
	}
	dave := newUser(4, "dave", userType, map[string][]string{"mail": {"d@x"}}, r1)
	s := &fakeStore{anyTypes: []*identity.AnyType{userType, groupType}, objects: []identity.Any{dave}}
	factory := &fakeFactory{connectors: map[string]connector.Connector{
		"R1": &fakeConnector{objects: map[string]*connector.Object{
			"dave": {Attributes: map[string][]string{
				"uid":   {"dave"},
				"mail":  {"d@x"},
				"phone": {"555"},
			}},
		}},
	}}

	out := runReport(t, s, factory, keyOnlyConf())
	if !strings.Contains(out, `name="phone"`) {
		t.Errorf("expected a phone misalignment, got %q", out)
	}
	if !strings.Contains(out, "<onSyncope/>") {
		t.Errorf("expected empty onSyncope set, got %q", out)
	}
	if !strings.Contains(out, "<onResource><value>555</value></onResource>") {
		t.Errorf("expected resource-side value, got %q", out)
	}
}

func TestMultiResourceFanOut(t *testing.T) {
	userType, groupType := builtinTypes()
	r1 := userResource("R1")
	r2 := userResource("R2")
	erin := newUser(5, "erin", userType, map[string][]string{"mail": {"e@x"}}, r1, r2)
	s := &fakeStore{anyTypes: []*identity.AnyType{userType, groupType}, objects: []identity.Any{erin}}
	factory := &fakeFactory{connectors: map[string]connector.Connector{
		"R1": &fakeConnector{},
		"R2": &fakeConnector{objects: map[string]*connector.Object{
			"erin": {Attributes: map[string][]string{"uid": {"erin"}, "mail": {"e@x"}, "dept": nil}},
		}},
	}}

	out := runReport(t, s, factory, keyOnlyConf())
	if strings.Count(out, "<missing") != 1 {
		t.Errorf("expected exactly one missing record, got %q", out)
	}
	if !strings.Contains(out, `<missing resource="R1" connObjectKeyValue="erin"/>`) {
		t.Errorf("expected R1 missing record, got %q", out)
	}
	if strings.Contains(out, `resource="R2"`) {
		t.Errorf("aligned R2 must produce no findings, got %q", out)
	}
}

func TestConnectorFailureIsolatedPerResource(t *testing.T) {
	userType, groupType := builtinTypes()
	r1 := userResource("R1")
	r2 := userResource("R2")
	frank := newUser(6, "frank", userType, map[string][]string{"mail": {"f@x"}}, r1, r2)
	s := &fakeStore{anyTypes: []*identity.AnyType{userType, groupType}, objects: []identity.Any{frank}}
	factory := &fakeFactory{connectors: map[string]connector.Connector{
		"R1": &fakeConnector{err: errors.New("connection refused")},
		"R2": &fakeConnector{objects: map[string]*connector.Object{
			"frank": {Attributes: map[string][]string{"uid": {"frank"}, "mail": {"f@x"}, "dept": nil}},
		}},
	}}

	out := runReport(t, s, factory, keyOnlyConf())
	if !strings.Contains(out, `<missing resource="R1" connObjectKeyValue="frank"/>`) {
		t.Errorf("a failed read should count as missing on that resource, got %q", out)
	}
	if strings.Contains(out, `resource="R2"`) {
		t.Errorf("the healthy resource should still be reconciled cleanly, got %q", out)
	}
}

func TestNoProvisionForTypeProducesNoFindings(t *testing.T) {
	userType, groupType := builtinTypes()
	bare := &identity.ExternalResource{Key: "R1"}
	gina := newUser(7, "gina", userType, nil, bare)
	s := &fakeStore{anyTypes: []*identity.AnyType{userType, groupType}, objects: []identity.Any{gina}}

	out := runReport(t, s, &fakeFactory{}, keyOnlyConf())
	if !strings.Contains(out, "<users/>") {
		t.Errorf("expected empty users section, got %q", out)
	}
}

func TestCustomAnyTypeWrappers(t *testing.T) {
	userType, groupType := builtinTypes()
	s := &fakeStore{anyTypes: []*identity.AnyType{
		userType,
		groupType,
		{Key: "printer", Kind: identity.KindAnyObject},
		{Key: "badge", Kind: identity.KindAnyObject},
	}}

	out := runReport(t, s, &fakeFactory{}, keyOnlyConf())

	printerIdx := strings.Index(out, `<anyObjects type="printer"/>`)
	badgeIdx := strings.Index(out, `<anyObjects type="badge"/>`)
	groupsIdx := strings.Index(out, "<groups/>")
	if printerIdx < 0 || badgeIdx < 0 {
		t.Fatalf("expected one wrapper per custom any-type, got %q", out)
	}
	if printerIdx < groupsIdx || badgeIdx < printerIdx {
		t.Errorf("wrappers out of order: %q", out)
	}
}

func TestAnyObjectSectionFindings(t *testing.T) {
	userType, groupType := builtinTypes()
	printerType := &identity.AnyType{Key: "printer", Kind: identity.KindAnyObject}
	r1 := &identity.ExternalResource{
		Key: "R1",
		Provisions: map[string]*identity.Provision{
			"printer": {
				AnyType:     "printer",
				ObjectClass: "device",
				Items: []*identity.MappingItem{
					{IntAttrName: "serial", ExtAttrName: "serialNumber", ConnObjectKey: true},
					{IntAttrName: "location", ExtAttrName: "location"},
				},
			},
		},
	}
	lobby := &identity.AnyObject{Base: identity.Base{
		ObjectKey: 10,
		AnyType:   printerType,
		Assigned:  []*identity.ExternalResource{r1},
		Attrs:     map[string][]string{"serial": {"SN1"}, "location": {"lobby"}},
	}}
	vault := &identity.AnyObject{Base: identity.Base{
		ObjectKey: 11,
		AnyType:   printerType,
		Assigned:  []*identity.ExternalResource{r1},
		Attrs:     map[string][]string{"serial": {"SN2"}, "location": {"vault"}},
	}}
	s := &fakeStore{
		anyTypes: []*identity.AnyType{userType, groupType, printerType},
		objects:  []identity.Any{lobby, vault},
	}
	factory := &fakeFactory{connectors: map[string]connector.Connector{
		"R1": &fakeConnector{objects: map[string]*connector.Object{
			"SN1": {Attributes: map[string][]string{"serialNumber": {"SN1"}, "location": {"basement"}}},
		}},
	}}

	// The matching condition narrows the printer population to SN1; the
	// SN2 printer is absent on R1 and would surface as missing if the
	// condition were not applied on top of the type filter.
	conf := keyOnlyConf()
	conf.AnyObjectMatchingCond = "serial==SN1"
	out := runReport(t, s, factory, conf)

	if !strings.Contains(out, `<anyObjects type="printer">`) {
		t.Fatalf("expected a populated printer wrapper, got %q", out)
	}
	if !strings.Contains(out, `<anyObject key="10">`) {
		t.Errorf("expected anyObject element for the drifted printer, got %q", out)
	}
	if !strings.Contains(out, `name="location"`) {
		t.Errorf("expected a location misalignment, got %q", out)
	}
	if !strings.Contains(out, "<onSyncope><value>lobby</value></onSyncope>") {
		t.Errorf("expected source-side location, got %q", out)
	}
	if !strings.Contains(out, "<onResource><value>basement</value></onResource>") {
		t.Errorf("expected resource-side location, got %q", out)
	}
	if strings.Contains(out, `key="11"`) {
		t.Errorf("printer outside the matching condition must not appear, got %q", out)
	}
}

func TestFeatureNotApplicableIsAbsent(t *testing.T) {
	userType, groupType := builtinTypes()
	r1 := &identity.ExternalResource{
		Key: "R1",
		Provisions: map[string]*identity.Provision{
			"GROUP": {
				AnyType:     "GROUP",
				ObjectClass: "groupOfNames",
				Items: []*identity.MappingItem{
					{IntAttrName: "name", ExtAttrName: "cn", ConnObjectKey: true},
				},
			},
		},
	}
	admins := &identity.Group{
		Base: identity.Base{ObjectKey: 8, AnyType: groupType, Assigned: []*identity.ExternalResource{r1}},
		Name: "admins",
	}
	s := &fakeStore{anyTypes: []*identity.AnyType{userType, groupType}, objects: []identity.Any{admins}}
	factory := &fakeFactory{connectors: map[string]connector.Connector{"R1": &fakeConnector{}}}

	conf := &report.ReconciliationConf{Features: []report.Feature{
		report.FeatureKey, report.FeatureUsername, report.FeatureGroupName,
	}}
	out := runReport(t, s, factory, conf)

	if !strings.Contains(out, `<group key="8" groupName="admins">`) {
		t.Errorf("expected group element with key and groupName, got %q", out)
	}
	if strings.Contains(out, "username=") {
		t.Errorf("username feature must be absent on groups, got %q", out)
	}
}

func TestGroupSectionUsesGroupMatchingCond(t *testing.T) {
	userType, groupType := builtinTypes()
	r1 := &identity.ExternalResource{
		Key: "R1",
		Provisions: map[string]*identity.Provision{
			"GROUP": {
				AnyType:     "GROUP",
				ObjectClass: "groupOfNames",
				Items: []*identity.MappingItem{
					{IntAttrName: "name", ExtAttrName: "cn", ConnObjectKey: true},
				},
			},
		},
	}
	admins := &identity.Group{
		Base: identity.Base{
			ObjectKey: 9,
			AnyType:   groupType,
			Assigned:  []*identity.ExternalResource{r1},
			Attrs:     map[string][]string{"tier": {"gold"}},
		},
		Name: "admins",
	}
	s := &fakeStore{anyTypes: []*identity.AnyType{userType, groupType}, objects: []identity.Any{admins}}
	factory := &fakeFactory{connectors: map[string]connector.Connector{"R1": &fakeConnector{}}}

	// The conditions diverge: only the group condition matches the
	// drifted group, the user condition matches nothing at all. Reading
	// the wrong condition for the group section would hide the finding.
	conf := keyOnlyConf()
	conf.UserMatchingCond = "username==nobody"
	conf.GroupMatchingCond = "tier==gold"
	out := runReport(t, s, factory, conf)

	if !strings.Contains(out, "<users/>") {
		t.Errorf("no user matches the user condition, got %q", out)
	}
	if !strings.Contains(out, `<group key="9">`) {
		t.Errorf("expected group element for admins, got %q", out)
	}
	if !strings.Contains(out, `<missing resource="R1" connObjectKeyValue="admins"/>`) {
		t.Errorf("expected missing record for admins, got %q", out)
	}
}

// report findings survive an XML parse round trip.
func TestRoundTripPreservesFindings(t *testing.T) {
	userType, groupType := builtinTypes()
	r1 := userResource("R1")
	r2 := userResource("R2")
	bob := newUser(2, "bob", userType, map[string][]string{"mail": {"b@x"}}, r1, r2)
	s := &fakeStore{anyTypes: []*identity.AnyType{userType, groupType}, objects: []identity.Any{bob}}
	factory := &fakeFactory{connectors: map[string]connector.Connector{
		"R1": &fakeConnector{},
		"R2": &fakeConnector{objects: map[string]*connector.Object{
			"bob": {Attributes: map[string][]string{"uid": {"bob"}, "mail": {"b@y"}, "dept": nil}},
		}},
	}}

	out := runReport(t, s, factory, keyOnlyConf())

	decoder := xml.NewDecoder(strings.NewReader(out))
	missingCount, misalignedCount := 0, 0
	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "missing":
			missingCount++
			assertAttr(t, start, "resource", "R1")
			assertAttr(t, start, "connObjectKeyValue", "bob")
		case "misaligned":
			misalignedCount++
			assertAttr(t, start, "resource", "R2")
		}
	}

	if missingCount != 1 {
		t.Errorf("expected one missing finding after reparse, got %d", missingCount)
	}
	if misalignedCount != 1 {
		t.Errorf("expected one misaligned finding for mail, got %d", misalignedCount)
	}
}

func assertAttr(t *testing.T, element xml.StartElement, name, value string) {
	t.Helper()
	for _, attr := range element.Attr {
		if attr.Name.Local == name {
			if attr.Value != value {
				t.Errorf("<%s %s>: got %q, want %q", element.Name.Local, name, attr.Value, value)
			}
			return
		}
	}
	t.Errorf("<%s> has no attribute %s", element.Name.Local, name)
}
