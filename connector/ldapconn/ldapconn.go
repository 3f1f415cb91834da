package ldapconn

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-ldap/ldap/v3"
	"gopkg.in/yaml.v3"

	"f0oster/reconspy/connector"
	"f0oster/reconspy/identity"
)

// Endpoint describes how to reach and bind one LDAP-backed resource.
type Endpoint struct {
	URL          string `yaml:"url"`
	BindDN       string `yaml:"bindDN"`
	BindPassword string `yaml:"bindPassword"`
	BaseDN       string `yaml:"baseDN"`
	// UIDAttribute is the entry attribute holding the connector-object key
	// value. Defaults to "uid".
	UIDAttribute string `yaml:"uidAttribute"`
}

// LoadEndpoints reads the resource-key to endpoint map from a YAML file.
func LoadEndpoints(path string) (map[string]Endpoint, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading resource endpoints %s: %w", path, err)
	}
	var endpoints map[string]Endpoint
	if err := yaml.Unmarshal(raw, &endpoints); err != nil {
		return nil, fmt.Errorf("parsing resource endpoints %s: %w", path, err)
	}
	return endpoints, nil
}

// LDAPConnector reads remote objects from a directory server over LDAP.
type LDAPConnector struct {
	endpoint Endpoint
	conn     *ldap.Conn
}

// Dial connects and binds to the endpoint.
func Dial(endpoint Endpoint) (*LDAPConnector, error) {
	if endpoint.UIDAttribute == "" {
		endpoint.UIDAttribute = "uid"
	}

	conn, err := ldap.DialURL(endpoint.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server %s: %w", endpoint.URL, err)
	}

	if err := conn.Bind(endpoint.BindDN, endpoint.BindPassword); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to bind to LDAP server %s: %w", endpoint.URL, err)
	}

	return &LDAPConnector{endpoint: endpoint, conn: conn}, nil
}

func (c *LDAPConnector) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// GetObject looks up the single entry of the given object class whose UID
// attribute carries uid, fetching only the requested attributes. A miss
// returns (nil, nil).
func (c *LDAPConnector) GetObject(
	ctx context.Context, objectClass, uid string, opts connector.OperationOptions,
) (*connector.Object, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filter := fmt.Sprintf("(&(objectClass=%s)(%s=%s))",
		ldap.EscapeFilter(objectClass),
		c.endpoint.UIDAttribute,
		ldap.EscapeFilter(uid))

	request := ldap.NewSearchRequest(
		c.endpoint.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		filter,
		opts.AttributesToGet,
		nil,
	)

	result, err := c.conn.Search(request)
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}

	if len(result.Entries) == 0 {
		return nil, nil
	}
	if len(result.Entries) > 1 {
		log.Printf("multiple entries match %s=%s under %s, using the first", c.endpoint.UIDAttribute, uid, c.endpoint.BaseDN)
	}

	entry := result.Entries[0]
	attrs := make(map[string][]string, len(entry.Attributes))
	for _, attr := range entry.Attributes {
		attrs[attr.Name] = attr.Values
	}

	return &connector.Object{
		ObjectClass: objectClass,
		UID:         uid,
		Attributes:  attrs,
	}, nil
}

// Factory serves the same LDAP connector for every resource it knows
// about, one endpoint per resource key.
type Factory struct {
	endpoints  map[string]Endpoint
	connectors map[string]*LDAPConnector
}

func NewFactory(endpoints map[string]Endpoint) *Factory {
	return &Factory{
		endpoints:  endpoints,
		connectors: make(map[string]*LDAPConnector),
	}
}

func (f *Factory) Connector(resource *identity.ExternalResource) (connector.Connector, error) {
	if conn, ok := f.connectors[resource.Key]; ok {
		return conn, nil
	}

	endpoint, ok := f.endpoints[resource.Key]
	if !ok {
		return nil, fmt.Errorf("no LDAP endpoint configured for resource %s", resource.Key)
	}

	conn, err := Dial(endpoint)
	if err != nil {
		return nil, err
	}
	f.connectors[resource.Key] = conn
	return conn, nil
}

// Close closes every connector the factory handed out.
func (f *Factory) Close() {
	for _, conn := range f.connectors {
		conn.Close()
	}
}
