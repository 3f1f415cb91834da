package database

import (
	"context"
	"fmt"
	"strings"

	"f0oster/reconspy/identity"
	"f0oster/reconspy/store"
)

// FindAllUsers returns the whole user population.
func (db *Database) FindAllUsers(ctx context.Context) ([]*identity.User, error) {
	objects, err := db.Search(ctx, store.FullAdminRealms, nil, 0, 0, nil, identity.KindUser)
	if err != nil {
		return nil, err
	}
	users := make([]*identity.User, 0, len(objects))
	for _, object := range objects {
		users = append(users, object.(*identity.User))
	}
	return users, nil
}

// FindAllGroups returns the whole group population.
func (db *Database) FindAllGroups(ctx context.Context) ([]*identity.Group, error) {
	objects, err := db.Search(ctx, store.FullAdminRealms, nil, 0, 0, nil, identity.KindGroup)
	if err != nil {
		return nil, err
	}
	groups := make([]*identity.Group, 0, len(objects))
	for _, object := range objects {
		groups = append(groups, object.(*identity.Group))
	}
	return groups, nil
}

func (db *Database) FindAllAnyTypes(ctx context.Context) ([]*identity.AnyType, error) {
	return db.anyTypes, nil
}

func (db *Database) FindUserType(ctx context.Context) (*identity.AnyType, error) {
	return db.findTypeByKind(identity.KindUser)
}

func (db *Database) FindGroupType(ctx context.Context) (*identity.AnyType, error) {
	return db.findTypeByKind(identity.KindGroup)
}

func (db *Database) findTypeByKind(kind identity.Kind) (*identity.AnyType, error) {
	for _, anyType := range db.anyTypes {
		if anyType.Kind == kind {
			return anyType, nil
		}
	}
	return nil, fmt.Errorf("no any-type of kind %s registered", kind)
}

func (db *Database) FindByProvision(
	ctx context.Context, provision *identity.Provision,
) ([]*identity.VirSchema, error) {
	for _, resource := range db.resources {
		if resource.Provisions[provision.AnyType] == provision {
			return db.virSchemas[resource.Key+"/"+provision.AnyType], nil
		}
	}
	return nil, nil
}

// Count returns the number of objects of the given kind matching cond
// within the realm scope.
func (db *Database) Count(
	ctx context.Context, realms []string, cond *store.SearchCond, kind identity.Kind,
) (int, error) {

	where, args, err := compileWhere(realms, cond, kind)
	if err != nil {
		return 0, err
	}

	query := `SELECT COUNT(*) FROM any_objects o JOIN any_types t ON t.type_key = o.any_type` + where
	var count int
	if err := db.Pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting objects: %w", err)
	}
	return count, nil
}

// Search fetches one page of matching objects. page is 1-based; page 0
// with pageSize 0 fetches everything. When no ordering is requested the
// rows come back in key order so that pages stay disjoint.
func (db *Database) Search(
	ctx context.Context,
	realms []string,
	cond *store.SearchCond,
	page, pageSize int,
	orderBy []store.OrderByClause,
	kind identity.Kind,
) ([]identity.Any, error) {

	where, args, err := compileWhere(realms, cond, kind)
	if err != nil {
		return nil, err
	}

	query := selectObjectColumns + where + orderClause(orderBy)
	if pageSize > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching objects: %w", err)
	}
	defer rows.Close()

	var records []ObjectRecord
	for rows.Next() {
		var r ObjectRecord
		if err := rows.Scan(
			&r.ObjectKey, &r.AnyType, &r.Realm, &r.WorkflowID, &r.Status,
			&r.CreationDate, &r.Username, &r.GroupName,
			&r.LastLoginDate, &r.ChangePwdDate,
			&r.PasswordHistorySize, &r.FailedLogins,
		); err != nil {
			return nil, fmt.Errorf("scanning object: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("searching objects: %w", err)
	}

	return db.buildObjects(ctx, records)
}

// buildObjects turns one page of rows into identity objects, attaching
// plain attributes and assigned resources in two batched queries.
func (db *Database) buildObjects(ctx context.Context, records []ObjectRecord) ([]identity.Any, error) {
	if len(records) == 0 {
		return nil, nil
	}

	keys := make([]int64, len(records))
	for i, record := range records {
		keys[i] = record.ObjectKey
	}

	attrs := make(map[int64]map[string][]string)
	attrRows, err := db.Pool.Query(ctx, selectPlainAttrs, keys)
	if err != nil {
		return nil, fmt.Errorf("loading plain attributes: %w", err)
	}
	defer attrRows.Close()
	for attrRows.Next() {
		var objectKey int64
		var schemaKey, value string
		if err := attrRows.Scan(&objectKey, &schemaKey, &value); err != nil {
			return nil, fmt.Errorf("scanning plain attribute: %w", err)
		}
		if attrs[objectKey] == nil {
			attrs[objectKey] = make(map[string][]string)
		}
		attrs[objectKey][schemaKey] = append(attrs[objectKey][schemaKey], value)
	}
	if err := attrRows.Err(); err != nil {
		return nil, fmt.Errorf("loading plain attributes: %w", err)
	}

	assigned := make(map[int64][]*identity.ExternalResource)
	resourceRows, err := db.Pool.Query(ctx, selectObjectResources, keys)
	if err != nil {
		return nil, fmt.Errorf("loading object resources: %w", err)
	}
	defer resourceRows.Close()
	for resourceRows.Next() {
		var objectKey int64
		var resourceKey string
		if err := resourceRows.Scan(&objectKey, &resourceKey); err != nil {
			return nil, fmt.Errorf("scanning object resource: %w", err)
		}
		resource, ok := db.resources[resourceKey]
		if !ok {
			return nil, fmt.Errorf("object %d references unknown resource %s", objectKey, resourceKey)
		}
		assigned[objectKey] = append(assigned[objectKey], resource)
	}
	if err := resourceRows.Err(); err != nil {
		return nil, fmt.Errorf("loading object resources: %w", err)
	}

	objects := make([]identity.Any, 0, len(records))
	for _, record := range records {
		anyType := db.anyTypeByKey(record.AnyType)
		if anyType == nil {
			return nil, fmt.Errorf("object %d has unknown any-type %s", record.ObjectKey, record.AnyType)
		}

		base := identity.Base{
			ObjectKey:   record.ObjectKey,
			AnyType:     anyType,
			Workflow:    record.WorkflowID,
			StatusValue: deref(record.Status),
			Created:     record.CreationDate,
			Assigned:    assigned[record.ObjectKey],
			Attrs:       attrs[record.ObjectKey],
		}

		switch anyType.Kind {
		case identity.KindUser:
			objects = append(objects, &identity.User{
				Base:            base,
				Username:        deref(record.Username),
				LastLoginDate:   record.LastLoginDate,
				ChangePwdDate:   record.ChangePwdDate,
				PasswordHistory: make([]string, record.PasswordHistorySize),
				FailedLogins:    record.FailedLogins,
			})
		case identity.KindGroup:
			objects = append(objects, &identity.Group{
				Base: base,
				Name: deref(record.GroupName),
			})
		default:
			objects = append(objects, &identity.AnyObject{Base: base})
		}
	}

	return objects, nil
}

func (db *Database) anyTypeByKey(key string) *identity.AnyType {
	for _, anyType := range db.anyTypes {
		if anyType.Key == key {
			return anyType
		}
	}
	return nil
}

// compileWhere renders a condition tree plus kind and realm scoping into
// a WHERE clause with positional args.
func compileWhere(realms []string, cond *store.SearchCond, kind identity.Kind) (string, []interface{}, error) {
	var clauses []string
	var args []interface{}

	args = append(args, kind.String())
	clauses = append(clauses, fmt.Sprintf("t.kind = $%d", len(args)))

	if !isFullAdminRealms(realms) {
		args = append(args, realms)
		clauses = append(clauses, fmt.Sprintf("o.realm = ANY($%d)", len(args)))
	}

	if cond != nil {
		sql, err := compileCond(cond, &args)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, sql)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func compileCond(cond *store.SearchCond, args *[]interface{}) (string, error) {
	switch {
	case cond.IsAnd():
		left, err := compileCond(cond.Left, args)
		if err != nil {
			return "", err
		}
		right, err := compileCond(cond.Right, args)
		if err != nil {
			return "", err
		}
		return "(" + left + " AND " + right + ")", nil

	case cond.AnyType != nil:
		*args = append(*args, cond.AnyType.AnyTypeKey)
		return fmt.Sprintf("o.any_type = $%d", len(*args)), nil

	case cond.Attr != nil:
		return compileAttrCond(cond.Attr, args)

	default:
		return "", fmt.Errorf("empty search condition node")
	}
}

// fixedColumns are the schemas stored as columns rather than plain
// attribute rows.
var fixedColumns = map[string]string{
	"key":      "o.object_key::varchar",
	"username": "o.username",
	"name":     "o.group_name",
	"status":   "o.status",
}

func compileAttrCond(attr *store.AttrCond, args *[]interface{}) (string, error) {
	op := "="
	expression := attr.Expression
	if attr.Type == store.AttrCondLike {
		op = "LIKE"
		expression = strings.ReplaceAll(expression, "*", "%")
	}

	if column, fixed := fixedColumns[attr.Schema]; fixed {
		*args = append(*args, expression)
		return fmt.Sprintf("%s %s $%d", column, op, len(*args)), nil
	}

	*args = append(*args, attr.Schema)
	schemaArg := len(*args)
	*args = append(*args, expression)
	valueArg := len(*args)
	return fmt.Sprintf(
		"EXISTS (SELECT 1 FROM plain_attrs a WHERE a.object_key = o.object_key AND a.schema_key = $%d AND a.value %s $%d)",
		schemaArg, op, valueArg), nil
}

func orderClause(orderBy []store.OrderByClause) string {
	if len(orderBy) == 0 {
		return " ORDER BY o.object_key"
	}
	terms := make([]string, len(orderBy))
	for i, clause := range orderBy {
		direction := "ASC"
		if clause.Desc {
			direction = "DESC"
		}
		column, fixed := fixedColumns[clause.Field]
		if !fixed {
			column = "o.object_key"
		}
		terms[i] = column + " " + direction
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func isFullAdminRealms(realms []string) bool {
	return len(realms) == 1 && realms[0] == store.FullAdminRealms[0]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
