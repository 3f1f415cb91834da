package database

// SQL query constants for the identity store.
// These queries are designed to be sqlc-compatible for future migration.

const (
	selectAnyTypes = `
		SELECT type_key, kind
		FROM any_types
		ORDER BY type_key`

	selectResources = `
		SELECT resource_key
		FROM resources`

	selectProvisions = `
		SELECT provision_id, resource_key, any_type, object_class
		FROM provisions`

	selectMappingItems = `
		SELECT item_id, provision_id, int_attr_name, ext_attr_name, conn_object_key, password
		FROM mapping_items
		ORDER BY provision_id, item_order`

	selectVirSchemas = `
		SELECT schema_key, provision_id, ext_attr_name
		FROM virtual_schemas
		ORDER BY schema_key`

	selectObjectColumns = `
		SELECT o.object_key, o.any_type, o.realm, o.workflow_id, o.status,
		       o.creation_date, o.username, o.group_name,
		       o.last_login_date, o.change_pwd_date,
		       o.password_history_size, o.failed_logins
		FROM any_objects o
		JOIN any_types t ON t.type_key = o.any_type`

	selectPlainAttrs = `
		SELECT object_key, schema_key, value
		FROM plain_attrs
		WHERE object_key = ANY($1)`

	selectObjectResources = `
		SELECT object_key, resource_key
		FROM object_resources
		WHERE object_key = ANY($1)`
)
