package database

import (
	"context"
	_ "embed"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"f0oster/reconspy/identity"
)

//go:embed schema.sql
var schemaSQL string

// Database is the pgx-backed identity store. The provisioning
// configuration (any-types, resources, provisions, mapping items, virtual
// schemas) is small and loaded once up front; identity objects are always
// fetched on demand.
type Database struct {
	dsn  string
	Pool *pgxpool.Pool

	anyTypes   []*identity.AnyType
	resources  map[string]*identity.ExternalResource
	virSchemas map[string][]*identity.VirSchema // by "resource/anyType"
	provisions map[string]string                // provision_id -> "resource/anyType"
}

func NewDatabase(dsn string) *Database {
	return &Database{
		dsn:        dsn,
		resources:  make(map[string]*identity.ExternalResource),
		virSchemas: make(map[string][]*identity.VirSchema),
		provisions: make(map[string]string),
	}
}

func (db *Database) Connect(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, db.dsn)
	if err != nil {
		return fmt.Errorf("unable to connect: %w", err)
	}
	db.Pool = pool
	return nil
}

func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// ResetDatabase drops and recreates the reconspy database, then applies
// the schema. Dev convenience until proper migrations exist.
func ResetDatabase(ctx context.Context, managementDsn, reconspyDsn, dbName string) {
	managementPool, err := pgxpool.New(ctx, managementDsn)
	if err != nil {
		fmt.Printf("Unable to connect: %v\n", err)
		return
	}
	defer managementPool.Close()

	if _, err = managementPool.Exec(ctx, "DROP DATABASE IF EXISTS "+dbName); err != nil {
		log.Fatalf("Failed to drop database: %v", err)
	}
	if _, err = managementPool.Exec(ctx, "CREATE DATABASE "+dbName); err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}

	pool, err := pgxpool.New(ctx, reconspyDsn)
	if err != nil {
		fmt.Printf("Unable to connect: %v\n", err)
		return
	}
	defer pool.Close()

	if _, err = pool.Exec(ctx, schemaSQL); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}
	fmt.Println("Tables created successfully.")
}

// LoadProvisioning materializes the provisioning configuration into the
// in-memory resource graph that identity objects reference.
func (db *Database) LoadProvisioning(ctx context.Context) error {
	db.anyTypes = db.anyTypes[:0]
	rows, err := db.Pool.Query(ctx, selectAnyTypes)
	if err != nil {
		return fmt.Errorf("loading any-types: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var record AnyTypeRecord
		if err := rows.Scan(&record.TypeKey, &record.Kind); err != nil {
			return fmt.Errorf("scanning any-type: %w", err)
		}
		db.anyTypes = append(db.anyTypes, &identity.AnyType{
			Key:  record.TypeKey,
			Kind: kindFromString(record.Kind),
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loading any-types: %w", err)
	}

	if err := db.loadResources(ctx); err != nil {
		return err
	}
	return db.loadVirSchemas(ctx)
}

func (db *Database) loadResources(ctx context.Context) error {
	clear(db.resources)
	clear(db.provisions)

	resourceRows, err := db.Pool.Query(ctx, selectResources)
	if err != nil {
		return fmt.Errorf("loading resources: %w", err)
	}
	defer resourceRows.Close()
	for resourceRows.Next() {
		var key string
		if err := resourceRows.Scan(&key); err != nil {
			return fmt.Errorf("scanning resource: %w", err)
		}
		db.resources[key] = &identity.ExternalResource{
			Key:        key,
			Provisions: make(map[string]*identity.Provision),
		}
	}
	if err := resourceRows.Err(); err != nil {
		return fmt.Errorf("loading resources: %w", err)
	}

	provisionRows, err := db.Pool.Query(ctx, selectProvisions)
	if err != nil {
		return fmt.Errorf("loading provisions: %w", err)
	}
	defer provisionRows.Close()
	for provisionRows.Next() {
		var record ProvisionRecord
		if err := provisionRows.Scan(
			&record.ProvisionID, &record.ResourceKey, &record.AnyType, &record.ObjectClass,
		); err != nil {
			return fmt.Errorf("scanning provision: %w", err)
		}

		resource, ok := db.resources[record.ResourceKey]
		if !ok {
			return fmt.Errorf("provision %s references unknown resource %s", record.ProvisionID, record.ResourceKey)
		}
		resource.Provisions[record.AnyType] = &identity.Provision{
			AnyType:     record.AnyType,
			ObjectClass: record.ObjectClass,
		}
		db.provisions[record.ProvisionID.String()] = record.ResourceKey + "/" + record.AnyType
	}
	if err := provisionRows.Err(); err != nil {
		return fmt.Errorf("loading provisions: %w", err)
	}

	itemRows, err := db.Pool.Query(ctx, selectMappingItems)
	if err != nil {
		return fmt.Errorf("loading mapping items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var record MappingItemRecord
		if err := itemRows.Scan(
			&record.ItemID, &record.ProvisionID,
			&record.IntAttrName, &record.ExtAttrName,
			&record.ConnObjectKey, &record.Password,
		); err != nil {
			return fmt.Errorf("scanning mapping item: %w", err)
		}

		provision := db.provisionByID(record.ProvisionID.String())
		if provision == nil {
			return fmt.Errorf("mapping item %s references unknown provision %s", record.ItemID, record.ProvisionID)
		}
		provision.Items = append(provision.Items, &identity.MappingItem{
			IntAttrName:   record.IntAttrName,
			ExtAttrName:   record.ExtAttrName,
			ConnObjectKey: record.ConnObjectKey,
			Password:      record.Password,
		})
	}
	return itemRows.Err()
}

func (db *Database) loadVirSchemas(ctx context.Context) error {
	clear(db.virSchemas)

	rows, err := db.Pool.Query(ctx, selectVirSchemas)
	if err != nil {
		return fmt.Errorf("loading virtual schemas: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var record VirSchemaRecord
		if err := rows.Scan(&record.SchemaKey, &record.ProvisionID, &record.ExtAttrName); err != nil {
			return fmt.Errorf("scanning virtual schema: %w", err)
		}

		provisionKey, ok := db.provisions[record.ProvisionID.String()]
		if !ok {
			return fmt.Errorf("virtual schema %s references unknown provision %s", record.SchemaKey, record.ProvisionID)
		}
		db.virSchemas[provisionKey] = append(db.virSchemas[provisionKey], &identity.VirSchema{
			Key:         record.SchemaKey,
			Provision:   provisionKey,
			ExtAttrName: record.ExtAttrName,
		})
	}
	return rows.Err()
}

func (db *Database) provisionByID(provisionID string) *identity.Provision {
	key, ok := db.provisions[provisionID]
	if !ok {
		return nil
	}
	for _, resource := range db.resources {
		for anyType, provision := range resource.Provisions {
			if resource.Key+"/"+anyType == key {
				return provision
			}
		}
	}
	return nil
}

func kindFromString(kind string) identity.Kind {
	switch kind {
	case "USER":
		return identity.KindUser
	case "GROUP":
		return identity.KindGroup
	default:
		return identity.KindAnyObject
	}
}
