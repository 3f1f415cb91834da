package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type ReconSpyConfiguration struct {
	StoreDsn      string
	ManagementDsn string
	DatabaseName  string
	ResourcesFile string
}

func LoadEnvConfig(configName string) ReconSpyConfiguration {
	err := godotenv.Load(configName)
	if err != nil {
		log.Fatal("Error loading .env file")
	}

	storeDsn := os.Getenv("STORE_DSN")
	managementDsn := os.Getenv("MANAGEMENT_DSN")
	databaseName := os.Getenv("DATABASE_NAME")
	resourcesFile := os.Getenv("RESOURCES_FILE")

	if storeDsn == "" {
		log.Fatal("STORE_DSN is required")
	}
	if databaseName == "" {
		databaseName = "reconspy"
	}
	if resourcesFile == "" {
		resourcesFile = "resources.yaml"
	}

	return ReconSpyConfiguration{
		StoreDsn:      storeDsn,
		ManagementDsn: managementDsn,
		DatabaseName:  databaseName,
		ResourcesFile: resourcesFile,
	}
}
