// Package config provides configuration loading from environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// RunConfig holds the service endpoints and output settings for a study run.
type RunConfig struct {
	WPSURL        string // Remote execution service endpoint
	DataURL       string // Auxiliary data-source service base URL; empty disables it
	ProcessID     string // WPS process identifier for the crop simulator
	Credential    string // Opaque token passed through to both services
	OutputDir     string // Where progress, states and report files are written
	ParameterDir  string // Directory of <cropCode>.yaml crop parameter files
	OutputLog     string // WPS output identifier of the log artifact
	OutputStates  string // WPS output identifier of the states artifact
	OutputSummary string // WPS output identifier of the summary artifact
}

// LoadDotEnv loads a .env file into the process environment.
// A missing file is not an error; variables already set are kept.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	return nil
}

// LoadRunConfig loads run configuration from environment variables.
func LoadRunConfig() *RunConfig {
	return &RunConfig{
		WPSURL:        GetEnv("CROPSTUDY_WPS_URL", "http://localhost:8080/wps"),
		DataURL:       LookupEnv("CROPSTUDY_DATA_URL", "http://localhost:8081/api"),
		ProcessID:     GetEnv("CROPSTUDY_PROCESS_ID", "cropsim.run"),
		Credential:    GetSecretFile(GetEnv("CROPSTUDY_CREDENTIAL_FILE", "")),
		OutputDir:     GetEnv("CROPSTUDY_OUTPUT_DIR", "."),
		ParameterDir:  GetEnv("CROPSTUDY_PARAMETER_DIR", "parameters"),
		OutputLog:     GetEnv("CROPSTUDY_OUTPUT_LOG", "f0"),
		OutputStates:  GetEnv("CROPSTUDY_OUTPUT_STATES", "f1"),
		OutputSummary: GetEnv("CROPSTUDY_OUTPUT_SUMMARY", "f2"),
	}
}
