package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func GetEnvVar(envVar string) (string, error) {
	value, found := os.LookupEnv(envVar)
	if !found || value == "" {
		return "", fmt.Errorf("env var '%s' not specified", envVar)
	}
	return value, nil
}

func GetEnvVarWithDefault(envVar, defaultValue string) string {
	value, found := os.LookupEnv(envVar)
	if !found {
		return defaultValue
	}
	return value
}

func GetIntEnvVar(envVar string, defaultValue int) (int, error) {
	value, found := os.LookupEnv(envVar)
	if !found {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("env var '%s' is not an integer: %w", envVar, err)
	}
	return n, nil
}

func GetBoolEnvVar(envVar string, defaultValue bool) (bool, error) {
	value, found := os.LookupEnv(envVar)
	if !found {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("env var '%s' is not a boolean: %w", envVar, err)
	}
	return b, nil
}

func GetDurationEnvVar(envVar string, defaultValue time.Duration) (time.Duration, error) {
	value, found := os.LookupEnv(envVar)
	if !found {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("env var '%s' is not a duration: %w", envVar, err)
	}
	return d, nil
}
