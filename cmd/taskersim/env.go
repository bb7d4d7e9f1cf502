package main

import "os"

const defaultTarget = "cortex-m4"

func getenv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && len(value) > 0 {
		return value
	}
	return defaultValue
}
