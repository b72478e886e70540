package utils

import (
	"log"
	"os"
)

// GetLogger returns a stdout logger tagged with component, e.g.
// "INFO: [faucet] 2025/01/16 09:04:54 engine.go:120: ...".
func GetLogger(component string) *log.Logger {
	prefix := "INFO: "
	if component != "" {
		prefix += "[" + component + "] "
	}
	return log.New(os.Stdout, prefix, log.Ldate|log.Ltime|log.LUTC|log.Lshortfile)
}
