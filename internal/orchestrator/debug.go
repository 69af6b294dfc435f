package orchestrator

import (
	"log"
	"os"
	"strings"
)

var chainDebugEnabled = strings.EqualFold(os.Getenv("KONTRATAGO_CHAIN_DEBUG"), "1")

func debugLog(format string, args ...interface{}) {
	if chainDebugEnabled {
		log.Printf(format, args...)
	}
}
