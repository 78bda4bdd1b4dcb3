package instance

import (
	"os"

	"github.com/smesmis/pos-checkout/pkg/env"
)

// GetID names this process in logs: POS_INSTANCE_ID, then the host name.
func GetID() string {
	if id := env.Get("POS_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "pos-api-0"
}
