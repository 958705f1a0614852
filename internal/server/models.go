package server

import (
	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/chat"
	"land-registry/registry-backend/internal/notifications"
	"land-registry/registry-backend/internal/properties"
	"land-registry/registry-backend/internal/settings"
	"land-registry/registry-backend/internal/transactions"
)

// ModelRegistry maps model names to the structs AutoMigrate creates tables
// for. Both the API and the migrate command use it.
var ModelRegistry = map[string]interface{}{
	"User":             &auth.User{},
	"Property":         &properties.Property{},
	"Transaction":      &transactions.Transaction{},
	"TransactionEvent": &transactions.TransactionEvent{},
	"Message":          &chat.Message{},
	"UserSettings":     &settings.UserSettings{},
	"Notification":     &notifications.Notification{},
}

// Models returns the registered models in no particular order.
func Models() []interface{} {
	out := make([]interface{}, 0, len(ModelRegistry))
	for _, m := range ModelRegistry {
		out = append(out, m)
	}
	return out
}
