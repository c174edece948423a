package models

// All lists every table owned by the service, in migration order
func All() []interface{} {
	return []interface{}{
		&Identity{},
		&LinkCode{},
		&AuditLog{},
		&BlockBreak{},
	}
}
