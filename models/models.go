package models

// All returns every model managed by the timeline engine, in migration order
func All() []interface{} {
	return []interface{}{
		&Firm{},
		&User{},
		&CaseTemplate{},
		&Case{},
		&CaseMilestone{},
		&CaseDocument{},
		&KeyDate{},
		&Reminder{},
		&Notification{},
		&OutboxTask{},
		&AuditLog{},
	}
}
