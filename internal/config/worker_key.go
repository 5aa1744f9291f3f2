package config

type WorkerKeyStruct struct {
	AuditQueue string
}

var WorkerKey = &WorkerKeyStruct{
	AuditQueue: "persist_audit_queue",
}
