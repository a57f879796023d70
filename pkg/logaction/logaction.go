package logaction

// LoggerAction names what a log entry records: a short machine-readable
// action plus a human description.
type LoggerAction struct {
	Action      string
	Description string
}

// DBOperation is the database verb carried in db_request/db_response actions.
type DBOperation string

const (
	DB_CREATE DBOperation = "create"
	DB_READ   DBOperation = "read"
	DB_UPDATE DBOperation = "update"
	DB_DELETE DBOperation = "delete"
)

func DB_REQUEST(op DBOperation, description string) LoggerAction {
	return LoggerAction{Action: "db_request_" + string(op), Description: description}
}

func DB_RESPONSE(op DBOperation, description string) LoggerAction {
	return LoggerAction{Action: "db_response_" + string(op), Description: description}
}

func INBOUND(description string) LoggerAction {
	return LoggerAction{Action: "inbound", Description: description}
}

func OUTBOUND(description string) LoggerAction {
	return LoggerAction{Action: "outbound", Description: description}
}

func PRODUCE(description string) LoggerAction {
	return LoggerAction{Action: "produce", Description: description}
}

func AUDIT(description string) LoggerAction {
	return LoggerAction{Action: "audit", Description: description}
}
