package commands

import "github.com/dotcommander/swarmyard/internal/output"

// Schema names identify each command's response shape (spec.md §6's
// envelope "$schema" field). One constant per CLI intent.
const (
	schemaAdd             = "swarmyard://add-response/v1"
	schemaRemove          = "swarmyard://remove-response/v1"
	schemaList            = "swarmyard://list-response/v1"
	schemaStatus          = "swarmyard://status-response/v1"
	schemaFocus           = "swarmyard://focus-response/v1"
	schemaSync            = "swarmyard://sync-response/v1"
	schemaResolve         = "swarmyard://resolve-response/v1"
	schemaDone            = "swarmyard://done-response/v1"
	schemaAbort           = "swarmyard://abort-response/v1"
	schemaWork            = "swarmyard://work-response/v1"
	schemaQueueList       = "swarmyard://queue-list-response/v1"
	schemaQueueAdd        = "swarmyard://queue-add-response/v1"
	schemaQueueClaim      = "swarmyard://queue-claim-response/v1"
	schemaQueueComplete   = "swarmyard://queue-complete-response/v1"
	schemaQueueWorker     = "swarmyard://queue-worker-response/v1"
	schemaAgentRegister   = "swarmyard://agent-register-response/v1"
	schemaAgentHeartbeat  = "swarmyard://agent-heartbeat-response/v1"
	schemaAgentStatus     = "swarmyard://agent-status-response/v1"
	schemaAgentUnreg      = "swarmyard://agent-unregister-response/v1"
	schemaDoctorCheck     = "swarmyard://doctor-check-response/v1"
	schemaDoctorFix       = "swarmyard://doctor-fix-response/v1"
	schemaDoctorIntegrity = "swarmyard://doctor-integrity-response/v1"
	schemaDoctorClean     = "swarmyard://doctor-clean-response/v1"
	schemaConfigList      = "swarmyard://config-list-response/v1"
	schemaConfigGet       = "swarmyard://config-get-response/v1"
	schemaConfigSet       = "swarmyard://config-set-response/v1"
	schemaConfigSchema    = "swarmyard://config-schema-response/v1"
)

func printSuccess(schema string, data any) error {
	return output.PrintSuccess(schema, data)
}

func printSuccessArray(schema string, items any) error {
	return output.PrintSuccessArray(schema, items)
}

func printError(schema string, err error) error {
	return output.PrintError(schema, err)
}
