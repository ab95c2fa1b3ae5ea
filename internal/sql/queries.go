package sql

import (
	"embed"
)

// Migrations holds the schema DDL applied by the migrate command.
//
//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/check_run_key.sql
var CheckRunKey string

//go:embed queries/stage_status.sql
var StageStatus string

//go:embed queries/complete_stage.sql
var CompleteStage string

//go:embed queries/mark_stale.sql
var MarkStale string

//go:embed queries/run_states.sql
var RunStates string
