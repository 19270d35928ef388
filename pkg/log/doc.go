/*
Package log wraps github.com/rs/zerolog to give every component a
component-scoped structured logger: log.WithComponent("catalog"),
log.WithRunID(runID), log.WithJobID(jobID). This is the process-facing
log stream; it is separate from the durable, append-only event logs
under logs/*.log written by pkg/atomicio (see that package's doc.go).

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	l := log.WithComponent("worker")
	l.Info().Str("run_id", runID).Str("job_id", jobID).Msg("job claimed")
*/
package log
