/*
Package log provides structured logging for HueShift built on zerolog.

Call Init once at process startup, then use the global Logger or the
With* helpers to create child loggers scoped to a component, application,
slot, or rollout:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("orchestrator")
	logger.Info().
		Str("app", "storefront").
		Str("slot", "green").
		Msg("starting rollout")

Console output (human-readable, colorized) is the default; JSONOutput
switches to newline-delimited JSON for log aggregation.
*/
package log
