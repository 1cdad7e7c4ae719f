// Package sdk assembles a BlueStar engine from configuration.
//
// An Engine owns the workflow runner and everything it needs: the generator,
// the GitHub fetcher, the publishing sinks and the checkpoint store. Hosts
// (the CLI, a CI job, a bot) build one Engine and drive runs through it.
//
// # Quick Start
//
//	cfg, err := config.Load("bluestar.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	eng, err := sdk.New(ctx, sdk.WithConfig(cfg))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	res, err := eng.Run(ctx, sdk.Request{
//	    Repo:   "octo/widgets",
//	    Commit: "3f2c...",
//	})
//
// # Suspension
//
// Without a Reviewer or Chooser the run stops at the human checkpoint and
// Result.Status is workflow.StatusAwaitingInput. The checkpoint is stored,
// so a later process can answer it:
//
//	res, err = eng.Resume(ctx, res.RunID, workflow.ReviewInput(res.State.Iteration, true, ""))
//
// Delivering the same answer twice is harmless: the second delivery returns
// the stored result with Result.Replayed set.
//
// # Observability
//
// Every engine records Prometheus metrics through the package-level
// collectors in runtime/metrics/prometheus and opens a span per stage on the
// global OpenTelemetry tracer provider unless WithTracerProvider is given.
package sdk
