package stages

import (
	"context"
	"time"

	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/publish"
	"github.com/domini04/bluestar/runtime/workflow"
)

// Destination labels used in diagnostics.
const (
	destGhost  = "Ghost"
	destNotion = "Notion"
	destLocal  = "local"
)

// SinkStage hands the document to a publish.Sink and records where it went.
type SinkStage struct {
	base
	op        string
	dest      string
	sink      publish.Sink
	timeout   time.Duration
	observers []PublishObserver
}

func newSinkStage(b base, dest string, sink publish.Sink, timeout time.Duration, observers []PublishObserver) *SinkStage {
	op := "publishing to " + dest
	if dest == destLocal {
		op = "saving the local draft"
	}
	return &SinkStage{base: b, op: op, dest: dest, sink: sink, timeout: timeout, observers: observers}
}

// Run implements workflow.Stage.
func (p *SinkStage) Run(ctx context.Context, s *workflow.State) error {
	defer p.complete(s)

	if p.sink == nil {
		p.fail(ctx, s, p.op, configuration("Publish", "the %s destination is not configured", p.dest))
		return nil
	}
	if s.Document == nil {
		p.fail(ctx, s, p.op, precondition("Publish", "there is no draft to publish"))
		return nil
	}

	ctx = logger.WithSink(ctx, p.sink.Name())
	callCtx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	start := p.now()
	loc, err := p.sink.Publish(callCtx, s.Document, publish.Target{Repo: s.Repo, Commit: s.Commit, Now: start})
	elapsed := p.now().Sub(start)
	for _, o := range p.observers {
		o.ObservePublish(ctx, p.sink.Name(), elapsed, err)
	}
	if err != nil {
		p.fail(ctx, s, p.op, err)
		return nil
	}
	s.PublishedLocation = loc
	p.log.InfoContext(ctx, "document published", "location", loc, "duration", elapsed)
	return nil
}
