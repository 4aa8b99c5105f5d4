package sink

import (
	"context"
	"errors"
	"sync"

	"github.com/84hero/nft-dropbot/pkg/airdrop"
	"github.com/84hero/nft-dropbot/pkg/metrics"
	"github.com/ethereum/go-ethereum/log"
)

// Fanout delivers every report to all outputs concurrently.
// Delivery failures are logged and counted, never returned.
type Fanout struct {
	outputs []Output
}

func NewFanout(outputs ...Output) *Fanout {
	return &Fanout{outputs: outputs}
}

func (f *Fanout) Len() int {
	return len(f.outputs)
}

// Deliver blocks until every output has returned. Its signature matches airdrop.ReportHandler.
func (f *Fanout) Deliver(ctx context.Context, report *airdrop.Report) {
	if report == nil {
		return
	}
	var wg sync.WaitGroup
	for _, out := range f.outputs {
		wg.Add(1)
		go func(o Output) {
			defer wg.Done()
			if err := o.Send(ctx, report); err != nil {
				metrics.SinkErrors.WithLabelValues(o.Name()).Inc()
				log.Error("Failed to deliver report", "output", o.Name(), "block", report.BlockNumber, "err", err)
			}
		}(out)
	}
	wg.Wait()
}

func (f *Fanout) Close() error {
	var errs []error
	for _, o := range f.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
