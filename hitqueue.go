package corehub

import (
	"github.com/corehub/sdk/internal/config"
	"github.com/corehub/sdk/internal/dataqueue"
	"github.com/corehub/sdk/internal/hitqueue"
)

// newFileHitQueue opens a durable file-backed queue at path and wraps it in
// a HitQueue, applying the resolved configuration's batch limit. The
// processor remains the sole arbiter of per-hit retry interval (spec §4.3);
// config only shapes batching, which is a Runtime-wide policy rather than a
// per-hit one.
func newFileHitQueue(path string, processor hitqueue.Processor, cfg config.Config) (*hitqueue.HitQueue, error) {
	q, err := dataqueue.Open(path)
	if err != nil {
		return nil, err
	}
	hq := hitqueue.New(q, processor)
	if cfg.HitQueueBatchLimit > 0 {
		hq.SetBatchLimit(cfg.HitQueueBatchLimit)
	}
	return hq, nil
}
