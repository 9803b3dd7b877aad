package transport

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/voxorder/pkg/api"
)

// DefaultCompareParallelism bounds concurrent runs of one compare request.
const DefaultCompareParallelism = 4

// Compare runs req against every target through c. Runs are independent:
// each gets its own copy of the history and a failure only marks its own
// entry. Entries are returned in request order.
func Compare(ctx context.Context, c ChatCompleter, req *api.CompareRequest, parallel int) *api.CompareResult {
	if parallel <= 0 {
		parallel = DefaultCompareParallelism
	}
	entries := make([]api.CompareEntry, len(req.Models))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, target := range req.Models {
		entries[i] = api.CompareEntry{ModelID: target.ModelID, Style: target.Style}
		g.Go(func() error {
			res, err := c.Complete(ctx, req.ChatRequestFor(target))
			if err != nil {
				entries[i].Error = ErrorFromDomain(err)
				return nil
			}
			entries[i].Result = res
			return nil
		})
	}
	_ = g.Wait()

	return &api.CompareResult{Results: entries}
}
