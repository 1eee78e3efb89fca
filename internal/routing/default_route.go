package routing

import "sort"

// interfaceMetric is what an ip-interface lookup contributes to route
// selection: whether the interface is connected, and its own metric.
type interfaceMetric struct {
	connected bool
	metric    uint32
}

// interfaceMetricLookup resolves the per-interface contribution used in
// §4.2 step 3. Implemented against the real OS in default_route_windows.go;
// faked in tests.
type interfaceMetricLookup func(InterfaceId) (interfaceMetric, error)

type annotatedRow struct {
	row             Row
	effectiveMetric uint64
}

// pickDefaultFromRows implements §4.2 steps 2-5 over an already-taken
// snapshot: filter to default-route candidates, annotate with effective
// metric (dropping rows whose interface lookup fails or is disconnected),
// stable-sort ascending, and return the winner.
//
// A per-row interface-lookup failure drops only that row, not the whole
// operation, per §4.2's last paragraph.
func pickDefaultFromRows(rows []Row, lookup interfaceMetricLookup) (BestDefault, bool) {
	candidates := filterCandidateDefaultRows(rows)

	annotated := make([]annotatedRow, 0, len(candidates))
	for _, r := range candidates {
		im, err := lookup(r.InterfaceId)
		if err != nil || !im.connected {
			continue
		}
		annotated = append(annotated, annotatedRow{
			row:             r,
			effectiveMetric: uint64(r.Metric) + uint64(im.metric),
		})
	}
	if len(annotated) == 0 {
		return BestDefault{}, false
	}

	sort.SliceStable(annotated, func(i, j int) bool {
		return annotated[i].effectiveMetric < annotated[j].effectiveMetric
	})

	winner := annotated[0].row
	return BestDefault{InterfaceId: winner.InterfaceId, Gateway: winner.NextHop}, true
}
