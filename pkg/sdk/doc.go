// Package sdk provides the ember SDK for embedding hot-code profiling into Go applications.
//
// The SDK runs the ember agent inside the host process: a runtime sampler
// observes which code units are executing, a bounded profile counts them,
// and a ranked report is rendered on a fixed interval. Memory stays bounded
// no matter how many distinct code units the workload produces.
//
// Key features:
//   - In-process sampling with no external collector
//   - Bounded profile memory (least-frequent entries are displaced)
//   - Periodic ranked reports to stdout, stderr or a file
//   - Manual sample recording for logical units (jobs, handlers, queries)
//   - Optional HTTP endpoint for ingest, on-demand reports and metrics
//
// Basic integration:
//
//	import "github.com/emberprof/ember/pkg/sdk"
//
//	func main() {
//	    profiler, err := sdk.New(sdk.Config{
//	        ServiceName:    "payment-service",
//	        ReportInterval: 30 * time.Second,
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer profiler.Close()
//
//	    // Your application code
//	    http.ListenAndServe(":8080", handler)
//	}
//
// Marking logical units explicitly:
//
//	profiler.RecordSample("app/jobs", "ProcessPayment")
//
// With a listen address configured, external samplers can push batches to
// POST /v1/samples and operators can pull the current table from
// GET /v1/report or scrape GET /metrics.
package sdk
