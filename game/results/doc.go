// Package results holds the engine.ResultSink implementations a finished run
// can be handed to.
//
//   - HTTPSubmitter posts the payload to the school application
//   - FileStore keeps one <run_id>.json file per run
//   - MongoStore inserts payload documents into a MongoDB collection
//   - MultiSink fans a payload out to several sinks
//
// Sinks are called from the reporter's hand-off goroutine with a deadline
// taken from the profile's report_timeout.
package results
