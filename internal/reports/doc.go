// Package reports defines the per-batch ingestion report and the sinks that
// receive it.
//
// A Report is plain data, serialized as JSON by FileSink and summarized by
// LogSink. MultiSink fans a report out to several sinks and joins their
// errors; callers treat delivery failures as log-and-continue.
package reports
