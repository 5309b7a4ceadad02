// Package metrics exposes publishing, asset and ingestion counters. Components take a
// Recorder and default to NoopRecorder so metrics stay optional.
package metrics

import "time"

// Result labels.
const (
	ResultSuccess  = "success"
	ResultConflict = "conflict"
	ResultInvalid  = "invalid"
	ResultFailed   = "failed"
)

type Recorder interface {
	IncPublish(result string)
	ObservePublishDuration(d time.Duration)
	IncUnpublish(result string)
	IncCompensation(action string)
	IncAssetUpload(result string)
	IncSubdomainCheck(reason string)
	IncIngest(kind, result string)
	ObserveHTTPRequest(method, route string, status int, d time.Duration)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) IncPublish(string)                                      {}
func (NoopRecorder) ObservePublishDuration(time.Duration)                   {}
func (NoopRecorder) IncUnpublish(string)                                    {}
func (NoopRecorder) IncCompensation(string)                                 {}
func (NoopRecorder) IncAssetUpload(string)                                  {}
func (NoopRecorder) IncSubdomainCheck(string)                               {}
func (NoopRecorder) IncIngest(string, string)                               {}
func (NoopRecorder) ObserveHTTPRequest(string, string, int, time.Duration) {}
