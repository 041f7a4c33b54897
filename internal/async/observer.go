package async

import (
	"time"

	"github.com/joseph-ayodele/idverify/constants"
)

// Observer receives queue events, typically to feed metrics.
type Observer interface {
	Submitted(depth int)
	Rejected(reason string)
	Started(wait time.Duration)
	Finished(status constants.TaskStatus, errorCode string, verified bool, took time.Duration)
}

type noopObserver struct{}

func (noopObserver) Submitted(int)                                              {}
func (noopObserver) Rejected(string)                                            {}
func (noopObserver) Started(time.Duration)                                      {}
func (noopObserver) Finished(constants.TaskStatus, string, bool, time.Duration) {}
