package analysis

import (
	"time"

	"interview-analyzer/pkg/interview"
	"interview-analyzer/pkg/metrics"
)

const progressStep = 100 * time.Millisecond

// Shown at 100, 200, 300 and 400ms after a response starts. They are a
// fixed script and do not track the real pipeline.
var progressMessages = []string{
	"Analyzing response structure...",
	"Evaluating relevance to the question...",
	"Assessing depth and examples...",
	"Preparing detailed feedback...",
}

type progressRun struct {
	timers []*time.Timer
}

func (o *Orchestrator) startProgress(response interview.Response) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.stopProgressLocked(response.ID)

	run := &progressRun{}
	for i, message := range progressMessages {
		message := message
		last := i == len(progressMessages)-1
		run.timers = append(run.timers, time.AfterFunc(time.Duration(i+1)*progressStep, func() {
			metrics.RecordProgressMessage()
			o.publish(EventProgress, response, nil, message)
			if last {
				o.forgetProgress(response.ID, run)
			}
		}))
	}
	o.progress[response.ID] = run
}

func (o *Orchestrator) forgetProgress(responseID string, run *progressRun) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.progress[responseID] == run {
		delete(o.progress, responseID)
	}
}

// stopProgressLocked cancels pending progress messages for a response. Callers hold mu.
func (o *Orchestrator) stopProgressLocked(responseID string) {
	if run, ok := o.progress[responseID]; ok {
		for _, t := range run.timers {
			t.Stop()
		}
		delete(o.progress, responseID)
	}
}
