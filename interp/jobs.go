// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import "strconv"

// job is a command launched in the background.
//
// A goroutine waits for every job from the moment it starts, so a finished
// program never lingers as a zombie. The status field is set before done is
// closed.
type job struct {
	// id is the program's process ID, or "g" followed by a number for
	// commands that run inside the shell, such as pipelines.
	id     string
	done   chan struct{}
	status int
}

func newJob() *job { return &job{done: make(chan struct{})} }

func (j *job) finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// jobTable holds the background jobs of a session which have not been
// reported yet, in launch order. It is only used by the goroutine which
// evaluates the session.
type jobTable struct {
	jobs    []*job
	shellID int // last "g" ID handed out
}

func (t *jobTable) add(j *job) { t.jobs = append(t.jobs, j) }

// nextShellID returns a new ID for an in-shell background job.
func (t *jobTable) nextShellID() string {
	t.shellID++
	return "g" + strconv.Itoa(t.shellID)
}

// reap calls report for every finished job, in launch order, without
// blocking. Reported jobs are removed from the table. If report fails, the
// job stays in the table and reaping stops.
func (t *jobTable) reap(report func(*job) error) error {
	kept := t.jobs[:0]
	var err error
	for _, j := range t.jobs {
		if err == nil && j.finished() {
			if err = report(j); err == nil {
				continue
			}
		}
		kept = append(kept, j)
	}
	clear(t.jobs[len(kept):])
	t.jobs = kept
	return err
}

// wait blocks until every job in the table has finished.
func (t *jobTable) wait() {
	for _, j := range t.jobs {
		<-j.done
	}
}

func (t *jobTable) len() int { return len(t.jobs) }
