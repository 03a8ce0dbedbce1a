package asr

// Status describes where a transcription invocation currently is in its
// lifecycle. Each invocation owns its own status; concurrent invocations of
// the same backend never share one.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusUploading      Status = "UPLOADING"
	StatusSubmitting     Status = "SUBMITTING"
	StatusCreatingTask   Status = "CREATING_TASK"
	StatusQueryingResult Status = "QUERYING_RESULT"
	StatusTranscribing   Status = "TRANSCRIBING"
	StatusCompleted      Status = "COMPLETED"
	StatusFailed         Status = "FAILED"
)

// Percent maps a status to its progress percentage. Distinct statuses may
// share a percentage, such as a remote submit and a local task creation.
func (s Status) Percent() int {
	switch s {
	case StatusUploading:
		return 20
	case StatusSubmitting, StatusCreatingTask:
		return 40
	case StatusQueryingResult, StatusTranscribing:
		return 60
	case StatusCompleted:
		return 100
	default:
		return 0
	}
}

// Terminal reports whether no further transitions are legal from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ProgressFunc receives status transitions as they happen. Percent is
// monotone non-decreasing over one invocation.
type ProgressFunc func(status Status, percent int)

// tracker is the per-invocation status cell. It clamps the reported percent
// so observers never see progress move backwards, and drops reports after a
// terminal status.
type tracker struct {
	onProgress ProgressFunc
	status     Status
	percent    int
}

func newTracker(onProgress ProgressFunc) *tracker {
	return &tracker{onProgress: onProgress, status: StatusPending}
}

func (t *tracker) report(s Status) {
	if t.status.Terminal() {
		return
	}
	t.status = s

	pct := s.Percent()
	if s == StatusFailed {
		pct = t.percent
	}
	if pct < t.percent {
		pct = t.percent
	}
	t.percent = pct

	if t.onProgress != nil {
		t.onProgress(s, pct)
	}
}
