package cbcmb

// Status is the lifecycle state of a Job.
type Status uint8

const (
	// StatusUnknown marks a slot that has not been submitted.
	StatusUnknown Status = iota
	// StatusBeingProcessed marks a job that occupies, or waits for, a backend lane.
	StatusBeingProcessed
	// StatusCompleted marks a job whose ciphertext and output IV are ready.
	StatusCompleted
	// StatusError marks a job the backend rejected.
	StatusError
	// StatusInternalError marks a job the backend failed to account for.
	StatusInternalError
)

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusInternalError
}

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusBeingProcessed:
		return "being-processed"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	case StatusInternalError:
		return "internal-error"
	default:
		return "invalid"
	}
}

// JobSpec describes one unit of AES-CBC work handed to Manager.Submit.
// Plaintext and Ciphertext are views into caller memory and must stay valid
// until the job is returned.
type JobSpec struct {
	Plaintext  []byte
	Ciphertext []byte
	IV         [BlockSize]byte
	Key        *Key
	Len        int
	UserData   any
}

// Job is a slot of the job pool. Backends read the input fields and report
// progress through Status and IV.
type Job struct {
	Plaintext  []byte
	Ciphertext []byte
	// IV holds the input IV on submit and the chaining IV (last ciphertext
	// block) once the job is completed.
	IV       [BlockSize]byte
	Key      *Key
	Len      int
	Status   Status
	UserData any

	// processed counts bytes already encrypted by the backend.
	processed int
	seq       uint64
}

// Processed returns the number of bytes the backend has encrypted so far.
func (j *Job) Processed() int {
	return j.processed
}

// Advance records n more encrypted bytes. Backends call it as lanes progress.
func (j *Job) Advance(n int) {
	j.processed += n
}

func (j *Job) reset(spec JobSpec, seq uint64) {
	*j = Job{
		Plaintext:  spec.Plaintext,
		Ciphertext: spec.Ciphertext,
		IV:         spec.IV,
		Key:        spec.Key,
		Len:        spec.Len,
		Status:     StatusBeingProcessed,
		UserData:   spec.UserData,
		seq:        seq,
	}
}

// CompletedJob is the owned result of a finished job.
type CompletedJob struct {
	// IV is the chaining IV produced by the job, i.e. the IV of the next part.
	IV       [BlockSize]byte
	UserData any
	Len      int
	Status   Status
	// Seq is the submission sequence number within the manager.
	Seq uint64
}

// Err maps a failed status to ErrBackend or ErrBackendInternal.
func (c *CompletedJob) Err() error {
	switch c.Status {
	case StatusCompleted:
		return nil
	case StatusError:
		return ErrBackend
	default:
		return ErrBackendInternal
	}
}

func complete(j *Job) *CompletedJob {
	return &CompletedJob{
		IV:       j.IV,
		UserData: j.UserData,
		Len:      j.Len,
		Status:   j.Status,
		Seq:      j.seq,
	}
}
