package service

type (
	State uint8

	// Status is the lifecycle state of a service plus a human-readable
	// reason on the failure states. Two statuses compare equal only when
	// both state and reason match, which is what gates dispatching on the
	// status observable.
	Status struct {
		State  State
		Reason string
	}

	OverallStatus uint8

	Priority uint8
)

const (
	StateStopped State = iota
	StateStarting
	StateStarted
	StateStopping
	StateFailedToStart
	StateFailedToStop
	StateRuntimeError
)

const (
	Healthy OverallStatus = iota
	Unhealthy
)

const (
	Essential Priority = iota
	Optional
)

var (
	Stopped  = Status{State: StateStopped}
	Starting = Status{State: StateStarting}
	Started  = Status{State: StateStarted}
	Stopping = Status{State: StateStopping}
)

func FailedToStart(reason string) Status {
	return Status{State: StateFailedToStart, Reason: reason}
}

func FailedToStop(reason string) Status {
	return Status{State: StateFailedToStop, Reason: reason}
}

func RuntimeError(reason string) Status {
	return Status{State: StateRuntimeError, Reason: reason}
}

// Failed reports whether the status is one of the failure states.
func (s Status) Failed() bool {
	switch s.State {
	case StateFailedToStart, StateFailedToStop, StateRuntimeError:
		return true
	}
	return false
}

func (s Status) String() string {
	switch s.State {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateStarted:
		return "Started"
	case StateStopping:
		return "Stopping"
	case StateFailedToStart:
		return "Failed to start: " + s.Reason
	case StateFailedToStop:
		return "Failed to stop: " + s.Reason
	case StateRuntimeError:
		return "Runtime error: " + s.Reason
	default:
		return "Unknown"
	}
}

func (s OverallStatus) String() string {
	switch s {
	case Healthy:
		return "Healthy"
	case Unhealthy:
		return "Unhealthy"
	default:
		return "Unknown"
	}
}

func (p Priority) String() string {
	switch p {
	case Essential:
		return "Essential"
	case Optional:
		return "Optional"
	default:
		return "Unknown"
	}
}
