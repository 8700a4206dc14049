package event

// Names of the lifecycle channels
const (
	StepStartName     = "stepStart"
	StepEndName       = "stepEnd"
	RolloutStartName  = "rolloutStart"
	RolloutEndName    = "rolloutEnd"
	TrainingStartName = "trainingStart"
	TrainingEndName   = "trainingEnd"
)

// StepStartData is emitted before an action is selected
type StepStartData struct {
	Step   int // Index of the step in the current rollout
	NSteps int // Number of steps in a rollout
}

// StepEndData is emitted after a transition has been stored
type StepEndData struct {
	Step     int
	NSteps   int
	Episodes int // Number of episodes finished since training started

	Reward float64
	Done   bool
	Value  float64 // Critic estimate of the state the action was taken in

	// Sum of all rewards seen since training started
	SumReturn float64

	// Episodes finished and rewards summed since the current rollout
	// started
	RolloutEpisodes int
	RolloutReturn   float64
}

// RolloutData is emitted at the start and end of rollout collection
type RolloutData struct {
	Iteration int
}

// Stats summarizes one optimization pass over a rollout
type Stats struct {
	PolicyLoss float64 // Surrogate loss of the last policy epoch
	ValueLoss  float64 // Mean squared error of the last value epoch
	KL         float64 // Approximate KL after the last policy epoch

	PolicyEpochs int
	ValueEpochs  int

	// Whether the policy phase was cut short because the KL divergence
	// exceeded its threshold
	EarlyStopped bool
}

// TrainingData is emitted at the start and end of an optimization
// pass. Stats is the zero value at the start.
type TrainingData struct {
	Iteration int
	Stats     Stats
}

// Lifecycle holds one Channel per lifecycle point of a training loop
type Lifecycle struct {
	StepStart     *Channel[StepStartData]
	StepEnd       *Channel[StepEndData]
	RolloutStart  *Channel[RolloutData]
	RolloutEnd    *Channel[RolloutData]
	TrainingStart *Channel[TrainingData]
	TrainingEnd   *Channel[TrainingData]
}

// NewLifecycle returns a Lifecycle with no listeners
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		StepStart:     NewChannel[StepStartData](StepStartName),
		StepEnd:       NewChannel[StepEndData](StepEndName),
		RolloutStart:  NewChannel[RolloutData](RolloutStartName),
		RolloutEnd:    NewChannel[RolloutData](RolloutEndName),
		TrainingStart: NewChannel[TrainingData](TrainingStartName),
		TrainingEnd:   NewChannel[TrainingData](TrainingEndName),
	}
}
