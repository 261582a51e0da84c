package station

import "fmt"

// Performance accumulates the score of a game. Times are in seconds, distances in metres.
type Performance struct {
	ElapsedTime      float64 `json:"elapsedTime"`
	TotalTrainTime   float64 `json:"totalTrainTime"`
	TrainWaitingTime float64 `json:"trainWaitingTime"`
	TraveledDistance float64 `json:"traveledDistance"`
	TrainStopCount   int     `json:"trainStopCount"`

	IncomingTrainCount      int `json:"incomingTrainCount"`
	RightOutgoingTrainCount int `json:"rightOutgoingTrainCount"`
	WrongOutgoingTrainCount int `json:"wrongOutgoingTrainCount"`
}

func (p Performance) Add(o Performance) Performance {
	return Performance{
		ElapsedTime:             p.ElapsedTime + o.ElapsedTime,
		TotalTrainTime:          p.TotalTrainTime + o.TotalTrainTime,
		TrainWaitingTime:        p.TrainWaitingTime + o.TrainWaitingTime,
		TraveledDistance:        p.TraveledDistance + o.TraveledDistance,
		TrainStopCount:          p.TrainStopCount + o.TrainStopCount,
		IncomingTrainCount:      p.IncomingTrainCount + o.IncomingTrainCount,
		RightOutgoingTrainCount: p.RightOutgoingTrainCount + o.RightOutgoingTrainCount,
		WrongOutgoingTrainCount: p.WrongOutgoingTrainCount + o.WrongOutgoingTrainCount,
	}
}

// RightOutgoingPerHour is the rate of trains sent to their destination.
func (p Performance) RightOutgoingPerHour() float64 {
	if p.ElapsedTime <= 0 {
		return 0
	}
	return float64(p.RightOutgoingTrainCount) * 3600 / p.ElapsedTime
}

func (p Performance) String() string {
	return fmt.Sprintf("%.0fs in:%d right:%d wrong:%d stops:%d waiting:%.0fs",
		p.ElapsedTime, p.IncomingTrainCount, p.RightOutgoingTrainCount, p.WrongOutgoingTrainCount, p.TrainStopCount, p.TrainWaitingTime)
}

type SoundKind int

const (
	SoundArrival SoundKind = iota + 1
	SoundSwitch
	SoundLeave
)

func (k SoundKind) String() string {
	switch k {
	case SoundArrival:
		return "arrival"
	case SoundSwitch:
		return "switch"
	case SoundLeave:
		return "leave"
	default:
		return fmt.Sprintf("%d", int(k))
	}
}

func (k SoundKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// SoundEvent is an abstract sound for the renderer to play.
type SoundEvent struct {
	Kind  SoundKind `json:"kind"`
	Route string    `json:"route,omitempty"`
	Train string    `json:"train,omitempty"`
}
