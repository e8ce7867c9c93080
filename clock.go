package asynciter

import "time"

// Clock stamps pipeline reports.
type Clock interface {
	NowInMillis() int64
	NowInNano() int64
}

type SystemClock struct{}

func (s *SystemClock) NowInMillis() int64 {
	return time.Now().UnixMilli()
}

func (s *SystemClock) NowInNano() int64 {
	return time.Now().UnixNano()
}
