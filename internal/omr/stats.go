package omr

// Statistics tracks processing outcomes across sheets. It is a plain
// value: the Processor owns one behind a mutex, and batch workers fold
// into worker-local copies merged after the batch completes.
type Statistics struct {
	TotalProcessed        int     `json:"total_processed"`
	Successful            int     `json:"successful"`
	Failed                int     `json:"failed"`
	AverageProcessingTime float64 `json:"average_processing_time_seconds"`
}

// Record folds one sheet outcome into the statistics. The running
// average uses an incremental mean so no per-sheet history is kept.
func (s *Statistics) Record(seconds float64, success bool) {
	s.TotalProcessed++
	if success {
		s.Successful++
	} else {
		s.Failed++
	}
	n := float64(s.TotalProcessed)
	s.AverageProcessingTime = (s.AverageProcessingTime*(n-1) + seconds) / n
}

// Merge folds another statistics value into this one, reweighting the
// average by each side's sheet count.
func (s *Statistics) Merge(other Statistics) {
	if other.TotalProcessed == 0 {
		return
	}
	total := s.TotalProcessed + other.TotalProcessed
	s.AverageProcessingTime = (s.AverageProcessingTime*float64(s.TotalProcessed) +
		other.AverageProcessingTime*float64(other.TotalProcessed)) / float64(total)
	s.TotalProcessed = total
	s.Successful += other.Successful
	s.Failed += other.Failed
}
