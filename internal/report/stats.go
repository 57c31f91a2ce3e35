package report

import (
	"math"

	"enviroplan/internal/domain"
)

// ProcessRate is the compliance rate of a single catalog process.
type ProcessRate struct {
	ProcessID string  `json:"process_id"`
	Name      string  `json:"name"`
	Total     int     `json:"total"`
	Executed  int     `json:"executed"`
	Rate      float64 `json:"rate"`
}

// Stats aggregates the execution state of a set of activities.
type Stats struct {
	Total      int           `json:"total"`
	Executed   int           `json:"executed"`
	Compliance float64       `json:"compliance"`
	PerProcess []ProcessRate `json:"per_process"`
}

// Compute derives compliance figures from the given activities.
// Overall compliance is executed/total*100 and is NaN when there are
// no activities at all; a process with no activities reports rate 0.
func Compute(activities []domain.Activity, processes []domain.Process) Stats {
	s := Stats{Total: len(activities)}
	perProc := map[string]*ProcessRate{}
	for _, p := range processes {
		perProc[p.ID] = &ProcessRate{ProcessID: p.ID, Name: p.Name}
	}
	for _, a := range activities {
		if a.Status == domain.StatusExecuted {
			s.Executed++
		}
		pr, ok := perProc[a.ProcessID]
		if !ok {
			// Activity whose process was removed from the catalog.
			continue
		}
		pr.Total++
		if a.Status == domain.StatusExecuted {
			pr.Executed++
		}
	}
	if s.Total == 0 {
		s.Compliance = math.NaN()
	} else {
		s.Compliance = float64(s.Executed) / float64(s.Total) * 100
	}
	s.PerProcess = make([]ProcessRate, 0, len(processes))
	for _, p := range processes {
		pr := perProc[p.ID]
		if pr.Total > 0 {
			pr.Rate = float64(pr.Executed) / float64(pr.Total) * 100
		}
		s.PerProcess = append(s.PerProcess, *pr)
	}
	return s
}
