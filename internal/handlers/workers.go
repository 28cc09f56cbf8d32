package handlers

import "github.com/riverqueue/river"

// Register builds a river.Workers bundle with all seven task kinds wired
// to the shared Deps, for cmd/taskengine to pass into scheduler.Config.
func Register(deps *Deps) *river.Workers {
	workers := river.NewWorkers()

	river.AddWorker(workers, &CheckDayWorker{Deps: deps})
	river.AddWorker(workers, &PopulateCoursesWorker{Deps: deps})
	river.AddWorker(workers, &FillFormWorker{Deps: deps})
	river.AddWorker(workers, &GetFormGeometryWorker{Deps: deps})
	river.AddWorker(workers, &TestFillFormWorker{Deps: deps})
	river.AddWorker(workers, &RemoveOldFormGeometryWorker{Deps: deps})
	river.AddWorker(workers, &RemoveOldTestResultWorker{Deps: deps})

	return workers
}
