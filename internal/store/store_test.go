package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/sensorview/internal/model"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "sensorview.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return s
}

func sampleJob() model.Job {
	job := model.NewJob("job-1", "tank A", model.SensorPH)
	job.SourcePath = "/logs/tank-a.csv"
	job.Points["ST"] = model.NamedPoint{Label: "ST", Time: epoch.Add(100 * time.Second), Value: 7}
	job.Points["EN"] = model.NamedPoint{Label: "EN", Time: epoch.Add(130 * time.Second), Value: 9.8}
	job.Results[0] = []model.ManualResult{
		{ID: "b", Channel: 0, Start: epoch, End: epoch.Add(time.Minute), Min: 1, Max: 5, Diff: 4},
		{ID: "a", Channel: 0, Start: epoch.Add(time.Minute), End: epoch.Add(2 * time.Minute), Min: 2, Max: 3, Diff: 1},
	}
	job.Phases = []model.Phase{{Name: "rise", Start: epoch, End: epoch.Add(30 * time.Second)}}
	job.View = model.ViewportState{End: epoch.Add(5 * time.Minute), Range: 2 * time.Minute}
	job.CreatedAt = epoch
	job.UpdatedAt = epoch.Add(time.Hour)
	return *job
}

func TestSaveAndLoadJob(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	want := sampleJob()
	if err := s.SaveJob(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadJob(ctx, want.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != want.Name || got.Sensor != want.Sensor || got.SourcePath != want.SourcePath {
		t.Fatalf("unexpected job header %+v", got)
	}
	if got.View != want.View {
		t.Fatalf("expected view %+v, got %+v", want.View, got.View)
	}
	if len(got.Points) != 2 || got.Points["EN"] != want.Points["EN"] {
		t.Fatalf("unexpected points %+v", got.Points)
	}
	res := got.Results[0]
	if len(res) != 2 || res[0].ID != "b" || res[1].ID != "a" {
		t.Fatalf("expected results in creation order [b a], got %+v", res)
	}
	if len(got.Phases) != 1 || got.Phases[0] != want.Phases[0] {
		t.Fatalf("unexpected phases %+v", got.Phases)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Fatalf("unexpected timestamps %v %v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestSaveJobReplacesAnnotations(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	job := sampleJob()
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("save: %v", err)
	}
	delete(job.Points, "EN")
	job.Results = map[int][]model.ManualResult{}
	job.Phases = nil
	job.LastError = "phase service unavailable"
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, err := s.LoadJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Points) != 1 || len(got.Results) != 0 || len(got.Phases) != 0 {
		t.Fatalf("expected replaced annotations, got %+v", got)
	}
	if got.LastError != job.LastError {
		t.Fatalf("expected last error %q, got %q", job.LastError, got.LastError)
	}
}

func TestListFindAndDeleteJobs(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	older := sampleJob()
	newer := sampleJob()
	newer.ID = "job-2"
	newer.UpdatedAt = older.UpdatedAt.Add(time.Hour)
	newer.Points = map[string]model.NamedPoint{}
	for _, j := range []model.Job{older, newer} {
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatalf("save %s: %v", j.ID, err)
		}
	}

	jobs, err := s.ListJobs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "job-2" || jobs[1].Points != 2 || jobs[1].Results != 2 {
		t.Fatalf("unexpected job list %+v", jobs)
	}

	found, err := s.FindJobBySource(ctx, "/logs/tank-a.csv")
	if err != nil || found.ID != "job-2" {
		t.Fatalf("expected newest job for source, got %q %v", found.ID, err)
	}
	if _, err := s.FindJobBySource(ctx, "/logs/other.csv"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}

	if err := s.DeleteJob(ctx, "job-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.LoadJob(ctx, "job-1"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound after delete, got %v", err)
	}
	if err := s.DeleteJob(ctx, "job-1"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound for second delete, got %v", err)
	}
}
