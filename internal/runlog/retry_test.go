package runlog

import (
	"errors"
	"testing"
	"time"
)

func TestIsSQLiteBusy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"locked database", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"busy code only", errors.New("SQLITE_BUSY: cannot start a transaction"), true},
		{"constraint violation", errors.New("UNIQUE constraint failed: conversion_runs.run_id"), false},
		{"missing table", errors.New("no such table: conversion_runs"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isSQLiteBusy(tc.err); got != tc.want {
				t.Errorf("isSQLiteBusy(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestRetryOnBusySucceedsAfterContention(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryOnBusyStopsOnOtherErrors(t *testing.T) {
	wantErr := errors.New("no such table: conversion_runs")
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected %v, got %v", wantErr, err)
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestRetryOnBusyGivesUp(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if calls != busyMaxAttempts {
		t.Errorf("expected %d calls, got %d", busyMaxAttempts, calls)
	}
}

func TestRetryOnBusyBacksOff(t *testing.T) {
	var gaps []time.Duration
	var last time.Time
	calls := 0
	err := retryOnBusy(func() error {
		now := time.Now()
		if calls > 0 {
			gaps = append(gaps, now.Sub(last))
		}
		last = now
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gaps) != 2 {
		t.Fatalf("expected 2 retry gaps, got %d", len(gaps))
	}
	if gaps[0] < busyInitialDelay {
		t.Errorf("first retry after %v, want at least %v", gaps[0], busyInitialDelay)
	}
	if gaps[1] < 2*busyInitialDelay {
		t.Errorf("second retry after %v, want at least %v", gaps[1], 2*busyInitialDelay)
	}
}
