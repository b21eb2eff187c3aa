package jobstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func testJob(prior, decoder int) *Job {
	return &Job{
		Prompt:       "cat",
		Width:        2,
		Height:       2,
		Image:        make([]byte, 12),
		Mask:         make([]byte, 12),
		PriorSteps:   prior,
		DecoderSteps: decoder,
		ImageCount:   1,
	}
}

func TestState_Idle(t *testing.T) {
	s := New()
	if s.Active() {
		t.Error("new state should be idle")
	}
	if s.Progress() != (ProgressVector{}) {
		t.Errorf("new progress = %v, want zeros", s.Progress())
	}
	if s.ResultPending() {
		t.Error("new state should have no pending result")
	}
}

func TestState_AcceptPreconditions(t *testing.T) {
	s := New()

	if err := s.Accept(testJob(1, 2)); err != nil {
		t.Fatalf("first Accept: %v", err)
	}
	if !s.Active() {
		t.Fatal("Accept should set the activity flag")
	}

	if err := s.Accept(testJob(1, 2)); !errors.Is(err, ErrInferencing) {
		t.Fatalf("Accept while active = %v, want ErrInferencing", err)
	}

	job, err := s.NextJob(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("NextJob: %v", err)
	}
	if err := s.Complete(&Result{Token: job.Token}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if err := s.Accept(testJob(1, 2)); !errors.Is(err, ErrBlocked) {
		t.Fatalf("Accept with pending result = %v, want ErrBlocked", err)
	}

	if _, ok := s.TakeResult(); !ok {
		t.Fatal("TakeResult should return the pending result")
	}
	if _, ok := s.TakeResult(); ok {
		t.Fatal("second TakeResult should find the mailbox empty")
	}

	if err := s.Accept(testJob(1, 2)); err != nil {
		t.Fatalf("Accept after collection: %v", err)
	}
}

func TestState_AcceptResetsProgress(t *testing.T) {
	s := New()
	if err := s.Accept(testJob(3, 3)); err != nil {
		t.Fatal(err)
	}
	job, _ := s.NextJob(context.Background(), time.Second)
	s.Advance(StageImageEmbeds, 3)
	s.Advance(StageDecoder, 2)
	_ = s.Complete(&Result{Token: job.Token})
	s.TakeResult()

	if err := s.Accept(testJob(3, 3)); err != nil {
		t.Fatal(err)
	}
	if got := s.Progress(); got != (ProgressVector{}) {
		t.Errorf("progress after Accept = %v, want zeros", got)
	}
}

func TestState_AdvanceMonotonicAndClamped(t *testing.T) {
	s := New()
	if err := s.Accept(testJob(2, 4)); err != nil {
		t.Fatal(err)
	}

	s.Advance(StageDecoder, 3)
	s.Advance(StageDecoder, 1)
	if got := s.Progress()[StageDecoder]; got != 3 {
		t.Errorf("decoder progress = %d, want 3 (never decreases)", got)
	}

	s.Advance(StageImageEmbeds, 10)
	s.Advance(StageNegativeEmbeds, 10)
	s.Advance(StageDecoder, 10)
	got := s.Progress()
	if got != (ProgressVector{2, 2, 4}) {
		t.Errorf("progress = %v, want [2 2 4]", got)
	}
	if got.Sum() > testJob(2, 4).TotalSteps() {
		t.Errorf("sum %d exceeds ceiling", got.Sum())
	}

	s.Advance(-1, 1)
	s.Advance(StageCount, 1)
	if s.Progress() != got {
		t.Error("out-of-range stages must be ignored")
	}
}

func TestState_NextJobTimeout(t *testing.T) {
	s := New()
	start := time.Now()
	_, err := s.NextJob(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, ErrNoJob) {
		t.Fatalf("NextJob = %v, want ErrNoJob", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("NextJob returned before the timeout")
	}
}

func TestState_NextJobCancelled(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.NextJob(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("NextJob = %v, want context.Canceled", err)
	}
}

func TestState_FailClearsFlagWithoutResult(t *testing.T) {
	s := New()
	if err := s.Accept(testJob(1, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.NextJob(context.Background(), time.Second); err != nil {
		t.Fatal(err)
	}
	s.MarkActive()
	s.Fail()

	if s.Active() {
		t.Error("Fail should clear the activity flag")
	}
	if s.ResultPending() {
		t.Error("Fail must not deposit a result")
	}
	if err := s.Accept(testJob(1, 1)); err != nil {
		t.Errorf("Accept after failure: %v", err)
	}
}

func TestState_Drain(t *testing.T) {
	s := New()
	if s.Drain() {
		t.Error("Drain on empty mailbox should report false")
	}
	_ = s.Complete(&Result{})
	if !s.Drain() {
		t.Error("Drain should discard the pending result")
	}
	if s.ResultPending() {
		t.Error("mailbox should be empty after Drain")
	}
}

func TestState_ConcurrentAcceptAdmitsOne(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Accept(testJob(1, 1)) == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("accepted %d jobs, want exactly 1", accepted)
	}
}
