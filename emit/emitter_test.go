// ABOUTME: Tests for the Emitter's pre-consumer buffer, subscriber fan-out, and close semantics.
package emit

import "testing"

func TestEmitBeforeSubscribeIsBuffered(t *testing.T) {
	e := New()
	e.Emit(Event{Kind: KindPipelineStarted})
	e.Emit(Event{Kind: KindStageStarted})

	ch := e.Subscribe()
	first := <-ch
	second := <-ch
	if first.Kind != KindPipelineStarted || second.Kind != KindStageStarted {
		t.Errorf("expected buffered events replayed in order, got %v then %v", first.Kind, second.Kind)
	}
}

func TestEmitAssignsIDWhenEmpty(t *testing.T) {
	e := New()
	ch := e.Subscribe()
	e.Emit(Event{Kind: KindStageCompleted})

	evt := <-ch
	if evt.ID == "" {
		t.Error("expected a generated event ID")
	}
}

func TestEmitPreservesExplicitID(t *testing.T) {
	e := New()
	ch := e.Subscribe()
	e.Emit(Event{ID: "custom-id", Kind: KindStageCompleted})

	evt := <-ch
	if evt.ID != "custom-id" {
		t.Errorf("expected explicit ID preserved, got %q", evt.ID)
	}
}

func TestSecondSubscriberDoesNotReplayBuffer(t *testing.T) {
	e := New()
	e.Emit(Event{Kind: KindPipelineStarted})

	first := e.Subscribe()
	<-first // drains the buffered event

	second := e.Subscribe()
	e.Emit(Event{Kind: KindStageStarted})

	evt := <-second
	if evt.Kind != KindStageStarted {
		t.Errorf("expected second subscriber to see only post-subscribe events, got %v", evt.Kind)
	}
	select {
	case extra := <-second:
		t.Errorf("expected no further buffered replay, got %v", extra.Kind)
	default:
	}
}

func TestEmitFansOutToAllSubscribers(t *testing.T) {
	e := New()
	a := e.Subscribe()
	b := e.Subscribe()

	e.Emit(Event{Kind: KindPipelineCompleted})

	evtA := <-a
	evtB := <-b
	if evtA.Kind != KindPipelineCompleted || evtB.Kind != KindPipelineCompleted {
		t.Error("expected both subscribers to receive the emitted event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	e := New()
	ch := e.Subscribe()
	e.Unsubscribe(ch)

	_, ok := <-ch
	if ok {
		t.Error("expected channel closed after Unsubscribe")
	}
}

func TestCloseClosesAllSubscribersAndIgnoresFurtherEmits(t *testing.T) {
	e := New()
	ch := e.Subscribe()
	e.Close()

	if _, ok := <-ch; ok {
		t.Error("expected subscriber channel closed by Close")
	}

	e.Emit(Event{Kind: KindPipelineFailed}) // must not panic after close
}

func TestEmitNeverDropsEventsForSlowSubscriber(t *testing.T) {
	e := New()
	ch := e.Subscribe()

	const n = 1000 // far more than the channel's 256-slot buffer
	for i := 0; i < n; i++ {
		e.Emit(Event{Kind: KindStageCompleted})
	}

	got := 0
	for got < n {
		<-ch
		got++
	}
	if got != n {
		t.Errorf("expected all %d events delivered with none dropped, got %d", n, got)
	}
}
