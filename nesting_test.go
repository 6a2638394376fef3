package cbor

import "testing"

func TestNestingStackPushPop(t *testing.T) {
	s := newNestingStack(2)

	if err := s.push(decoderFrame{kind: frameArray}); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if err := s.push(decoderFrame{kind: frameMap}); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if err := s.push(decoderFrame{kind: frameArray}); err == nil {
		t.Fatal("expected ErrNestingDepthExceeded at capacity")
	}

	if got := s.depth(); got != 2 {
		t.Fatalf("expected depth 2, got %d", got)
	}

	top := s.top()
	if top == nil || !top.isMap() {
		t.Fatalf("expected top frame to be a map, got %+v", top)
	}

	if _, ok := s.pop(); !ok {
		t.Fatal("pop failed unexpectedly")
	}
	if _, ok := s.pop(); !ok {
		t.Fatal("pop failed unexpectedly")
	}
	if _, ok := s.pop(); ok {
		t.Fatal("expected pop on empty stack to report false")
	}
}

func TestNestingStackTracksIndefiniteFlag(t *testing.T) {
	s := newNestingStack(4)

	if err := s.push(decoderFrame{kind: frameArray, indefinite: true}); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if !s.top().indefinite {
		t.Fatal("expected top frame to carry the indefinite flag it was pushed with")
	}

	if err := s.push(decoderFrame{kind: frameMapAsArray}); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if s.top().indefinite {
		t.Fatal("expected the definite-length frame just pushed to report indefinite=false")
	}
	if s.top().isMap() {
		t.Fatal("frameMapAsArray is not a label-coalescing map frame")
	}
}
