package stats

import "testing"

func TestSnapshotAndReset(t *testing.T) {
	s := New()
	s.Discovery.FilesSeen.Add(3)
	s.Chunking.ChunksEmitted.Add(7)
	s.Query.ObserveLatency(150)

	snap := s.Snapshot()
	if snap.Discovery.FilesSeen != 3 {
		t.Fatalf("FilesSeen = %d, want 3", snap.Discovery.FilesSeen)
	}
	if snap.Chunking.ChunksEmitted != 7 {
		t.Fatalf("ChunksEmitted = %d, want 7", snap.Chunking.ChunksEmitted)
	}

	var total int64
	for _, v := range snap.Query.LatencyBucketsMs {
		total += v
	}
	if total != 1 {
		t.Fatalf("expected exactly one latency sample recorded, got %d", total)
	}

	s.Reset()
	snap = s.Snapshot()
	if snap.Discovery.FilesSeen != 0 || snap.Chunking.ChunksEmitted != 0 {
		t.Fatalf("expected zeroed snapshot after Reset, got %+v", snap)
	}
}

func TestObserveLatencyBuckets(t *testing.T) {
	s := New()
	s.Query.ObserveLatency(0)
	s.Query.ObserveLatency(1)
	s.Query.ObserveLatency(1000)
	s.Query.ObserveLatency(1_000_000)

	snap := s.Snapshot()
	var total int64
	for _, v := range snap.Query.LatencyBucketsMs {
		total += v
	}
	if total != 4 {
		t.Fatalf("expected 4 samples recorded across buckets, got %d", total)
	}
	if snap.Query.LatencyBucketsMs[numLatencyBuckets-1] == 0 {
		t.Fatalf("expected the overflow bucket to absorb the 1,000,000ms sample")
	}
}
