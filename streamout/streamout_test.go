package streamout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func oneBuffer(stride uint32) Config {
	return Config{
		Outputs: []Output{{Register: 0, NumComponents: 2, Buffer: 0, Stream: 0}},
		Strides: [MaxBuffers]uint32{stride},
	}
}

// =============================================================================
// Config
// =============================================================================

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"single output", oneBuffer(2), true},
		{"empty", Config{}, false},
		{"stride too small", oneBuffer(1), false},
		{"bad buffer", Config{
			Outputs: []Output{{NumComponents: 1, Buffer: 4}},
		}, false},
		{"bad components", Config{
			Outputs: []Output{{StartComponent: 3, NumComponents: 2}},
			Strides: [MaxBuffers]uint32{4},
		}, false},
		{"buffer shared by two streams", Config{
			Outputs: []Output{
				{NumComponents: 1, Buffer: 0, Stream: 0},
				{NumComponents: 1, Buffer: 0, Stream: 1, DstOffset: 1},
			},
			Strides: [MaxBuffers]uint32{2},
		}, false},
		{"two streams two buffers", Config{
			Outputs: []Output{
				{NumComponents: 4, Buffer: 0, Stream: 0},
				{NumComponents: 4, Buffer: 2, Stream: 1},
			},
			Strides: [MaxBuffers]uint32{4, 0, 4},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate() = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfigStreamMaps(t *testing.T) {
	cfg := Config{
		Outputs: []Output{
			{NumComponents: 4, Buffer: 0, Stream: 0},
			{NumComponents: 4, Buffer: 1, Stream: 0, Register: 1},
			{NumComponents: 4, Buffer: 3, Stream: 2},
		},
		Strides: [MaxBuffers]uint32{4, 4, 0, 4},
	}
	sf := cfg.StreamForBuffer()
	if sf != [MaxBuffers]int{0, 0, -1, 2} {
		t.Errorf("StreamForBuffer() = %v", sf)
	}
	bm := cfg.BuffersForStream()
	if bm != [MaxStreams]uint8{0b0011, 0, 0b1000, 0} {
		t.Errorf("BuffersForStream() = %v", bm)
	}
	if got := cfg.NumRegisters(); got != 2 {
		t.Errorf("NumRegisters() = %d, want 2", got)
	}
}

// =============================================================================
// GDS ordering
// =============================================================================

func TestGDSOrderedRegardlessOfArrival(t *testing.T) {
	g := NewGDS()
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		baseB [MaxBuffers]uint32
		errB  error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		// B arrives first but must observe A's add.
		baseB, errB = g.ReserveOrdered(ctx, 1, [MaxBuffers]uint32{7})
	}()

	time.Sleep(10 * time.Millisecond)
	baseA, err := g.ReserveOrdered(ctx, 0, [MaxBuffers]uint32{5})
	if err != nil {
		t.Fatal(err)
	}
	wg.Wait()
	if errB != nil {
		t.Fatal(errB)
	}

	if baseA[0] != 0 {
		t.Errorf("base A = %d, want 0", baseA[0])
	}
	if baseB[0] != 5 {
		t.Errorf("base B = %d, want 5", baseB[0])
	}
	if got := g.Offsets()[0]; got != 12 {
		t.Errorf("cursor = %d, want 12", got)
	}
}

func TestGDSManyWorkgroups(t *testing.T) {
	g := NewGDS()
	ctx := context.Background()
	const n = 64

	bases := make([]uint32, n)
	var wg sync.WaitGroup
	for i := n - 1; i >= 0; i-- {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			b, err := g.ReserveOrdered(ctx, uint32(id), [MaxBuffers]uint32{uint32(id)})
			if err != nil {
				t.Error(err)
				return
			}
			bases[id] = b[0]
		}(i)
	}
	wg.Wait()

	want := uint32(0)
	for i, b := range bases {
		if b != want {
			t.Fatalf("base[%d] = %d, want %d", i, b, want)
		}
		want += uint32(i)
	}
}

func TestGDSCancel(t *testing.T) {
	g := NewGDS()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.ReserveOrdered(ctx, 3, [MaxBuffers]uint32{1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ReserveOrdered() = %v, want deadline exceeded", err)
	}
}

func TestGDSReuse(t *testing.T) {
	g := NewGDS()
	ctx := context.Background()
	if _, err := g.ReserveOrdered(ctx, 0, [MaxBuffers]uint32{}); err != nil {
		t.Fatal(err)
	}
	if _, err := g.ReserveOrdered(ctx, 0, [MaxBuffers]uint32{}); !errors.Is(err, ErrOrderedIDReused) {
		t.Fatalf("second reserve = %v, want ErrOrderedIDReused", err)
	}

	g.BeginDispatch()
	if _, err := g.ReserveOrdered(ctx, 0, [MaxBuffers]uint32{}); err != nil {
		t.Fatalf("after BeginDispatch: %v", err)
	}
}

// =============================================================================
// Allocation
// =============================================================================

func TestAllocateFits(t *testing.T) {
	q := &Query{}
	a, err := NewAllocator(oneBuffer(2), NewGDS(), NewBuffers(100), q)
	if err != nil {
		t.Fatal(err)
	}
	r, err := a.Allocate(context.Background(), 0, [MaxStreams]uint32{4}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if r.Emit[0] != 4 {
		t.Errorf("emit = %d, want 4", r.Emit[0])
	}
	if got := q.Result(0); got != (QueryResult{Generated: 4, Written: 4}) {
		t.Errorf("query = %+v", got)
	}
}

func TestAllocateOverflowReleasesUnused(t *testing.T) {
	g := NewGDS()
	q := &Query{}
	// Stride 2 and triangles: 6 dwords per primitive, 10 dwords fit one.
	a, err := NewAllocator(oneBuffer(2), g, NewBuffers(10), q)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	ra, err := a.Allocate(ctx, 0, [MaxStreams]uint32{3}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if ra.Emit[0] != 1 {
		t.Errorf("emit A = %d, want 1", ra.Emit[0])
	}
	if got := g.Offsets()[0]; got != 6 {
		t.Errorf("cursor after A = %d, want 6", got)
	}

	rb, err := a.Allocate(ctx, 1, [MaxStreams]uint32{1}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if rb.Offsets[0] != 6 {
		t.Errorf("base B = %d, want 6", rb.Offsets[0])
	}
	if rb.Emit[0] != 0 {
		t.Errorf("emit B = %d, want 0", rb.Emit[0])
	}
	if got := q.Result(0); got != (QueryResult{Generated: 4, Written: 1}) {
		t.Errorf("query = %+v", got)
	}
}

func TestAllocateRejectsBadPrimSize(t *testing.T) {
	a, err := NewAllocator(oneBuffer(2), NewGDS(), NewBuffers(10), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Allocate(context.Background(), 0, [MaxStreams]uint32{1}, 4); !errors.Is(err, ErrBadVerticesPerPrim) {
		t.Fatalf("Allocate() = %v, want ErrBadVerticesPerPrim", err)
	}
}

// =============================================================================
// Writes
// =============================================================================

func TestWriteNeverPastEnd(t *testing.T) {
	mem := NewBuffers(10)
	a, err := NewAllocator(oneBuffer(2), NewGDS(), mem, nil)
	if err != nil {
		t.Fatal(err)
	}
	r, err := a.Allocate(context.Background(), 0, [MaxStreams]uint32{3}, 3)
	if err != nil {
		t.Fatal(err)
	}

	written, err := a.Write(r, Capture{
		Threads: 4,
		Enable:  func(stream, thread int) bool { return thread < 3 },
		Vertex: func(stream, thread, i int) []uint32 {
			v := uint32(thread*10 + i)
			return []uint32{v, v + 100, 0xffff, 0xffff}
		},
	})
	if err != nil {
		t.Fatalf("Write() = %v", err)
	}
	if written[0] != 1 {
		t.Errorf("written = %d, want 1", written[0])
	}

	want := []uint32{0, 100, 1, 101, 2, 102, 0, 0, 0, 0}
	got := mem.Data(0)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("data = %v, want %v", got, want)
		}
	}
}

func TestWriteUsesSlots(t *testing.T) {
	mem := NewBuffers(16)
	cfg := Config{
		Outputs: []Output{{Register: 1, StartComponent: 1, NumComponents: 1, Buffer: 0, DstOffset: 1}},
		Strides: [MaxBuffers]uint32{2},
	}
	a, err := NewAllocator(cfg, NewGDS(), mem, nil)
	if err != nil {
		t.Fatal(err)
	}
	r, err := a.Allocate(context.Background(), 0, [MaxStreams]uint32{2}, 1)
	if err != nil {
		t.Fatal(err)
	}

	// Threads 1 and 3 own points; they land in slots 0 and 1.
	slots := []uint32{0, 0, 1, 1}
	_, err = a.Write(r, Capture{
		Threads: 4,
		Enable:  func(stream, thread int) bool { return thread%2 == 1 },
		Slot:    func(stream, thread int) uint32 { return slots[thread] },
		Vertex: func(stream, thread, i int) []uint32 {
			return []uint32{0, 0, 0, 0, 0, uint32(thread), 0, 0}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := mem.Data(0)
	if got[1] != 1 || got[3] != 3 {
		t.Errorf("data = %v, want thread ids at dwords 1 and 3", got[:4])
	}
}

func TestCheckWritten(t *testing.T) {
	mem := NewBuffers(64)
	a, err := NewAllocator(oneBuffer(2), NewGDS(), mem, nil)
	if err != nil {
		t.Fatal(err)
	}
	r, err := a.Allocate(context.Background(), 0, [MaxStreams]uint32{3}, 3)
	if err != nil {
		t.Fatal(err)
	}
	vertex := func(stream, thread, i int) []uint32 { return []uint32{1, 2, 3, 4} }

	tests := []struct {
		name    string
		threads int
		wantErr bool
	}{
		{"every reserved primitive", 3, false},
		{"one primitive missing", 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			written, err := a.Write(r, Capture{
				Threads: 4,
				Enable:  func(stream, thread int) bool { return thread < tt.threads },
				Vertex:  vertex,
			})
			if err != nil {
				t.Fatalf("Write() = %v", err)
			}
			err = r.CheckWritten(written)
			if tt.wantErr && !errors.Is(err, ErrShortWrite) {
				t.Errorf("CheckWritten(%v) = %v, want ErrShortWrite", written, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("CheckWritten(%v) = %v, want nil", written, err)
			}
		})
	}
}

func TestBuffersBounds(t *testing.T) {
	b := NewBuffers(2)
	if err := b.Store(0, 2, 1); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("Store() = %v, want ErrOutOfBounds", err)
	}
	if err := b.Store(1, 0, 1); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("Store() on empty buffer = %v, want ErrOutOfBounds", err)
	}
}

func TestFloatRegisters(t *testing.T) {
	got := FloatRegisters([][4]float32{{1, 0, 0, 0}})
	if len(got) != 4 || got[0] != 0x3f800000 {
		t.Errorf("FloatRegisters() = %#x", got)
	}
}
