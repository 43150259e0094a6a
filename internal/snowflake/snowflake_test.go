package snowflake

import (
	"sync"
	"testing"
	"time"
)

func TestNewNodeRange(t *testing.T) {
	tests := []struct {
		name    string
		nodeID  int64
		wantErr bool
	}{
		{"zero", 0, false},
		{"max", MaxNodeID, false},
		{"negative", -1, true},
		{"too large", MaxNodeID + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNode(tt.nodeID)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewNode(%d) error = %v, wantErr %v", tt.nodeID, err, tt.wantErr)
			}
		})
	}
}

func TestGenerateUniqueAndMonotonic(t *testing.T) {
	node, err := NewNode(7)
	if err != nil {
		t.Fatal(err)
	}

	var last ID
	seen := make(map[ID]struct{})
	for i := 0; i < 10000; i++ {
		id := node.Generate()
		if id <= last {
			t.Fatalf("ID not increasing: %d after %d", id, last)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID %d", id)
		}
		seen[id] = struct{}{}
		last = id
	}

	if node := (int64(last) >> nodeShift) & MaxNodeID; node != 7 {
		t.Errorf("Expected node 7, got %d", node)
	}
	ms := (int64(last) >> timestampShift) + epoch
	if d := time.Since(time.UnixMilli(ms)); d < 0 || d > time.Minute {
		t.Errorf("ID timestamp too far from now: %v", d)
	}
}

func TestGenerateClockBackwards(t *testing.T) {
	node, _ := NewNode(1)
	ticks := []int64{epoch + 1000, epoch + 900, epoch + 900, epoch + 1001}
	i := 0
	node.now = func() int64 {
		v := ticks[i]
		if i < len(ticks)-1 {
			i++
		}
		return v
	}

	a := node.Generate()
	b := node.Generate()
	if b <= a {
		t.Errorf("Expected %d > %d after clock moved backwards", b, a)
	}
}

func TestGenerateConcurrent(t *testing.T) {
	node, _ := NewNode(3)

	var mu sync.Mutex
	seen := make(map[string]struct{})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				s := node.Generate().Base36()
				mu.Lock()
				if _, dup := seen[s]; dup {
					t.Errorf("duplicate ID %s", s)
				}
				seen[s] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}
