package store

import (
	"context"
	"fmt"
	"testing"
)

// seededMemory returns a memory store holding n sequentially keyed items.
func seededMemory(b *testing.B, n int) *Memory {
	b.Helper()
	mem := NewMemory()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if err := mem.Set(ctx, &Item{Key: fmt.Sprintf("bench-%04d", i), Value: []byte("payload")}); err != nil {
			b.Fatalf("seed: %v", err)
		}
	}
	return mem
}

func BenchmarkMemory_Get(b *testing.B) {
	ctx := context.Background()

	b.Run("hit", func(b *testing.B) {
		mem := seededMemory(b, 1)
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := mem.Get(ctx, "bench-0000"); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("miss", func(b *testing.B) {
		mem := NewMemory()
		for i := 0; i < b.N; i++ {
			_, _ = mem.Get(ctx, "absent")
		}
	})

	b.Run("parallel", func(b *testing.B) {
		mem := seededMemory(b, 64)
		keys := make([]string, 64)
		for i := range keys {
			keys[i] = fmt.Sprintf("bench-%04d", i)
		}
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			var i int
			for pb.Next() {
				_, _ = mem.Get(ctx, keys[i%len(keys)])
				i++
			}
		})
	})
}

func BenchmarkMemory_Set(b *testing.B) {
	ctx := context.Background()

	b.Run("overwrite", func(b *testing.B) {
		mem := NewMemory()
		item := &Item{Key: "bench", Value: []byte("payload")}
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if err := mem.Set(ctx, item); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("fresh_keys", func(b *testing.B) {
		mem := NewMemory()
		keys := make([]string, b.N)
		for i := range keys {
			keys[i] = fmt.Sprintf("bench-%08d", i)
		}
		value := []byte("payload")
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = mem.Set(ctx, &Item{Key: keys[i], Value: value})
		}
	})
}

func BenchmarkMemory_Stats(b *testing.B) {
	mem := seededMemory(b, 1000)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := mem.Stats(ctx, ""); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkValidateKey(b *testing.B) {
	// The 64-character hex digest shape that hashed physical keys take.
	key := "5f4dcc3b5aa765d61d8327deb882cf995f4dcc3b5aa765d61d8327deb882cf99"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := ValidateKey(key); err != nil {
			b.Fatal(err)
		}
	}
}
