package util

import (
	"bytes"
	"math/rand"
	"testing"
	"time"
)

var prng = rand.New(rand.NewSource(time.Now().UnixNano()))

func sampleByteSlice(b []byte) {
	prng.Read(b)
}

func TestBitSetInByte(t *testing.T) {
	b := []byte{161}
	for i := 0; i < 8; i++ {
		if i == 0 || i == 7 || i == 5 {
			if !BitSetInByte(b, i) {
				t.Fatalf("bit extraction failed")
			}
		} else {
			if BitSetInByte(b, i) {
				t.Fatalf("bit extraction failed")
			}
		}
	}
}

func TestXorOps(t *testing.T) {
	// lengths that are and are not multiples of 8
	for _, n := range []int{8, 13, 16, 64, 67} {
		dst, a, b := make([]byte, n), make([]byte, n), make([]byte, n)
		sampleByteSlice(dst)
		sampleByteSlice(a)
		sampleByteSlice(b)

		want := make([]byte, n)
		for i := range want {
			want[i] = dst[i] ^ a[i]
		}
		got := append([]byte(nil), dst...)
		Xor(got, a)
		if !bytes.Equal(got, want) {
			t.Fatalf("Xor of length %d: got %v, want %v", n, got, want)
		}

		for i := range want {
			want[i] = dst[i] ^ a[i] ^ b[i]
		}
		got = append([]byte(nil), dst...)
		DoubleXor(got, a, b)
		if !bytes.Equal(got, want) {
			t.Fatalf("DoubleXor of length %d: got %v, want %v", n, got, want)
		}

		for i := range want {
			want[i] = (dst[i] & a[i]) ^ b[i]
		}
		got = append([]byte(nil), dst...)
		AndXor(got, a, b)
		if !bytes.Equal(got, want) {
			t.Fatalf("AndXor of length %d: got %v, want %v", n, got, want)
		}
	}
}

func TestXorLengthMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r != ErrByteLengthMissMatch {
			t.Fatalf("expected panic with ErrByteLengthMissMatch, got %v", r)
		}
	}()
	Xor(make([]byte, 8), make([]byte, 9))
}

func naiveTranspose(src [][]byte, nRows int) [][]byte {
	dst := make([][]byte, nRows)
	for i := range dst {
		dst[i] = make([]byte, len(src)/8)
		for j := range src {
			if BitSetInByte(src[j], i) {
				dst[i][j/8] |= 1 << (j % 8)
			}
		}
	}
	return dst
}

func TestConcurrentTransposeBits(t *testing.T) {
	for _, shape := range []struct{ k, n int }{
		{8, 1},
		{128, 10},
		{512, 128},
		{640, 1000},
		{512, 4099},
	} {
		src, err := SampleRandomBitMatrix(prng, shape.k, (shape.n+7)/8)
		if err != nil {
			t.Fatal(err)
		}

		got := ConcurrentTransposeBits(src, shape.n)
		want := naiveTranspose(src, shape.n)
		if len(got) != shape.n {
			t.Fatalf("expected %d rows, got %d", shape.n, len(got))
		}
		for i := range want {
			if !bytes.Equal(got[i], want[i]) {
				t.Fatalf("shape %dx%d row %d: got %v, want %v", shape.k, shape.n, i, got[i], want[i])
			}
		}
	}
}

func TestTransposeEmpty(t *testing.T) {
	if got := ConcurrentTransposeBits(make([][]byte, 16), 0); len(got) != 0 {
		t.Fatalf("expected no rows, got %d", len(got))
	}
}

func BenchmarkConcurrentTransposeBits(b *testing.B) {
	src, _ := SampleRandomBitMatrix(prng, 512, 1<<14)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ConcurrentTransposeBits(src, 1<<17)
	}
}
