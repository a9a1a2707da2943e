package util

import (
	"fmt"
	"io"
	"runtime"
	"sync"
)

var (
	ErrByteLengthMissMatch = fmt.Errorf("provided bytes do not have the same length for bit operations")
	ErrTransposeShape      = fmt.Errorf("matrix shape cannot be transposed bitwise")
)

// BitSetInByte returns true if bit i is set in a byte slice.
// It extracts bits from the least significant bit (i = 0) to the
// most significant bit (i = 7).
func BitSetInByte(b []byte, i int) bool {
	return b[i/8]&(1<<(i%8)) > 0
}

// SampleRandomBitMatrix returns m rows of rowBytes pseudorandom bytes
// read from prng.
func SampleRandomBitMatrix(prng io.Reader, m, rowBytes int) ([][]byte, error) {
	matrix := make([][]byte, m)
	for row := range matrix {
		matrix[row] = make([]byte, rowBytes)
		if _, err := io.ReadFull(prng, matrix[row]); err != nil {
			return nil, err
		}
	}

	return matrix, nil
}

// ConcurrentTransposeBits transposes a k x nRows bit matrix stored as
// k rows of at least ceil(nRows/8) bytes into nRows rows of k/8 bytes.
// Bit i of src[j] (least significant bit first) becomes bit j of
// dst[i]. k must be a multiple of 8. The matrix is processed in 8x8
// bit tiles, split by column stripes among GOMAXPROCS workers, and
// the last worker takes the stripes that do not divide evenly.
// The output rows share a single contiguous backing slice.
func ConcurrentTransposeBits(src [][]byte, nRows int) [][]byte {
	k := len(src)
	if k%8 != 0 {
		panic(ErrTransposeShape)
	}

	rowBytes := (nRows + 7) / 8
	for _, r := range src {
		if len(r) < rowBytes {
			panic(ErrTransposeShape)
		}
	}

	width := k / 8
	flat := make([]byte, nRows*width)
	dst := make([][]byte, nRows)
	for i := range dst {
		dst[i] = flat[i*width : (i+1)*width : (i+1)*width]
	}

	if rowBytes == 0 {
		return dst
	}

	nworkers := runtime.GOMAXPROCS(0)
	if nworkers > rowBytes {
		nworkers = rowBytes
	}
	workerResp := rowBytes / nworkers

	var wg sync.WaitGroup
	wg.Add(nworkers)
	for w := 0; w < nworkers; w++ {
		w := w
		go func() {
			defer wg.Done()
			step := workerResp * w
			end := step + workerResp
			if w == nworkers-1 { // last worker has extra work
				end = rowBytes
			}
			for ib := step; ib < end; ib++ {
				for jb := 0; jb < width; jb++ {
					transposeTile(src, dst, ib, jb, nRows)
				}
			}
		}()
	}

	wg.Wait()
	return dst
}

// transposeTile moves the 8x8 tile made of bytes src[8*jb..8*jb+7][ib]
// into dst[8*ib..8*ib+7][jb].
func transposeTile(src, dst [][]byte, ib, jb, nRows int) {
	var x uint64
	for r := 0; r < 8; r++ {
		x |= uint64(src[8*jb+r][ib]) << (8 * r)
	}

	x = transpose8(x)

	for c := 0; c < 8; c++ {
		row := 8*ib + c
		if row >= nRows {
			return
		}
		dst[row][jb] = byte(x >> (8 * c))
	}
}

// transpose8 transposes an 8x8 bit matrix held in a uint64 where bit
// 8r+c is row r, column c. Each step swaps the off diagonal quadrants
// of blocks of width 1, 2 and 4.
func transpose8(x uint64) uint64 {
	t := (x ^ (x >> 7)) & 0x00AA00AA00AA00AA
	x = x ^ t ^ (t << 7)
	t = (x ^ (x >> 14)) & 0x0000CCCC0000CCCC
	x = x ^ t ^ (t << 14)
	t = (x ^ (x >> 28)) & 0x00000000F0F0F0F0
	x = x ^ t ^ (t << 28)
	return x
}
