package util

import (
	"bufio"
	"io"
	"log"
)

// Count counts the number of lines in r.
func Count(r io.Reader) (int64, error) {
	var n int64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, err
	}

	return n, nil
}

// Exhaust reads at most n lines from r and sends each one, without
// its line terminator, on the returned channel, which is closed at the
// end. Empty lines are kept so that line numbers are preserved.
func Exhaust(n int64, r io.Reader) <-chan []byte {
	// make the output channel
	var identifiers = make(chan []byte)
	src := bufio.NewScanner(r)
	go func() {
		defer close(identifiers)
		for i := int64(0); i < n && src.Scan(); i++ {
			// the scanner reuses its buffer
			identifiers <- append([]byte(nil), src.Bytes()...)
		}
		if err := src.Err(); err != nil {
			log.Printf("error reading identifiers: %v", err)
		}
	}()

	return identifiers
}
