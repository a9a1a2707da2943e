package emails

import (
	"crypto/rand"
	"encoding/hex"
	"log"
)

// from fake_hashes.sh:
// 	Usage: fake_hashes.sh n_hashes length prefix
//
// generate n_hashes of length length and prefix them with prefix
//
// example:
//  e:0e1f461bbefa6e07cc2ef06b9ee1ed25101e24d4345af266ed2f5a58bcd26c5e
//  e:59245d7c68b28404e068b15cba430082549b845ab412c4c3b31fb8632fd794e1
//
// hashes are random blobs of length length expressed in hex and prefixed with a string

const (
	Prefix  = "e:"
	HashLen = 32
)

// Aligned generates n lines of matchables for the sender and for the
// receiver. Line i holds the same matchable on both sides when i is a
// multiple of every, and two unrelated fresh matchables otherwise.
// Each channel must be drained concurrently with the other.
func Aligned(n, every int) (sender, receiver <-chan []byte) {
	s, r := make(chan []byte), make(chan []byte)
	go func() {
		defer close(s)
		defer close(r)
		for i := 0; i < n; i++ {
			if every > 0 && i%every == 0 {
				common := fresh()
				s <- prefix(common)
				r <- prefix(common)
				continue
			}
			s <- prefix(fresh())
			r <- prefix(fresh())
		}
	}()
	return s, r
}

// fresh returns HashLen random bytes
func fresh() []byte {
	b := make([]byte, HashLen)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("could not generate a fresh hash: %v", err)
	}
	return b
}

// Prefix a byte value with the local preset prefix
// and add \r\n at the end
func prefix(value []byte) []byte {
	// make final string
	out := make([]byte, len(Prefix)+hex.EncodedLen(len(value)))
	// copy the prefix first and then the
	// hex string
	copy(out, Prefix)
	hex.Encode(out[len(Prefix):], value)
	//  and return this
	return append(out, "\r\n"...)
}
