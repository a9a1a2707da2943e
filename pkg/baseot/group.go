package baseot

import (
	"crypto/rand"
	"fmt"

	gr "github.com/bwesterb/go-ristretto"
	r255 "github.com/gtank/ristretto255"
)

// Group selects the ristretto implementation used by Simplest.
type Group int

const (
	GroupR255 Group = iota
	GroupGR
)

func (g Group) String() string {
	switch g {
	case GroupR255:
		return "ristretto255"
	case GroupGR:
		return "go-ristretto"
	default:
		return fmt.Sprintf("Group(%d)", int(g))
	}
}

// pointLen is the encoded length of a ristretto point.
const pointLen = 32

type point = [pointLen]byte

// secret is a private scalar able to multiply encoded points.
type secret interface {
	mult(p point) (point, error)
}

// group is the small slice of ristretto arithmetic the simplest OT
// needs, over encoded points.
type group interface {
	generateKeys() (secret, point, error)
	add(p, q point) (point, error)
	sub(p, q point) (point, error)
}

func newGroup(g Group) (group, error) {
	switch g {
	case GroupR255:
		return r255Group{}, nil
	case GroupGR:
		return grGroup{}, nil
	default:
		return nil, fmt.Errorf("unknown ristretto group %v", g)
	}
}

// go-ristretto

type grGroup struct{}

type grSecret struct {
	s gr.Scalar
}

func grDecode(p point) (P gr.Point, err error) {
	if !P.SetBytes(&p) {
		return P, ErrInvalidPoint
	}
	return P, nil
}

func (k *grSecret) mult(p point) (out point, err error) {
	P, err := grDecode(p)
	if err != nil {
		return out, err
	}
	var Q gr.Point
	Q.ScalarMult(&P, &k.s)
	Q.BytesInto(&out)
	return out, nil
}

func (grGroup) generateKeys() (secret, point, error) {
	k := &grSecret{}
	k.s.Rand()
	var P gr.Point
	P.ScalarMultBase(&k.s)
	var out point
	P.BytesInto(&out)
	return k, out, nil
}

func (grGroup) add(p, q point) (out point, err error) {
	P, err := grDecode(p)
	if err != nil {
		return out, err
	}
	Q, err := grDecode(q)
	if err != nil {
		return out, err
	}
	var R gr.Point
	R.Add(&P, &Q)
	R.BytesInto(&out)
	return out, nil
}

func (grGroup) sub(p, q point) (out point, err error) {
	P, err := grDecode(p)
	if err != nil {
		return out, err
	}
	Q, err := grDecode(q)
	if err != nil {
		return out, err
	}
	var R gr.Point
	R.Sub(&P, &Q)
	R.BytesInto(&out)
	return out, nil
}

// ristretto255

type r255Group struct{}

type r255Secret struct {
	s *r255.Scalar
}

func r255Decode(p point) (*r255.Element, error) {
	P := r255.NewElement()
	if err := P.Decode(p[:]); err != nil {
		return nil, ErrInvalidPoint
	}
	return P, nil
}

func r255Encode(P *r255.Element) (out point) {
	copy(out[:], P.Encode(nil))
	return out
}

func (k *r255Secret) mult(p point) (out point, err error) {
	P, err := r255Decode(p)
	if err != nil {
		return out, err
	}
	return r255Encode(r255.NewElement().ScalarMult(k.s, P)), nil
}

func (r255Group) generateKeys() (secret, point, error) {
	var uniform [64]byte
	if _, err := rand.Read(uniform[:]); err != nil {
		return nil, point{}, err
	}
	s := r255.NewScalar()
	s.FromUniformBytes(uniform[:])
	return &r255Secret{s: s}, r255Encode(r255.NewElement().ScalarBaseMult(s)), nil
}

func (r255Group) add(p, q point) (out point, err error) {
	P, err := r255Decode(p)
	if err != nil {
		return out, err
	}
	Q, err := r255Decode(q)
	if err != nil {
		return out, err
	}
	return r255Encode(r255.NewElement().Add(P, Q)), nil
}

func (r255Group) sub(p, q point) (out point, err error) {
	P, err := r255Decode(p)
	if err != nil {
		return out, err
	}
	Q, err := r255Decode(q)
	if err != nil {
		return out, err
	}
	return r255Encode(r255.NewElement().Subtract(P, Q)), nil
}
