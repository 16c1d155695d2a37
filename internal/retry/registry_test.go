package retry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_DispatchesToMatchingKindHandler(t *testing.T) {
	r := NewRegistry()
	var claimed error
	r.Register(KindCircuitOpen, func(err error) bool {
		claimed = err
		return true
	})

	err := NewTaggedError("op", KindCircuitOpen, errors.New("open"))
	handled := r.Dispatch(err)

	assert.True(t, handled)
	assert.Equal(t, err, claimed)
}

func TestRegistry_FallsThroughWhenNoHandlerRegistered(t *testing.T) {
	r := NewRegistry()
	handled := r.Dispatch(errors.New("plain error"))
	assert.False(t, handled)
}

func TestRegistry_UntaggedErrorDefaultsToPermanentKind(t *testing.T) {
	r := NewRegistry()
	var sawKindPermanent bool
	r.Register(KindPermanent, func(err error) bool {
		sawKindPermanent = true
		return true
	})

	handled := r.Dispatch(errors.New("plain error"))
	assert.True(t, handled)
	assert.True(t, sawKindPermanent)
}
